package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"raffle/internal/config"
	"raffle/internal/database"
	"raffle/internal/logger"
	"raffle/internal/models"
	"raffle/internal/repository"
	"raffle/internal/service"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

var (
	competitions = flag.Int("competitions", 3, "Number of competitions to create")
	tickets      = flag.Int("tickets", 1000, "Tickets per competition")
	instantWins  = flag.Int("instant-wins", 5, "Instant win tickets per competition")
	withPromos   = flag.Bool("promos", true, "Create demo promo codes")
	dryRun       = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

type seeder struct {
	competitions *service.CompetitionService
	promos       *repository.PromoRepository
	rnd          *rand.Rand
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, "text")

	if *dryRun {
		logger.Get().Info("Dry run",
			"competitions", *competitions,
			"tickets_per_competition", *tickets,
			"instant_wins_per_competition", *instantWins,
			"promos", *withPromos)
		return
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	s := &seeder{
		competitions: service.NewCompetitionService(service.NewPostgresStore(db)),
		promos:       repository.NewPromoRepository(db),
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	ctx := context.Background()
	for i := 1; i <= *competitions; i++ {
		if err := s.seedCompetition(ctx, i); err != nil {
			logger.Get().Error("Failed to seed competition", "index", i, "error", err)
		}
	}

	if *withPromos {
		if err := s.seedPromos(ctx); err != nil {
			logger.Fatal("Failed to seed promo codes", "error", err)
		}
	}

	logger.Get().Info("Seeding completed successfully!")
}

func (s *seeder) seedCompetition(ctx context.Context, index int) error {
	endsAt := time.Now().AddDate(0, 0, 7*index)
	req := &models.CreateCompetitionRequest{
		Title:        fmt.Sprintf("Competition #%d", index),
		TicketPrice:  decimal.NewFromFloat(0.99).Mul(decimal.NewFromInt(int64(index))),
		TotalTickets: *tickets,
		EndsAt:       &endsAt,
		InstantWins:  s.pickInstantWins(*tickets, *instantWins),
	}

	competition, err := s.competitions.Create(ctx, req)
	if err != nil {
		return err
	}

	logger.Get().Info("Created competition",
		"id", competition.ID,
		"title", competition.Title,
		"tickets", req.TotalTickets,
		"instant_wins", len(req.InstantWins))
	return nil
}

// pickInstantWins chooses distinct ticket numbers in 1..total
func (s *seeder) pickInstantWins(total, count int) map[int]string {
	if count > total {
		count = total
	}
	prizes := []string{"£10 site credit", "£50 cash", "Free entry", "£100 cash"}
	wins := make(map[int]string, count)
	for len(wins) < count {
		number := s.rnd.Intn(total) + 1
		if _, taken := wins[number]; taken {
			continue
		}
		wins[number] = prizes[s.rnd.Intn(len(prizes))]
	}
	return wins
}

func (s *seeder) seedPromos(ctx context.Context) error {
	maxUses := 100
	until := time.Now().AddDate(0, 1, 0)
	promos := []models.PromoCode{
		{
			Code:          "WELCOME10",
			DiscountType:  models.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10),
			MinOrderValue: decimal.Zero,
			IsActive:      true,
		},
		{
			Code:          "FIVEOFF",
			DiscountType:  models.DiscountFixed,
			DiscountValue: decimal.NewFromInt(5),
			MinOrderValue: decimal.NewFromInt(20),
			MaxUses:       &maxUses,
			IsActive:      true,
			ValidUntil:    &until,
		},
	}

	for i := range promos {
		existing, err := s.promos.GetByCode(ctx, promos[i].Code)
		if err != nil {
			return err
		}
		if existing != nil {
			logger.Get().Info("Promo code already exists, skipping", "code", promos[i].Code)
			continue
		}
		if err := s.promos.Create(ctx, &promos[i]); err != nil {
			return fmt.Errorf("failed to create promo %s: %w", promos[i].Code, err)
		}
		logger.Get().Info("Created promo code", "code", promos[i].Code)
	}
	return nil
}
