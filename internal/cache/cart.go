package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"raffle/internal/models"

	"github.com/redis/go-redis/v9"
)

const CartTTL = 7 * 24 * time.Hour

type Config struct {
	Addr     string
	Password string
	DB       int
}

// CartStore keeps one hash per user, field = competition id.
type CartStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

func NewCartStore(client *redis.Client) *CartStore {
	return &CartStore{client: client, ttl: CartTTL}
}

func cartKey(userID int64) string {
	return "cart:" + strconv.FormatInt(userID, 10)
}

func (s *CartStore) Snapshot(ctx context.Context, userID int64) ([]models.CartItem, error) {
	fields, err := s.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	items := make([]models.CartItem, 0, len(fields))
	for field, raw := range fields {
		var item models.CartItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("corrupt cart line %s: %w", field, err)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CompetitionID < items[j].CompetitionID })
	return items, nil
}

// Add merges quantities for a competition already in the cart. The read and
// write run in a WATCH transaction so parallel adds do not lose quantity.
func (s *CartStore) Add(ctx context.Context, userID int64, item models.CartItem) error {
	key := cartKey(userID)
	field := strconv.FormatInt(item.CompetitionID, 10)

	txf := func(tx *redis.Tx) error {
		line := item
		raw, err := tx.HGet(ctx, key, field).Result()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			var existing models.CartItem
			if err := json.Unmarshal([]byte(raw), &existing); err == nil {
				line.Quantity += existing.Quantity
			}
		}

		payload, err := json.Marshal(line)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, payload)
			pipe.Expire(ctx, key, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to add cart item: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed to add cart item: too much contention")
}

func (s *CartStore) Remove(ctx context.Context, userID, competitionID int64) error {
	if err := s.client.HDel(ctx, cartKey(userID), strconv.FormatInt(competitionID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

func (s *CartStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (s *CartStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
