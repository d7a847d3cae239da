package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"raffle/internal/models"
	"raffle/internal/service"

	"github.com/shopspring/decimal"
)

// MemStore is an in-memory service.Store. A transaction holds the store lock
// for its whole duration and restores a snapshot when fn fails, which gives
// the same all-or-nothing behaviour the Postgres store gets from BEGIN/ROLLBACK.
type MemStore struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	nextID       int64
	competitions map[int64]models.Competition
	tickets      map[int64]models.Ticket
	orders       map[int64]models.Order
	wallets      map[int64]models.Wallet
	walletTxns   []models.WalletTransaction
	promos       map[int64]models.PromoCode
}

func NewMemStore() *MemStore {
	return &MemStore{data: &memData{
		competitions: make(map[int64]models.Competition),
		tickets:      make(map[int64]models.Ticket),
		orders:       make(map[int64]models.Order),
		wallets:      make(map[int64]models.Wallet),
		promos:       make(map[int64]models.PromoCode),
	}}
}

func (d *memData) id() int64 {
	d.nextID++
	return d.nextID
}

func (d *memData) clone() *memData {
	c := &memData{
		nextID:       d.nextID,
		competitions: make(map[int64]models.Competition, len(d.competitions)),
		tickets:      make(map[int64]models.Ticket, len(d.tickets)),
		orders:       make(map[int64]models.Order, len(d.orders)),
		wallets:      make(map[int64]models.Wallet, len(d.wallets)),
		walletTxns:   append([]models.WalletTransaction(nil), d.walletTxns...),
		promos:       make(map[int64]models.PromoCode, len(d.promos)),
	}
	for k, v := range d.competitions {
		c.competitions[k] = v
	}
	for k, v := range d.tickets {
		c.tickets[k] = v
	}
	for k, v := range d.orders {
		v.Items = append([]models.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range d.wallets {
		c.wallets[k] = v
	}
	for k, v := range d.promos {
		c.promos[k] = v
	}
	return c
}

func (s *MemStore) Repos() service.Repos {
	return s.repos(false)
}

func (s *MemStore) InTx(ctx context.Context, fn func(r service.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	committed := false
	defer func() {
		if !committed {
			s.data = snapshot
		}
	}()

	if err := fn(s.repos(true)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *MemStore) repos(inTx bool) service.Repos {
	base := memRepo{store: s, inTx: inTx}
	return service.Repos{
		Competitions: competitionRepo{base},
		Tickets:      ticketRepo{base},
		Orders:       orderRepo{base},
		Wallets:      walletRepo{base},
		Promos:       promoRepo{base},
	}
}

// AgeOrder moves an order's creation time into the past.
func (s *MemStore) AgeOrder(orderID int64, by time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.data.orders[orderID]; ok {
		o.CreatedAt = o.CreatedAt.Add(-by)
		s.data.orders[orderID] = o
	}
}

// WalletTransactions returns every ledger row of a wallet, oldest first.
func (s *MemStore) WalletTransactions(walletID int64) []models.WalletTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WalletTransaction
	for _, t := range s.data.walletTxns {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out
}

type memRepo struct {
	store *MemStore
	inTx  bool
}

func (r memRepo) do(fn func(d *memData) error) error {
	if !r.inTx {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
	}
	return fn(r.store.data)
}

type competitionRepo struct{ memRepo }

func (r competitionRepo) Create(ctx context.Context, c *models.Competition) error {
	return r.do(func(d *memData) error {
		now := time.Now()
		c.ID = d.id()
		if c.Status == "" {
			c.Status = models.CompetitionActive
		}
		c.TicketsSold = 0
		c.CreatedAt, c.UpdatedAt = now, now
		d.competitions[c.ID] = *c
		return nil
	})
}

func (r competitionRepo) GetByID(ctx context.Context, id int64) (*models.Competition, error) {
	var out *models.Competition
	err := r.do(func(d *memData) error {
		if c, ok := d.competitions[id]; ok {
			out = &c
		}
		return nil
	})
	return out, err
}

func (r competitionRepo) LockByID(ctx context.Context, id int64) (*models.Competition, error) {
	return r.GetByID(ctx, id)
}

func (r competitionRepo) SetStatus(ctx context.Context, id int64, status models.CompetitionStatus) error {
	return r.do(func(d *memData) error {
		if c, ok := d.competitions[id]; ok {
			c.Status = status
			d.competitions[id] = c
		}
		return nil
	})
}

func (r competitionRepo) SetWinner(ctx context.Context, id, ticketID int64) (bool, error) {
	var ok bool
	err := r.do(func(d *memData) error {
		c, found := d.competitions[id]
		if !found || c.Status == models.CompetitionDrawn {
			return nil
		}
		c.WinningTicketID = &ticketID
		c.Status = models.CompetitionDrawn
		d.competitions[id] = c
		ok = true
		return nil
	})
	return ok, err
}

type ticketRepo struct{ memRepo }

func (r ticketRepo) CreatePool(ctx context.Context, competitionID int64, total int, instantWins map[int]string) error {
	return r.do(func(d *memData) error {
		for _, t := range d.tickets {
			if t.CompetitionID == competitionID {
				return fmt.Errorf("duplicate key value violates unique constraint on (competition_id, ticket_number)")
			}
		}
		now := time.Now()
		for n := 1; n <= total; n++ {
			t := models.Ticket{
				ID:            d.id(),
				CompetitionID: competitionID,
				TicketNumber:  n,
				Status:        models.TicketAvailable,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if prize, ok := instantWins[n]; ok {
				p := prize
				t.IsInstantWin = true
				t.InstantWinPrize = &p
			}
			d.tickets[t.ID] = t
		}
		for n := range instantWins {
			if n < 1 || n > total {
				return fmt.Errorf("instant win ticket %d outside pool 1..%d", n, total)
			}
		}
		return nil
	})
}

func (r ticketRepo) Reserve(ctx context.Context, competitionID int64, quantity int, userID, orderID int64) ([]models.Ticket, error) {
	var out []models.Ticket
	err := r.do(func(d *memData) error {
		available := d.ticketsWhere(func(t models.Ticket) bool {
			return t.CompetitionID == competitionID && t.Status == models.TicketAvailable
		})
		if len(available) > quantity {
			available = available[:quantity]
		}
		for _, t := range available {
			u, o := userID, orderID
			t.Status = models.TicketReserved
			t.UserID, t.OrderID = &u, &o
			t.UpdatedAt = time.Now()
			d.tickets[t.ID] = t
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

func (r ticketRepo) MarkSold(ctx context.Context, ticketIDs []int64) (int64, error) {
	var n int64
	err := r.do(func(d *memData) error {
		for _, id := range ticketIDs {
			t, ok := d.tickets[id]
			if !ok || t.Status != models.TicketReserved {
				continue
			}
			now := time.Now()
			t.Status = models.TicketSold
			t.PurchasedAt = &now
			d.tickets[id] = t
			d.adjustSold(t.CompetitionID, 1)
			n++
		}
		return nil
	})
	return n, err
}

func (r ticketRepo) Release(ctx context.Context, orderID int64) (int64, error) {
	var n int64
	err := r.do(func(d *memData) error {
		for id, t := range d.tickets {
			if t.OrderID == nil || *t.OrderID != orderID {
				continue
			}
			if t.Status == models.TicketSold {
				d.adjustSold(t.CompetitionID, -1)
			}
			t.Status = models.TicketAvailable
			t.UserID, t.OrderID, t.PurchasedAt = nil, nil, nil
			d.tickets[id] = t
			n++
		}
		return nil
	})
	return n, err
}

func (r ticketRepo) CountByStatus(ctx context.Context, competitionID int64, status models.TicketStatus) (int, error) {
	var n int
	err := r.do(func(d *memData) error {
		n = len(d.ticketsWhere(func(t models.Ticket) bool {
			return t.CompetitionID == competitionID && t.Status == status
		}))
		return nil
	})
	return n, err
}

func (r ticketRepo) Stats(ctx context.Context, competitionID int64) (*models.PoolStats, error) {
	stats := &models.PoolStats{CompetitionID: competitionID}
	err := r.do(func(d *memData) error {
		for _, t := range d.ticketsWhere(func(t models.Ticket) bool { return t.CompetitionID == competitionID }) {
			stats.Total++
			switch t.Status {
			case models.TicketAvailable:
				stats.Available++
			case models.TicketReserved:
				stats.Reserved++
			case models.TicketSold:
				stats.Sold++
			}
		}
		return nil
	})
	return stats, err
}

func (r ticketRepo) ListByOrder(ctx context.Context, orderID int64) ([]models.Ticket, error) {
	var out []models.Ticket
	err := r.do(func(d *memData) error {
		out = d.ticketsWhere(func(t models.Ticket) bool { return t.OrderID != nil && *t.OrderID == orderID })
		return nil
	})
	return out, err
}

func (r ticketRepo) SoldAt(ctx context.Context, competitionID int64, position int) (*models.Ticket, error) {
	var out *models.Ticket
	err := r.do(func(d *memData) error {
		sold := d.ticketsWhere(func(t models.Ticket) bool {
			return t.CompetitionID == competitionID && t.Status == models.TicketSold
		})
		if position >= 0 && position < len(sold) {
			out = &sold[position]
		}
		return nil
	})
	return out, err
}

// ticketsWhere returns matches ordered by competition then ticket number.
func (d *memData) ticketsWhere(match func(models.Ticket) bool) []models.Ticket {
	var out []models.Ticket
	for _, t := range d.tickets {
		if match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompetitionID != out[j].CompetitionID {
			return out[i].CompetitionID < out[j].CompetitionID
		}
		return out[i].TicketNumber < out[j].TicketNumber
	})
	return out
}

func (d *memData) adjustSold(competitionID int64, delta int) {
	if c, ok := d.competitions[competitionID]; ok {
		c.TicketsSold += delta
		d.competitions[competitionID] = c
	}
}

type orderRepo struct{ memRepo }

func (r orderRepo) Create(ctx context.Context, order *models.Order) error {
	return r.do(func(d *memData) error {
		if !order.TotalIsConsistent() {
			return fmt.Errorf("new row for relation \"orders\" violates check constraint")
		}
		for _, o := range d.orders {
			if o.OrderNumber == order.OrderNumber {
				return fmt.Errorf("duplicate key value violates unique constraint \"orders_order_number_key\"")
			}
		}
		now := time.Now()
		order.ID = d.id()
		order.CreatedAt, order.UpdatedAt = now, now
		for i := range order.Items {
			order.Items[i].ID = d.id()
			order.Items[i].OrderID = order.ID
		}
		stored := *order
		stored.Items = append([]models.OrderItem(nil), order.Items...)
		d.orders[order.ID] = stored
		return nil
	})
}

func (r orderRepo) find(match func(models.Order) bool, withItems bool) (*models.Order, error) {
	var out *models.Order
	err := r.do(func(d *memData) error {
		for _, o := range d.orders {
			if match(o) {
				found := o
				if withItems {
					found.Items = append([]models.OrderItem(nil), o.Items...)
				} else {
					found.Items = nil
				}
				out = &found
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r orderRepo) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.ID == id }, false)
}

func (r orderRepo) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.OrderNumber == orderNumber }, false)
}

func (r orderRepo) GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.PaymentIntentID != nil && *o.PaymentIntentID == intentID }, false)
}

func (r orderRepo) GetWithItems(ctx context.Context, id int64) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.ID == id }, true)
}

func (r orderRepo) GetByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var out []models.Order
	err := r.do(func(d *memData) error {
		for _, o := range d.orders {
			if o.UserID == userID {
				o.Items = nil
				out = append(out, o)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
		return nil
	})
	return out, err
}

func (r orderRepo) GetExpiredPending(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	var out []models.Order
	err := r.do(func(d *memData) error {
		for _, o := range d.orders {
			if o.Status == models.OrderPending && o.CreatedAt.Before(before) {
				o.Items = nil
				out = append(out, o)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r orderRepo) TransitionStatus(ctx context.Context, id int64, from []models.OrderStatus, to models.OrderStatus, reason *string) (bool, error) {
	var ok bool
	err := r.do(func(d *memData) error {
		o, found := d.orders[id]
		if !found {
			return nil
		}
		for _, s := range from {
			if o.Status == s {
				ok = true
			}
		}
		if !ok {
			return nil
		}
		now := time.Now()
		o.Status = to
		o.UpdatedAt = now
		if to == models.OrderPaid {
			o.PaidAt = &now
		}
		if reason != nil {
			rs := *reason
			o.FailureReason = &rs
		}
		d.orders[id] = o
		return nil
	})
	return ok, err
}

func (r orderRepo) SetPaymentIntent(ctx context.Context, id int64, intentID string) (bool, error) {
	var ok bool
	err := r.do(func(d *memData) error {
		for _, o := range d.orders {
			if o.PaymentIntentID != nil && *o.PaymentIntentID == intentID && o.ID != id {
				return fmt.Errorf("duplicate key value violates unique constraint \"orders_payment_intent_id_key\"")
			}
		}
		o, found := d.orders[id]
		if !found || o.Status != models.OrderPending || o.PaymentIntentID != nil {
			return nil
		}
		pi := intentID
		o.PaymentIntentID = &pi
		d.orders[id] = o
		ok = true
		return nil
	})
	return ok, err
}

type walletRepo struct{ memRepo }

func (r walletRepo) GetOrCreate(ctx context.Context, userID int64) (*models.Wallet, error) {
	var out *models.Wallet
	err := r.do(func(d *memData) error {
		for _, w := range d.wallets {
			if w.UserID == userID {
				out = &w
				return nil
			}
		}
		now := time.Now()
		w := models.Wallet{ID: d.id(), UserID: userID, Balance: decimal.Zero, CreatedAt: now, UpdatedAt: now}
		d.wallets[w.ID] = w
		out = &w
		return nil
	})
	return out, err
}

func (r walletRepo) GetByUserID(ctx context.Context, userID int64) (*models.Wallet, error) {
	var out *models.Wallet
	err := r.do(func(d *memData) error {
		for _, w := range d.wallets {
			if w.UserID == userID {
				out = &w
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r walletRepo) GetByID(ctx context.Context, id int64) (*models.Wallet, error) {
	var out *models.Wallet
	err := r.do(func(d *memData) error {
		if w, ok := d.wallets[id]; ok {
			out = &w
		}
		return nil
	})
	return out, err
}

func (r walletRepo) LockByID(ctx context.Context, id int64) (*models.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r walletRepo) Credit(ctx context.Context, walletID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.do(func(d *memData) error {
		w, ok := d.wallets[walletID]
		if !ok {
			return fmt.Errorf("wallet %d not found", walletID)
		}
		w.Balance = w.Balance.Add(amount)
		w.UpdatedAt = time.Now()
		d.wallets[walletID] = w
		balance = w.Balance
		return nil
	})
	return balance, err
}

func (r walletRepo) Debit(ctx context.Context, walletID int64, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	var balance decimal.Decimal
	var ok bool
	err := r.do(func(d *memData) error {
		w, found := d.wallets[walletID]
		if !found || w.Balance.LessThan(amount) {
			return nil
		}
		w.Balance = w.Balance.Sub(amount)
		w.UpdatedAt = time.Now()
		d.wallets[walletID] = w
		balance, ok = w.Balance, true
		return nil
	})
	return balance, ok, err
}

func (r walletRepo) InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.do(func(d *memData) error {
		if txn.BalanceAfter.IsNegative() {
			return fmt.Errorf("new row for relation \"wallet_transactions\" violates check constraint")
		}
		if txn.ReferenceID != nil {
			for _, t := range d.walletTxns {
				if t.WalletID == txn.WalletID && t.Type == txn.Type && t.ReferenceID != nil && *t.ReferenceID == *txn.ReferenceID {
					return fmt.Errorf("duplicate key value violates unique constraint \"wallet_transactions_reference_uniq\"")
				}
			}
		}
		txn.ID = d.id()
		txn.CreatedAt = time.Now()
		d.walletTxns = append(d.walletTxns, *txn)
		return nil
	})
}

func (r walletRepo) FindTransaction(ctx context.Context, walletID int64, txnType models.WalletTransactionType, referenceID string) (*models.WalletTransaction, error) {
	var out *models.WalletTransaction
	err := r.do(func(d *memData) error {
		for _, t := range d.walletTxns {
			if t.WalletID == walletID && t.Type == txnType && t.ReferenceID != nil && *t.ReferenceID == referenceID {
				found := t
				out = &found
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r walletRepo) ListTransactions(ctx context.Context, walletID int64, filter models.TransactionFilter) ([]models.WalletTransaction, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var out []models.WalletTransaction
	err := r.do(func(d *memData) error {
		for i := len(d.walletTxns) - 1; i >= 0; i-- {
			t := d.walletTxns[i]
			if t.WalletID != walletID || (filter.Type != nil && t.Type != *filter.Type) {
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	if filter.Offset >= len(out) {
		return nil, err
	}
	out = out[filter.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type promoRepo struct{ memRepo }

func (r promoRepo) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var out *models.PromoCode
	err := r.do(func(d *memData) error {
		for _, p := range d.promos {
			if strings.EqualFold(p.Code, code) {
				out = &p
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r promoRepo) IncrementUsage(ctx context.Context, code string) (bool, error) {
	var ok bool
	err := r.do(func(d *memData) error {
		for id, p := range d.promos {
			if !strings.EqualFold(p.Code, code) {
				continue
			}
			if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
				return nil
			}
			p.CurrentUses++
			d.promos[id] = p
			ok = true
			return nil
		}
		return nil
	})
	return ok, err
}

func (r promoRepo) Create(ctx context.Context, promo *models.PromoCode) error {
	return r.do(func(d *memData) error {
		for _, p := range d.promos {
			if strings.EqualFold(p.Code, promo.Code) {
				return fmt.Errorf("duplicate key value violates unique constraint \"promo_codes_code_lower_uniq\"")
			}
		}
		promo.ID = d.id()
		promo.CreatedAt = time.Now()
		d.promos[promo.ID] = *promo
		return nil
	})
}
