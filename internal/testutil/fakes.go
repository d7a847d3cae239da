package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"raffle/internal/models"
)

// FakeCart keeps carts in a map.
type FakeCart struct {
	mu     sync.Mutex
	items  map[int64][]models.CartItem
	Clears int
}

func NewFakeCart() *FakeCart {
	return &FakeCart{items: make(map[int64][]models.CartItem)}
}

func (c *FakeCart) Snapshot(ctx context.Context, userID int64) ([]models.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.CartItem(nil), c.items[userID]...), nil
}

func (c *FakeCart) Add(ctx context.Context, userID int64, item models.CartItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.items[userID] {
		if existing.CompetitionID == item.CompetitionID {
			c.items[userID][i].Quantity += item.Quantity
			c.items[userID][i].UnitPrice = item.UnitPrice
			return nil
		}
	}
	c.items[userID] = append(c.items[userID], item)
	return nil
}

func (c *FakeCart) Remove(ctx context.Context, userID, competitionID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[userID][:0]
	for _, item := range c.items[userID] {
		if item.CompetitionID != competitionID {
			kept = append(kept, item)
		}
	}
	c.items[userID] = kept
	return nil
}

func (c *FakeCart) Clear(ctx context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, userID)
	c.Clears++
	return nil
}

// FakeGateway is a scriptable payment gateway. VerifyWebhook accepts any
// payload whose signature equals Secret.
type FakeGateway struct {
	mu      sync.Mutex
	Secret  string
	intents map[string]models.PaymentIntent
	next    int
	Refunds  []FakeRefund
	Canceled []string
	Err      error
}

type FakeRefund struct {
	IntentID    string
	AmountMinor int64
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{Secret: "whsec_test", intents: make(map[string]models.PaymentIntent)}
}

func (g *FakeGateway) CreatePaymentIntent(ctx context.Context, amountMinor int64, metadata map[string]string) (*models.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	g.next++
	id := fmt.Sprintf("pi_test_%d", g.next)
	intent := models.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		Amount:       amountMinor,
		Currency:     "gbp",
		Metadata:     metadata,
	}
	g.intents[id] = intent
	return &intent, nil
}

func (g *FakeGateway) RetrieveIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("no such payment_intent: %s", intentID)
	}
	return &intent, nil
}

func (g *FakeGateway) CancelIntent(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return g.Err
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return fmt.Errorf("no such payment_intent: %s", intentID)
	}
	if intent.Status == models.IntentStatusSucceeded || intent.Status == models.IntentStatusCanceled {
		return fmt.Errorf("payment_intent %s cannot be canceled from status %s", intentID, intent.Status)
	}
	intent.Status = models.IntentStatusCanceled
	g.intents[intentID] = intent
	g.Canceled = append(g.Canceled, intentID)
	return nil
}

func (g *FakeGateway) Refund(ctx context.Context, intentID string, amountMinor int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return g.Err
	}
	g.Refunds = append(g.Refunds, FakeRefund{IntentID: intentID, AmountMinor: amountMinor})
	return nil
}

func (g *FakeGateway) VerifyWebhook(payload []byte, signature string) (*models.GatewayEvent, error) {
	if signature != g.Secret {
		return nil, errors.New("signature mismatch")
	}

	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}
	return &models.GatewayEvent{ID: envelope.ID, Type: envelope.Type, Object: envelope.Data.Object}, nil
}

// SetStatus changes what RetrieveIntent reports for an intent.
func (g *FakeGateway) SetStatus(intentID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent := g.intents[intentID]
	intent.Status = status
	g.intents[intentID] = intent
}

func (g *FakeGateway) SetAmount(intentID string, amountMinor int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent := g.intents[intentID]
	intent.Amount = amountMinor
	g.intents[intentID] = intent
}

func (g *FakeGateway) Intent(intentID string) models.PaymentIntent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.intents[intentID]
}

// Event builds a webhook body in the gateway's envelope format.
func Event(id, eventType string, object any) []byte {
	raw, err := json.Marshal(object)
	if err != nil {
		panic(err)
	}
	body, err := json.Marshal(map[string]any{
		"id":   id,
		"type": eventType,
		"data": map[string]json.RawMessage{"object": raw},
	})
	if err != nil {
		panic(err)
	}
	return body
}

// RecordingPublisher remembers every published subject.
type RecordingPublisher struct {
	mu       sync.Mutex
	Subjects []string
}

func (p *RecordingPublisher) Publish(subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Subjects = append(p.Subjects, subject)
	return nil
}

func (p *RecordingPublisher) Count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.Subjects {
		if s == subject {
			n++
		}
	}
	return n
}
