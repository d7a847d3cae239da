package consumers

import (
	"context"

	"raffle/internal/logger"
	"raffle/internal/messaging"
	"raffle/internal/metrics"
	"raffle/internal/models"

	"github.com/nats-io/stan.go"
)

const queueGroup = "raffle-worker"

type handlerFunc func(ctx context.Context, data []byte) error

type ConsumerService struct {
	nats     *messaging.NATSClient
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(nats *messaging.NATSClient, handlers *Handlers) *ConsumerService {
	return &ConsumerService{nats: nats, handlers: handlers}
}

func (cs *ConsumerService) Start(ctx context.Context) error {
	logger.Get().Info("Starting NATS consumers...")

	routes := map[string]handlerFunc{
		models.EventOrderPaid:      cs.handlers.HandleOrderPaid,
		models.EventOrderFailed:    cs.handlers.HandleOrderClosed,
		models.EventOrderCancelled: cs.handlers.HandleOrderClosed,
		models.EventOrderRefunded:  cs.handlers.HandleOrderClosed,
		models.EventTicketsRelease: cs.handlers.HandleTicketsReleased,
		models.EventWalletCredited: cs.handlers.HandleWalletCredited,
	}

	for subject, handle := range routes {
		sub, err := cs.nats.SubscribeQueue(subject, queueGroup, ackAfter(ctx, subject, handle))
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	logger.Get().Info("All consumers started successfully", "subjects", len(routes))
	return nil
}

// ackAfter acks only when handle succeeds, so failed messages are redelivered
// after AckWait.
func ackAfter(ctx context.Context, subject string, handle handlerFunc) stan.MsgHandler {
	return func(m *stan.Msg) {
		if err := handle(ctx, m.Data); err != nil {
			metrics.EventsConsumedTotal.WithLabelValues(subject, "error").Inc()
			logger.Get().Error("Failed to handle event",
				"error", err,
				"subject", subject,
				"sequence", m.Sequence,
				"redelivered", m.Redelivered)
			return
		}

		metrics.EventsConsumedTotal.WithLabelValues(subject, "ok").Inc()
		if err := m.Ack(); err != nil {
			logger.Get().Error("Failed to ack event", "error", err, "subject", subject)
		}
	}
}

func (cs *ConsumerService) Shutdown() {
	logger.Get().Info("Shutting down consumers...")
	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			logger.Get().Error("Error closing subscription", "error", err)
		}
	}
}
