package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "raffle_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_checkouts_total",
		Help: "Checkout attempts by outcome (paid, pending, rejected, error).",
	}, []string{"outcome"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_order_transitions_total",
		Help: "Order status transitions performed, by target status.",
	}, []string{"status"})

	TicketsSoldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_tickets_sold_total",
		Help: "Tickets moved from reserved to sold.",
	})

	TicketsReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_tickets_released_total",
		Help: "Tickets returned to the available pool.",
	})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_webhook_events_total",
		Help: "Payment gateway webhook deliveries by event type and result.",
	}, []string{"type", "result"})

	WalletOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_wallet_operations_total",
		Help: "Wallet ledger writes by transaction type.",
	}, []string{"type"})

	ExpiredOrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_expired_orders_total",
		Help: "Pending orders cancelled by the expiration sweep.",
	})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_events_consumed_total",
		Help: "Domain events handled by the worker, by subject and result.",
	}, []string{"subject", "result"})

	InstantWinsSoldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_instant_wins_sold_total",
		Help: "Instant-win tickets sold to customers.",
	})

	DBConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "raffle_db_connections",
		Help: "Database pool connections by state (in_use, idle, open).",
	}, []string{"state"})

	DBWaitSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "raffle_db_wait_seconds",
		Help: "Cumulative time spent waiting for a pooled connection.",
	})
)
