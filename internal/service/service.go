package service

type Services struct {
	Competitions *CompetitionService
	Orders       *OrderService
	Checkout     *CheckoutService
	Wallets      *WalletLedger
	Promos       *PromoEngine
	Tickets      *TicketLedger
	Webhooks     *WebhookService
	Cart         Cart
}

func NewServices(store Store, cart Cart, payments PaymentGateway, publisher Publisher, cfg CheckoutConfig) *Services {
	wallets := NewWalletLedger(store, publisher)
	promos := NewPromoEngine(store)
	checkout := NewCheckoutService(store, cart, payments, publisher, promos, wallets, cfg)

	return &Services{
		Competitions: NewCompetitionService(store),
		Orders:       NewOrderService(store),
		Checkout:     checkout,
		Wallets:      wallets,
		Promos:       promos,
		Tickets:      NewTicketLedger(store.Repos().Tickets),
		Webhooks:     NewWebhookService(store, payments, checkout, wallets),
		Cart:         cart,
	}
}
