package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"proxymart/internal/app/handler"
	mw "proxymart/internal/app/middleware"
)

func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(mw.Log(a.logger))

	auth := mw.Auth(a.session)
	admin := mw.AdminOnly()

	uh := handler.NewUserHandler(a.users, a.session)
	bh := handler.NewBalanceHandler(
		a.users, a.ledger, a.gateway,
		a.minTopup(),
		a.config.Gateway.CallbackURL,
		a.config.Gateway.ReturnURL,
		a.config.Gateway.PaymentLifetime,
	)
	wh := handler.NewWebhookHandler(a.settlement)
	ph := handler.NewPurchaseHandler(a.purchases, a.ledger)
	ch := handler.NewCartHandler(a.cart, a.services, a.purchases)
	sh := handler.NewServiceHandler(a.services)
	ah := handler.NewAdminHandler(a.users, a.ledger, a.services)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Post("/login", uh.Login)
			r.Post("/register", uh.Register)
			r.With(auth).Get("/me", uh.Me)
			r.With(auth).Post("/logout", uh.Logout)
		})

		r.Get("/services", sh.List)

		// Gateway webhook: public, authenticated by signature.
		r.Post("/balance/webhook", wh.Settle)

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Route("/balance", func(r chi.Router) {
				r.Get("/", bh.Balance)
				r.Post("/", bh.CreateTopup)
				r.Get("/history", bh.History)
			})

			r.Route("/purchases", func(r chi.Router) {
				r.Get("/", ph.List)
				r.Post("/", ph.Create)
				r.Get("/{id}", ph.Details)
				r.Post("/{id}/extend", ph.Extend)
				r.Get("/{id}/traffic", ph.Traffic)
				r.Delete("/{id}", ph.Cancel)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", ch.List)
				r.Post("/", ch.Add)
				r.Delete("/{itemId}", ch.Remove)
				r.Post("/checkout", ch.Checkout)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(admin)
				r.Get("/users", ah.ListUsers)
				r.Get("/users/{id}", ah.UserDetails)
				r.Put("/users/{id}", ah.SetBalance)
				r.Get("/transactions", ah.ListTransactions)
				r.Post("/services", ah.CreateService)
			})
		})
	})

	return r
}
