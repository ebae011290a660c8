package router

import (
	"net/http"
	"time"

	"payment-service/internal/handler"
	"payment-service/internal/middleware"
	"payment-service/internal/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
)

type Deps struct {
	Payments  *handler.PaymentHandler
	Webhooks  *handler.WebhookHandler
	Escrow    *handler.EscrowHandler
	Verifier  *middleware.WebhookVerifier
	Redis     *redis.Client
	JWTSecret string
}

func New(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/payments/health", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"service": "payment-service", "status": "ok"})
	})

	// user-facing routes: auth first so the rate limiter keys by user id
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(d.JWTSecret))
		r.Use(middleware.RateLimiter(d.Redis, 30, time.Minute, "rl:payments"))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/deposit", d.Payments.HandleDeposit)
			r.Post("/withdraw", d.Payments.HandleWithdraw)
			r.Get("/wallet", d.Payments.HandleWallet)
			r.Get("/transactions", d.Payments.HandleTransactions)
		})
	})

	// provider callbacks: allowlist then signature, no user auth
	r.Group(func(r chi.Router) {
		r.Use(d.Verifier.Middleware)
		r.Post("/webhooks/payment-provider/{kind}", d.Webhooks.HandleProviderCallback)
	})

	// collaborator calls, reachable on the internal network only
	r.Route("/internal", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/accepted", d.Escrow.HandleOrderAccepted)
			r.Post("/completed", d.Escrow.HandleOrderCompleted)
			r.Post("/cancelled", d.Escrow.HandleOrderCancelled)
		})
		r.Post("/refunds", d.Payments.HandleRefund)
	})

	return r
}
