package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"payment-service/internal/config"
	"payment-service/internal/handler"
	"payment-service/internal/middleware"
	"payment-service/internal/provider/pawapay"
	"payment-service/internal/recon"
	"payment-service/internal/repository"
	"payment-service/internal/router"
	"payment-service/internal/usecase/escrow"
	"payment-service/internal/usecase/ledger"
	"payment-service/internal/usecase/payment"
	"payment-service/internal/usecase/wallet"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	poller     *recon.Poller
	db         *pgxpool.Pool
	redis      *redis.Client
	logger     *zap.Logger

	cancelPoller context.CancelFunc
}

func New(cfg config.AppConfig, logger *zap.Logger) (*Server, error) {
	db, err := config.ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if cfg.RunMigrations {
		if err := config.MigrateUp(cfg); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass})

	walletRepo := repository.NewWalletRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	escrowRepo := repository.NewEscrowRepository(db)

	notifier := wallet.NewNotifier(rdb, logger)
	gateway := pawapay.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIToken, cfg.GatewayTimeout)

	ledgerSvc := ledger.New(txRepo, notifier, logger)
	walletSvc := wallet.New(walletRepo, txRepo, logger)
	paymentSvc := payment.New(gateway, ledgerSvc, walletRepo, logger)
	escrowSvc := escrow.New(escrowRepo, notifier, logger)

	verifier, err := middleware.NewWebhookVerifier(
		cfg.WebhookSecret, cfg.WebhookSigHeader, cfg.WebhookFallbackHeader,
		cfg.WebhookAllowedCIDRs, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("webhook verifier: %w", err)
	}

	mux := router.New(router.Deps{
		Payments:  handler.NewPaymentHandler(paymentSvc, walletSvc, logger),
		Webhooks:  handler.NewWebhookHandler(ledgerSvc, walletRepo, logger),
		Escrow:    handler.NewEscrowHandler(escrowSvc, logger),
		Verifier:  verifier,
		Redis:     rdb,
		JWTSecret: cfg.JWTSecret,
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		poller: recon.New(ledgerSvc, gateway, cfg.ReconInterval, logger),
		db:     db,
		redis:  rdb,
		logger: logger,
	}, nil
}

func (s *Server) ListenAndServe() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelPoller = cancel
	go s.poller.Run(ctx)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelPoller != nil {
		s.cancelPoller()
	}
	defer func() {
		s.db.Close()
		_ = s.redis.Close()
	}()
	return s.httpServer.Shutdown(ctx)
}
