// Package server assembles the registry: it opens the configured backends,
// builds every service and mounts their routes on one gin engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/auth"
	"samudra-ledger/registry-backend/internal/chain"
	"samudra-ledger/registry-backend/internal/config"
	"samudra-ledger/registry-backend/internal/credits"
	"samudra-ledger/registry-backend/internal/logger"
	"samudra-ledger/registry-backend/internal/metrics"
	"samudra-ledger/registry-backend/internal/mrv"
	"samudra-ledger/registry-backend/internal/notifications"
	"samudra-ledger/registry-backend/internal/notifications/websocket"
	"samudra-ledger/registry-backend/internal/payments"
	"samudra-ledger/registry-backend/internal/projects"
	"samudra-ledger/registry-backend/internal/registry"
	"samudra-ledger/registry-backend/internal/stats"
	"samudra-ledger/registry-backend/internal/verification"
	"samudra-ledger/registry-backend/pkg/kvstore"
	"samudra-ledger/registry-backend/pkg/pdf"
	"samudra-ledger/registry-backend/pkg/security"
	"samudra-ledger/registry-backend/pkg/storage"
)

// App is a fully wired registry backend.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     kvstore.Store
	files     storage.FileStore
	router    *gin.Engine
	hub       *websocket.Manager
	ledger    *chain.SimulatedLedger
	confirmer *chain.Confirmer
	metrics   *metrics.Metrics
}

// Option customises New; tests use it to inject backends.
type Option func(*App)

// WithStore replaces the configured key-value backend.
func WithStore(store kvstore.Store) Option {
	return func(a *App) { a.store = store }
}

// WithFileStore replaces the configured evidence file store.
func WithFileStore(files storage.FileStore) Option {
	return func(a *App) { a.files = files }
}

// New opens backends and wires every component.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	app := &App{cfg: cfg, logger: log}
	for _, opt := range opts {
		opt(app)
	}

	if app.store == nil {
		store, err := openStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		app.store = store
	}
	if app.files == nil {
		files, err := openFileStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.files = files
	}

	statsSvc := stats.NewService(app.store, log)
	if err := statsSvc.EnsureCounters(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialise counters: %w", err)
	}

	tokens := security.NewTokenService(cfg.Security.JWTSecret, cfg.Security.TokenIssuer, cfg.Security.TokenTTL)
	authSvc := auth.NewService(auth.NewRepository(app.store), tokens, cfg.Security.VerifierAllowList, log)

	app.metrics = metrics.New(prometheus.NewRegistry())
	app.hub = websocket.NewManager(cfg.Server.AllowedOrigins, log)
	publisher := notifications.Fanout{app.hub, app.metrics}
	external, err := openChannels(ctx, cfg, authSvc, log)
	if err != nil {
		return nil, err
	}
	publisher = append(publisher, external...)

	app.ledger = chain.NewSimulatedLedger(app.store, cfg.Chain.Network, cfg.Chain.ConfirmationDelay, publisher, log)
	app.confirmer = chain.NewConfirmer(app.ledger, cfg.Chain.ConfirmationCron, log)

	pricing := payments.Pricing{
		USDPerCredit:    cfg.Payments.USDPerCredit,
		INRPerUSD:       cfg.Payments.INRPerUSD,
		PlatformFeeRate: cfg.Payments.PlatformFeeRate,
	}
	provider := payments.NewMockProvider(app.store, pricing, cfg.Payments.CheckoutBaseURL)
	paymentSvc := payments.NewService(app.store, provider, credits.NewCatalog(app.store), pricing, log)

	estimator := mrv.NewSimulatedEstimator(storage.NewHashPinner(), nil)

	projectSvc := projects.NewService(app.store, app.ledger, authSvc, publisher, log)
	mrvSvc := mrv.NewService(app.store, app.files, estimator, app.ledger, publisher, cfg.Files.PresignTTL, log)
	creditSvc := credits.NewService(credits.Deps{
		Store:        app.store,
		Payments:     provider,
		Payouts:      paymentSvc,
		Chain:        app.ledger,
		Users:        authSvc,
		Publisher:    publisher,
		Certificates: pdf.NewCertificateGenerator(pdf.DefaultOptions()),
		Logger:       log,
	})

	router := gin.New()
	router.Use(gin.Recovery(), logger.RequestLogger(log), app.metrics.Middleware(), cors(cfg.Server.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	router.GET("/metrics", gin.WrapH(app.metrics.Handler()))

	public := router.Group("")
	auth.NewHandler(authSvc, log).RegisterRoutes(public)
	stats.NewHandler(statsSvc, log).RegisterRoutes(public)
	chain.NewHandler(app.ledger, log).RegisterRoutes(public)

	protected := router.Group("", authSvc.RequireAuth())
	projects.NewHandler(projectSvc, log).RegisterRoutes(protected)
	mrv.NewHandler(mrvSvc, log).RegisterRoutes(protected)
	verification.NewHandler(verification.NewService(app.store, log), log).RegisterRoutes(protected)
	credits.NewHandler(creditSvc, log).RegisterRoutes(protected)
	payments.NewHandler(paymentSvc, log).RegisterRoutes(protected)
	registry.NewHandler(registry.NewService(app.store, log), log).RegisterRoutes(protected)
	websocket.NewHandler(app.hub, log).RegisterRoutes(protected)

	app.router = router
	return app, nil
}

func (a *App) Handler() http.Handler { return a.router }

// Start launches background work: the chain confirmation sweep.
func (a *App) Start(ctx context.Context) error {
	return a.confirmer.Start(ctx)
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	a.confirmer.Stop()
	a.hub.Close()
	return a.store.Close()
}
