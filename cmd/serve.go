package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"arena-indexer/internal/auth"
	"arena-indexer/internal/blockchain"
	rediscache "arena-indexer/internal/cache/redis"
	"arena-indexer/internal/config"
	"arena-indexer/internal/database"
	"arena-indexer/internal/dedup"
	"arena-indexer/internal/handlers"
	"arena-indexer/internal/jobs"
	"arena-indexer/internal/metrics"
	"arena-indexer/internal/middleware"
	"arena-indexer/internal/notify"
	"arena-indexer/internal/ratelimit"
	"arena-indexer/internal/repository"
	"arena-indexer/internal/retry"
	"arena-indexer/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook ingress and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// stores are the swappable backends selected by REDIS_URL
type stores struct {
	processed dedup.Cache
	limits    ratelimit.Store
	cache     handlers.Pinger
	sinks     []notify.Sink
	close     func()
}

func openStores(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*stores, error) {
	if cfg.Redis.URL == "" {
		log.Info("REDIS_URL not set, using in-process rate limits and dedup cache")
		return &stores{
			processed: dedup.NewMemoryCache(cfg.Dedup.SweepThreshold),
			limits:    ratelimit.NewMemoryStore(),
			close:     func() {},
		}, nil
	}

	client, err := rediscache.New(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("Redis connection established successfully")
	return &stores{
		processed: rediscache.NewProcessedCache(client),
		limits:    rediscache.NewRateLimitStore(client),
		cache:     client,
		sinks:     []notify.Sink{notify.NewPublisherSink(rediscache.NewPublisher(client))},
		close: func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("Failed to close redis client")
			}
		},
	}, nil
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	if cfg.Webhook.Secret == "" {
		log.Warn("HELIUS_WEBHOOK_SECRET not set, webhook deliveries are accepted unsigned")
	}
	auth.InitJWT(cfg.App.JWTSecret)

	if err := database.Connect(cfg, log); err != nil {
		return err
	}
	db := database.GetDB()
	if err := database.AutoMigrate(db, log); err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	defer sqlDB.Close()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	sinks := st.sinks
	if cfg.Moddio.SecretKey != "" {
		sinks = append(sinks, notify.NewModdioSink(cfg.Moddio.APIURL, cfg.Moddio.SecretKey, cfg.Moddio.RequestTimeout))
	} else {
		log.Warn("MODDIO_SECRET_KEY not set, game alerts are disabled")
	}
	notifier := notify.NewNotifier(log, cfg.Moddio.RequestTimeout, sinks...)

	repo := repository.NewRepository(db)
	arena := services.NewArenaService(db, notifier, log, cfg.Moddio.BigBetThreshold)
	dispatcher := services.NewDispatcher(
		arena,
		services.NewShareService(db, notifier, log),
		services.NewAMMService(db, notifier, log),
		services.NewOrderService(db, notifier, log),
		log,
	)
	guard := dedup.NewGuard(st.processed, repo, cfg.Dedup.TTL, log)
	solana := blockchain.NewSolanaClient(cfg.Solana.RPCURL)

	router := newRouter(cfg, log, routerDeps{
		dispatcher: dispatcher,
		guard:      guard,
		repo:       repo,
		solana:     solana,
		database:   handlers.PingFunc(sqlDB.PingContext),
		cache:      st.cache,
		limits:     st.limits,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return jobs.NewVolumeResetJob(repo, cfg.Jobs.VolumeResetInterval, log).Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		if err := notifier.Wait(shutdownCtx); err != nil {
			log.WithError(err).Warn("Pending notifications dropped")
		}
		log.Info("Server exited")
		return nil
	})

	return g.Wait()
}

type routerDeps struct {
	dispatcher handlers.Dispatcher
	guard      *dedup.Guard
	repo       *repository.Repository
	solana     *blockchain.SolanaClient
	database   handlers.Pinger
	cache      handlers.Pinger
	limits     ratelimit.Store
}

func newRouter(cfg *config.Config, log *logrus.Logger, d routerDeps) *gin.Engine {
	production := cfg.App.IsProduction()

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", cfg.Webhook.SignatureHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if !production {
		pprof.Register(router)
	}
	router.NoRoute(handlers.NotFound(production))

	router.GET("/metrics", metrics.Handler())

	health := handlers.NewHealthHandler(d.database, d.solana, d.cache, cfg.Webhook.Secret != "")
	router.GET("/health", health.Health)
	router.GET("/health/ready", health.Ready)
	router.GET("/health/live", health.Live)

	webhookLimiter := ratelimit.NewLimiter(d.limits, cfg.RateLimit.WebhookMax, cfg.RateLimit.WebhookWindow)
	webhook := handlers.NewWebhookHandler(d.dispatcher, d.guard, handlers.WebhookOptions{
		Secret:          cfg.Webhook.Secret,
		SignatureHeader: cfg.Webhook.SignatureHeader,
		Retry: retry.Options{
			MaxAttempts:       cfg.Retry.MaxAttempts,
			InitialDelay:      cfg.Retry.InitialDelay,
			MaxDelay:          cfg.Retry.MaxDelay,
			BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		},
		Production:         production,
		MaxBodyBytes:       cfg.Webhook.MaxBodyBytes,
		MaxSignatureLength: cfg.Webhook.MaxSignatureLength,
	}, log)
	router.POST("/webhook/transaction",
		ratelimit.Middleware(webhookLimiter, "webhook", ratelimit.ClientIP, log, metrics.IncRateLimited),
		webhook.HandleTransaction,
	)

	if !auth.Enabled() {
		log.Warn("JWT_SECRET not set, admin routes are disabled")
		return router
	}
	apiLimiter := ratelimit.NewLimiter(d.limits, cfg.RateLimit.APIMax, cfg.RateLimit.APIWindow)
	admin := handlers.NewAdminHandler(d.repo, d.guard, d.solana, production, log)
	adminGroup := router.Group("/api/admin")
	adminGroup.Use(ratelimit.Middleware(apiLimiter, "api", ratelimit.ClientIP, log, metrics.IncRateLimited))
	adminGroup.Use(auth.AuthMiddleware(log))
	{
		adminGroup.GET("/processed/:signature", admin.GetProcessed)
		adminGroup.DELETE("/processed/:signature", admin.ClearProcessed)
	}

	return router
}
