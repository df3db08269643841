package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/extraweb/internal/cache"
	"github.com/xenking/extraweb/internal/domain/auth"
	"github.com/xenking/extraweb/internal/domain/coupon"
	"github.com/xenking/extraweb/internal/domain/customization"
	"github.com/xenking/extraweb/internal/domain/delivery"
	"github.com/xenking/extraweb/internal/domain/mail"
	"github.com/xenking/extraweb/internal/domain/notification"
	"github.com/xenking/extraweb/internal/domain/order"
	"github.com/xenking/extraweb/internal/domain/product"
	"github.com/xenking/extraweb/internal/domain/stats"
	"github.com/xenking/extraweb/internal/domain/testimonial"
	"github.com/xenking/extraweb/internal/handler"
	"github.com/xenking/extraweb/internal/mailer"
	"github.com/xenking/extraweb/internal/outbox"
	"github.com/xenking/extraweb/internal/storage/mongo"
	"github.com/xenking/extraweb/pkg/health"
	"github.com/xenking/extraweb/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the outbox
// dispatcher, and handles graceful shutdown. It is the single wiring point
// for the application. m is usually the *app.Telemetry handed out by the sdk.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("environment", cfg.Environment),
	)

	// MongoDB + indexes.
	store, err := mongo.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return errors.Wrap(err, "open mongo")
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			lg.Warn("Close mongo", zap.Error(err))
		}
	}()
	if err := store.Migrate(ctx); err != nil {
		return errors.Wrap(err, "migrate")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("mongo", 5*time.Second, health.PingCheck(store.Ping))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	// Optional stats cache.
	var statsCache stats.Cache
	if cfg.Redis.URL != "" {
		rdb, err := cache.Open(ctx, cfg.Redis.URL)
		if err != nil {
			return errors.Wrap(err, "open redis")
		}
		defer func() { _ = rdb.Close() }()
		statsCache = rdb
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(rdb.Ping))
	}

	// Mail transport: AMQP when configured, log otherwise.
	var sender mail.Mailer = mailer.Log{}
	if cfg.AMQP.URL != "" {
		broker, err := mailer.NewAMQP(ctx, cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			return errors.Wrap(err, "connect amqp")
		}
		defer func() { _ = broker.Close() }()
		sender = broker
		healthSvc.AddReadinessCheck("amqp", time.Second, func(context.Context) error {
			return broker.Healthy()
		})
	}

	// Repositories.
	var (
		products    = store.Products()
		users       = store.Users()
		downloads   = store.Downloads()
		enrollments = store.Enrollments()
		coupons     = store.Coupons()
		tasks       = store.Tasks()
	)

	// Outbox: side effects are queued next to the primary write and run by
	// the dispatcher.
	queue := outbox.NewQueue(tasks)
	dispatcher := outbox.NewDispatcher(tasks, outbox.Config{
		PollInterval:   cfg.Outbox.PollInterval,
		Lease:          cfg.Outbox.Lease,
		MaxAttempts:    cfg.Outbox.MaxAttempts,
		InitialBackoff: cfg.Outbox.InitialBackoff,
		MaxBackoff:     cfg.Outbox.MaxBackoff,
		Jitter:         0.2,
	}, lg.Named("outbox"), outbox.WithMeterProvider(m.MeterProvider()))
	healthSvc.AddLivenessCheck("outbox_dead", 5*time.Second, health.GrowthCheck(
		func(ctx context.Context) (int64, error) {
			return tasks.CountByStatus(ctx, outbox.StatusDead)
		},
		cfg.Outbox.MaxDeadGrowth,
	))

	// Domain services.
	notifier := notification.NewDispatcher(store.Notifications(), queue)
	mails := mail.NewService(queue, sender, users)
	dispatcher.Handle(notification.TaskKind, notifier.Handle)
	dispatcher.Handle(mail.KindInvoice, mails.HandleInvoice)
	dispatcher.Handle(mail.KindOrderPlaced, mails.HandleOrderPlaced)

	fanout := delivery.NewFanout(
		delivery.NewDownloadFulfiller(product.TypeWebsite, products, downloads),
		delivery.NewDownloadFulfiller(product.TypeSoftware, products, downloads),
		delivery.NewCourseFulfiller(products, enrollments),
		mails,
	)
	couponValidator := coupon.NewRepoValidator(coupons)
	orderService := order.NewService(store.Orders(), products, couponValidator, users,
		order.WithDeliverer(fanout),
		order.WithNotifier(notifier),
		order.WithConfirmations(mails),
		order.WithCascade(downloads, enrollments),
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)

	// HTTP handlers.
	h := handler.New(handler.Config{
		Production: cfg.Production(),
		OrderWrites: httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.OrderMax,
			Window: cfg.RateLimit.OrderWindow,
		},
	}, handler.Deps{
		Orders:        orderService,
		Coupons:       coupon.NewService(coupons),
		Validator:     couponValidator,
		Testimonials:  testimonial.NewService(store.Testimonials()),
		Customization: customization.NewService(store.Customizations()),
		Stats:         stats.NewService(store.Stats(), products, statsCache, cfg.StatsCacheTTL),
		Notifications: notifier,
		Tokens:        auth.NewTokens([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer),
	})

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Mux: health endpoints + API routes on one server.
	mux := h.Routes(ctx)
	mux.Handle("GET /livez", httpmiddleware.Routed(http.HandlerFunc(healthSvc.LiveEndpoint)))
	mux.Handle("GET /readyz", httpmiddleware.Routed(http.HandlerFunc(healthSvc.ReadyEndpoint)))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("extraweb-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Outbox dispatcher started")
		return dispatcher.Run(gCtx)
	})

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
