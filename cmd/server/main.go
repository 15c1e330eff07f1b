package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"regnotify/internal/admin"
	"regnotify/internal/audit"
	"regnotify/internal/events"
	"regnotify/internal/notify/broadcast"
	"regnotify/internal/notify/dispatch"
	"regnotify/internal/notify/scheduler"
	"regnotify/internal/notify/store/templates"
	"regnotify/internal/notify/store/tracking"
	regsync "regnotify/internal/notify/sync"
	"regnotify/internal/pass"
	"regnotify/internal/platform/config"
	"regnotify/internal/platform/httpserver"
	"regnotify/internal/platform/logger"
	"regnotify/internal/platform/metrics"
	"regnotify/internal/platform/postgres"
	platformredis "regnotify/internal/platform/redis"
	"regnotify/internal/provider"
	"regnotify/internal/provider/cloudapi"
	"regnotify/internal/provider/webclient"
	"regnotify/internal/registrations"
	"regnotify/internal/settings"
	"regnotify/internal/stats"
	httptransport "regnotify/internal/transport/http"
	"regnotify/internal/webhook"
)

const (
	defaultAdminUser     = "admin"
	defaultAdminPassword = "changeme"
	shutdownGrace        = 10 * time.Second
)

// main wires the dependencies and owns the process lifecycle. Business logic
// lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()

	// Stores.
	trackingStore := tracking.NewPostgres(pool)
	templateStore := templates.NewPostgres(pool)
	source := registrations.NewPostgresSource(pool)
	settingsStore := settings.NewPostgres(pool)
	userStore := admin.NewPostgresUserStore(pool)
	historyStore := broadcast.NewPostgresHistory(pool)
	receiptStore := webhook.NewPostgresReceipts(pool)

	if err := templates.Seed(ctx, templateStore); err != nil {
		log.Error("failed to seed templates", "error", err)
		os.Exit(1)
	}
	if err := admin.SeedDefault(ctx, userStore, defaultAdminUser, defaultAdminPassword); err != nil {
		log.Error("failed to seed admin user", "error", err)
		os.Exit(1)
	}

	// Provider generation.
	var prov provider.Provider
	switch cfg.Provider.Kind {
	case "cloudapi":
		prov = cloudapi.New(cfg.Provider.APIBaseURL, cfg.Provider.PhoneNumberID,
			cfg.Provider.AccessToken, cfg.Provider.CountryCode, cloudapi.WithLogger(log))
	default:
		prov = webclient.New(cfg.Provider.BridgeURL, cfg.Provider.CountryCode,
			webclient.WithLogger(log))
	}
	log.Info("messaging provider configured", "provider", prov.Name())

	// Live events and session revocation pick Redis when it is configured.
	var hub events.Hub = events.NewInMemoryHub()
	authOpts := []admin.AuthOption{admin.WithAuthLogger(log)}
	if redisClient != nil {
		hub = events.NewRedisHub(redisClient, log)
		authOpts = append(authOpts, admin.WithRevocationList(admin.NewRedisRevocationList(redisClient)))
	}
	authSvc := admin.NewAuthService(userStore, cfg.JWTSigningKey, cfg.SessionTTL, authOpts...)

	// Webhook audit trail is config-gated.
	var trail audit.Trail = audit.NopTrail{}
	if len(cfg.AuditBrokers) > 0 {
		kafkaTrail, err := audit.NewKafkaTrail(cfg.AuditBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("failed to start audit trail", "error", err)
			os.Exit(1)
		}
		defer kafkaTrail.Close()
		trail = kafkaTrail
	}

	// Services.
	settingsSvc := settings.NewService(settingsStore, settings.WithLogger(log))
	if err := settingsSvc.Reload(ctx); err != nil {
		log.Error("failed to load settings", "error", err)
		os.Exit(1)
	}

	passRenderer := pass.NewImageRenderer(cfg.PassTemplatePath)
	syncSvc := regsync.New(source, trackingStore, m, regsync.WithLogger(log))
	dispatcher := dispatch.New(trackingStore, templateStore, source, prov, passRenderer, settingsSvc,
		dispatch.WithLogger(log), dispatch.WithMetrics(m), dispatch.WithPublisher(hub))
	reaper := dispatch.NewReaper(trackingStore,
		dispatch.WithReaperLogger(log), dispatch.WithReaperMetrics(m))
	broadcastSvc := broadcast.New(prov, source, settingsSvc, historyStore,
		broadcast.WithLogger(log), broadcast.WithMetrics(m), broadcast.WithPublisher(hub))
	statsSvc := stats.New(source, trackingStore)
	sched := scheduler.New(syncSvc, dispatcher, reaper,
		cfg.SyncInterval, cfg.DispatchInterval, cfg.ReapInterval,
		scheduler.WithLogger(log))
	statusWatcher := provider.NewStatusWatcher(prov, hub, cfg.StatusInterval,
		provider.WithStatusLogger(log))

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Auth:      httptransport.NewAuthHandler(authSvc, log),
		Console:   httptransport.NewConsoleHandler(settingsSvc, templateStore, statsSvc, source, prov, hub, log),
		Messages:  httptransport.NewMessageHandler(broadcastSvc, syncSvc, dispatcher, trackingStore, historyStore, passRenderer, prov, log),
		Webhook:   webhook.New(cfg.WebhookVerifyToken, trail, receiptStore, trackingStore, prov, webhook.WithLogger(log)),
		Validator: authSvc,
		Logger:    log,
		Health: func(w http.ResponseWriter, r *http.Request) {
			if err := pool.Ping(r.Context()); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting registration notifier", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		return statusWatcher.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
