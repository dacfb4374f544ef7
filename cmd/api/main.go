package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pbx-console/internal/alarm"
	"pbx-console/internal/audit"
	"pbx-console/internal/auth"
	"pbx-console/internal/config"
	"pbx-console/internal/directory"
	"pbx-console/internal/httpapi"
	"pbx-console/internal/livecalls"
	"pbx-console/internal/poller"
	"pbx-console/internal/stream"
	"pbx-console/internal/telephony"
	"pbx-console/pkg/logger"
	"pbx-console/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Snapshot cache: Redis when configured so replicas share one window,
	// in-process otherwise.
	var cache telephony.SnapshotCache
	if cfg.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
		defer rdb.Close()
		cache = telephony.NewRedisCache(rdb, cfg.Provider.CacheTTL)
	} else {
		cache = telephony.NewMemoryCache(cfg.Provider.CacheTTL)
	}

	client, err := telephony.New(telephony.Options{
		BaseURL:   cfg.Provider.BaseURL,
		APIKey:    cfg.Provider.APIKey,
		AdminPass: cfg.Provider.AdminPass,
		Timeout:   cfg.Provider.RequestTimeout,
		Cache:     cache,
		Logger:    logger.Component(log, "telephony"),
	})
	if err != nil {
		log.Error("telephony init failed", "err", err)
		os.Exit(1)
	}

	var notifier *alarm.Notifier
	if cfg.MQTT.Broker != "" {
		pub, err := alarm.NewMQTTPublisher(alarm.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			QoS:      byte(cfg.MQTT.QoS),
		})
		if err != nil {
			log.Error("mqtt init failed", "err", err)
			os.Exit(1)
		}
		defer pub.Close()
		notifier = alarm.NewNotifier(pub, logger.Component(log, "alarm"))
	}

	hub := stream.NewHub(logger.Component(log, "stream"))
	go hub.Run(rootCtx)

	durations := livecalls.NewDurationTracker()

	p := poller.New(client.FetchActiveCalls, poller.Options{
		Interval:    cfg.Poller.Interval,
		BackoffBase: cfg.Poller.BackoffBase,
		BackoffCap:  cfg.Poller.BackoffCap,
		MaxRetries:  cfg.Poller.MaxRetries,
		Logger:      logger.Component(log, "poller"),
		OnUpdate:    fanout(hub, notifier, durations),
	})
	go p.Run(rootCtx)

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	handlers := httpapi.Handlers{
		Auth:      authManager,
		Poller:    p,
		Commander: client,
		Audit:     auditSvc,
		Commands:  audit.NewPostgresRepo(db),
		Directory: directory.NewPostgresRepo(db),
		Durations: durations,
		Hub:       hub,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, handlers, auth.RequireAccessToken(authManager), db)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// fanout builds the OnUpdate pipeline: seed duration counters, push account
// snapshots to stream clients, raise duplicate-extension alarms. It remembers
// which accounts were present last cycle so an account whose calls all ended
// still receives its final empty snapshot.
func fanout(hub *stream.Hub, notifier *alarm.Notifier, durations *livecalls.DurationTracker) func(poller.Snapshot) {
	prev := make(map[string]struct{})

	return func(s poller.Snapshot) {
		durations.Observe(s.Legs)

		byAccount := make(map[string][]livecalls.Leg)
		for _, l := range s.Legs {
			byAccount[l.AccountCode] = append(byAccount[l.AccountCode], l)
		}

		ctx := context.Background()
		for accountCode := range prev {
			if _, ok := byAccount[accountCode]; !ok {
				byAccount[accountCode] = nil
			}
		}
		prev = make(map[string]struct{}, len(s.Legs))
		for _, l := range s.Legs {
			prev[l.AccountCode] = struct{}{}
		}

		for accountCode, legs := range byAccount {
			scoped := livecalls.Reconcile(legs, accountCode, "")
			hub.Broadcast(accountCode, stream.EventSnapshot, gin.H{
				"legs":  scoped,
				"stats": livecalls.Stats(scoped),
			})

			if notifier != nil {
				groups := livecalls.FindDuplicates(scoped)
				dups := make([]alarm.Duplicate, 0, len(groups))
				for _, g := range groups {
					dups = append(dups, alarm.Duplicate{Extension: g.Extension, LegCount: g.Count})
				}
				notifier.ObserveDuplicates(ctx, accountCode, dups)
			}
		}
	}
}
