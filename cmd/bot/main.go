package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/trader-bot/internal/api"
	"github.com/example/trader-bot/internal/auth"
	"github.com/example/trader-bot/internal/catalog"
	"github.com/example/trader-bot/internal/command"
	"github.com/example/trader-bot/internal/config"
	"github.com/example/trader-bot/internal/dispatch"
	"github.com/example/trader-bot/internal/gateway"
	"github.com/example/trader-bot/internal/infrastructure/kafka"
	"github.com/example/trader-bot/internal/ledger"
	"github.com/example/trader-bot/internal/lifecycle"
	"github.com/example/trader-bot/internal/session"
	"github.com/example/trader-bot/internal/tasks"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Bot] Failed to load config: %v", err)
	}

	log.Println("[Bot] ========================================")
	log.Println("[Bot] Trader Bot")
	log.Println("[Bot] ========================================")
	log.Printf("[Bot] Kafka: %v", cfg.Kafka.Brokers)
	log.Printf("[Bot] Inbound topic:  %s", cfg.Kafka.InboundTopic)
	log.Printf("[Bot] Outbound topic: %s", cfg.Kafka.OutboundTopic)
	log.Printf("[Bot] Events topic:   %s", cfg.Kafka.EventsTopic)
	log.Printf("[Bot] Session backend: %s", cfg.Session.Backend)
	log.Printf("[Bot] Ledger backend:  %s", cfg.Ledger.Backend)

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("[Bot] Failed to load catalog: %v", err)
	}

	sessions, err := newSessionStore(cfg)
	if err != nil {
		log.Fatalf("[Bot] Failed to init session store: %v", err)
	}

	store, err := newLedgerStore(cfg)
	if err != nil {
		log.Fatalf("[Bot] Failed to init ledger: %v", err)
	}

	// Outbound relay and lifecycle event producers.
	outbound := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OutboundTopic)
	defer outbound.Close()
	events := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
	defer events.Close()

	gw := gateway.NewKafkaGateway(outbound)
	machine := lifecycle.New(store, gw, events, lifecycle.Config{
		StaffChannelID: cfg.Channels.StaffChannelID,
		StaffRoleIDs:   cfg.Channels.StaffRoleIDs,
	})
	commands := command.NewHandler(cat, sessions, store, machine, cfg.Channels.StaffRoleIDs)
	dispatcher := dispatch.NewDispatcher(commands, machine, gw, cfg.Channels.EconomyChannelID)

	// Inbound event consumer.
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.InboundTopic, cfg.Kafka.GroupID)
	defer consumer.Close()

	go func() {
		log.Println("[Bot] Starting inbound consumer...")
		if err := consumer.Consume(ctx, dispatcher.HandleEvent); err != nil {
			if ctx.Err() == nil {
				log.Printf("[Bot] Consumer error: %v", err)
			}
		}
	}()

	if cfg.Reminder.Enabled {
		reminder := tasks.NewReminder(store, gw, cfg.Channels.StaffChannelID,
			cfg.Channels.MentionRoleIDs, cfg.Reminder.MaxAge, cfg.Reminder.LogPath)
		go reminder.Run(ctx, cfg.Reminder.Interval)
	}

	if cfg.Alerts.Enabled && cfg.Channels.AlertChannelID != "" {
		scanner := tasks.NewAlertScanner(store, gw, cfg.Channels.AlertChannelID,
			cfg.Alerts.Keywords, cfg.Alerts.Minimum, cfg.Alerts.Tracker)
		go scanner.Run(ctx, cfg.Alerts.Interval)
	}

	var server *http.Server
	if cfg.Admin.Enabled {
		server = newAdminServer(cfg, store)
		go func() {
			log.Printf("[Bot] Admin API on %s", cfg.Admin.Addr)
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				log.Fatalf("[Bot] Admin API error: %v", err)
			}
		}()
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Bot] Shutting down...")
	cancel()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}
}

func newSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case "redis":
		return session.NewRedisStore(session.RedisConfig{
			Addr:     cfg.Session.RedisAddress(),
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		}, cfg.Session.Timeout)
	default:
		return session.NewMemoryStore(cfg.Session.Timeout), nil
	}
}

func newLedgerStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case "postgres":
		db, err := ledger.ConnectPostgres(cfg.Ledger.PostgresDSN())
		if err != nil {
			return nil, err
		}
		return ledger.NewPostgresStore(db)
	default:
		return ledger.NewFileStore(cfg.Ledger.Path), nil
	}
}

func newAdminServer(cfg *config.Config, store ledger.Store) *http.Server {
	if cfg.Admin.JWTSecret == "" || cfg.Admin.AdminPasswordHash == "" {
		log.Fatal("[Bot] ADMIN_JWT_SECRET and ADMIN_PASSWORD_HASH are required when the admin API is enabled")
	}

	tokens := auth.NewTokenService(cfg.Admin.JWTSecret, 15*time.Minute)
	handlers := api.NewHandlers(store, tokens, cfg.Admin.AdminUser, cfg.Admin.AdminPasswordHash)
	return &http.Server{
		Addr:    cfg.Admin.Addr,
		Handler: api.NewRouter(handlers, tokens),
	}
}
