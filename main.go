package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"order-display/api"
	"order-display/bot"
	"order-display/config"
	"order-display/db"
	"order-display/services"
	"order-display/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Check for migrate subcommand
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg, log); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
		return
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server", zap.Error(err))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc.Level = level
	return zc.Build()
}

func runMigrate(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()
	if err := db.Init(ctx, cfg.DB); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer db.Close()
	return applyMigrations(ctx, log)
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer db.Close()
	history, err := openHistory(ctx, cfg, log)
	if err != nil {
		return err
	}

	hub := services.NewHub(services.HubConfig{
		BufferSize:  cfg.Order.SubscriberBuffer,
		SendTimeout: cfg.Order.PublishTimeout,
	}, log)
	defer hub.Close()

	orders := services.NewOrderController(history, hub, services.ControllerConfig{
		ClearDelay: cfg.Order.ClearDelay,
	}, log)
	defer orders.Close()

	if cfg.Telegram.MessageToken != "" && cfg.Telegram.AdminChatID != 0 {
		messageBot, err := bot.NewMessageBot(cfg.Telegram.MessageToken)
		if err != nil {
			log.Warn("telegram notifications disabled", zap.Error(err))
		} else if err := orders.AttachSink(bot.NewNotifier(messageBot, cfg.Telegram.AdminChatID, log)); err != nil {
			return fmt.Errorf("telegram subscriber: %w", err)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := stream.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		// hub.Close closes the sink after its last delivery.
		if err := orders.AttachSink(stream.NewKafkaSink(producer, cfg.Kafka.Topic, log)); err != nil {
			_ = producer.Close()
			return fmt.Errorf("kafka subscriber: %w", err)
		}
	}

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewServer(orders, api.Options{
			RateRPS:   cfg.HTTP.RateRPS,
			RateBurst: cfg.HTTP.RateBurst,
			StaticDir: cfg.HTTP.StaticDir,
		}, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTP.Addr), zap.String("history", cfg.DB.HistoryBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openHistory(ctx context.Context, cfg *config.Config, log *zap.Logger) (services.HistoryStore, error) {
	if cfg.DB.HistoryBackend != config.HistoryPostgres {
		return services.NewMemoryHistory(), nil
	}
	if err := db.Init(ctx, cfg.DB); err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	// Optional auto-migration (useful in production and for fresh DBs).
	if cfg.DB.AutoMigrate {
		if err := applyMigrations(ctx, log); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return services.NewPostgresHistory(db.Pool), nil
}
