package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/M5rkn/NailsBot/internal/bot"
	"github.com/M5rkn/NailsBot/internal/cache"
	"github.com/M5rkn/NailsBot/internal/config"
	"github.com/M5rkn/NailsBot/internal/database"
	"github.com/M5rkn/NailsBot/internal/events"
	"github.com/M5rkn/NailsBot/internal/metrics"
	"github.com/M5rkn/NailsBot/internal/notify"
	"github.com/M5rkn/NailsBot/internal/reminders"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Failed to load timezone")
	}

	metrics.Register()

	db, err := database.New(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, availability cache disabled")
			redisClient = nil
		}
	}
	availability := cache.New(redisClient, cfg.CacheTTL(), &logger)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create bot API")
	}
	api.Debug = cfg.Telegram.Debug

	notifier := notify.NewTelegramSender(api, &logger)
	scheduler := reminders.NewScheduler(db, notifier, loc, cfg.ReminderLead(), &logger)
	defer scheduler.Stop()

	if _, err := scheduler.RestoreJobs(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to restore reminder jobs")
	}

	bus := events.NewEventBus()

	tgBot, err := bot.New(api, db, scheduler, bus, availability, cfg, loc, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create bot")
	}
	tgBot.SubscribeEvents(bus)

	backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
	go backup.Start(ctx)

	if cfg.Monitoring.HealthCheckPort > 0 {
		go runHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, availability, &logger)
	}
	if cfg.Monitoring.PrometheusEnabled && cfg.Monitoring.PrometheusPort > 0 {
		go runMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	tgBot.Start(ctx)
	logger.Info().Msg("Shutdown complete")
}

func runHealthServer(ctx context.Context, port int, db *database.DB, availability *cache.AvailabilityCache, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		if err := availability.Ping(r.Context()); err != nil {
			http.Error(w, "cache: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serve(ctx, fmt.Sprintf(":%d", port), mux, "health", logger)
}

func runMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serve(ctx, fmt.Sprintf(":%d", port), mux, "metrics", logger)
}

func serve(ctx context.Context, addr string, handler http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msgf("%s server listening", name)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msgf("%s server failed", name)
	}
}
