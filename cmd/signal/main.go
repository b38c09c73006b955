package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	httpapi "github.com/immxrtalbeast/axenix_call/internal/api/http"
	"github.com/immxrtalbeast/axenix_call/internal/config"
	"github.com/immxrtalbeast/axenix_call/internal/repository"
	"github.com/immxrtalbeast/axenix_call/internal/repository/model"
	"github.com/immxrtalbeast/axenix_call/internal/service"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
	"github.com/immxrtalbeast/axenix_call/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	historyRepo, closeHistory, err := setupHistoryRepository(cfg)
	if err != nil {
		log.Error("failed to set up call history", slog.String("backend", cfg.History.Backend), sl.Err(err))
		os.Exit(1)
	}
	defer closeHistory()

	registry := service.NewRegistry(log, service.RegistryOptions{
		ChatBacklog: cfg.Rooms.ChatBacklog,
		GracePeriod: cfg.Rooms.GracePeriod,
	})
	history := service.NewHistoryRecorder(log, historyRepo, cfg.History.Timeout)
	gateway := service.NewGateway(log, registry, history)
	sweeper := service.NewSweeper(log, registry, cfg.Rooms.SweepInterval)

	signalController := httpapi.NewSignalController(gateway, cfg.HTTP, log)
	roomController := httpapi.NewRoomController(registry, cfg.WebRTC)
	historyController := httpapi.NewHistoryController(history)

	router := httpapi.SetupRouter(cfg.HTTP.AllowedOrigins, signalController, roomController, historyController)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	go func() {
		log.Info("starting application",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("env", cfg.Env),
			slog.String("history_backend", cfg.History.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
	}
	history.Close()
	log.Info("application stopped")
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

// setupHistoryRepository picks the call history backend named in the config.
// The returned func releases whatever connection the backend holds.
func setupHistoryRepository(cfg *config.Config) (repository.CallHistoryRepository, func(), error) {
	switch cfg.History.Backend {
	case config.HistoryBackendMemory:
		return repository.NewInMemoryCallHistoryRepository(), func() {}, nil
	case config.HistoryBackendPostgres:
		db, err := connectDatabase(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return repository.NewPostgresCallHistoryRepository(db), closeDB, nil
	case config.HistoryBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		repo := repository.NewRedisCallHistoryRepository(client)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.History.Timeout)
		defer cancel()
		if err := repo.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return repo, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.CallRecord{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
