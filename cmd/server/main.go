package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/foundly/foundly/internal/chat"
	"github.com/foundly/foundly/internal/config"
	"github.com/foundly/foundly/internal/db"
	"github.com/foundly/foundly/internal/httpapi"
	"github.com/foundly/foundly/internal/item"
	"github.com/foundly/foundly/internal/moderation"
	"github.com/foundly/foundly/internal/models"
	"github.com/foundly/foundly/internal/store/rabbitmq"
	"github.com/foundly/foundly/internal/store/redisstore"
)

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	switch cfg.LogLevel {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}
	return logger
}

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	gdb := db.Connect(cfg.DBDSN)
	if err := gdb.AutoMigrate(
		&models.User{},
		&item.Item{},
		&chat.Chat{},
		&chat.Message{},
		&moderation.Job{},
	); err != nil {
		logger.Fatalf("automigrate: %v", err)
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		logger.Fatalf("redis ping: %v", err)
	}
	cancelPing()
	defer rds.Close()

	// the API stays up without RabbitMQ; photo items are then approved
	// without a moderation pass
	var pub moderation.JobPublisher
	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.ModerationQueue)
	if err != nil {
		logger.WithError(err).Warn("rabbitmq unavailable, image moderation disabled")
	} else {
		pub = publisher
		defer publisher.Close()
	}

	router := httpapi.NewRouter(gdb, cfg, rds, logger, pub)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	logger.Info("server exited")
}
