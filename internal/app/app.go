package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/karajam/server/internal/controller"
	"github.com/karajam/server/internal/processor"
	"github.com/karajam/server/internal/repository/connection/inmemory"
	jamRedis "github.com/karajam/server/internal/repository/jam/redis"
	queueRedis "github.com/karajam/server/internal/repository/queue/redis"
	"github.com/karajam/server/internal/service/session"
	"github.com/karajam/server/pkg/ctxlogger"
	"github.com/karajam/server/pkg/redisclient"
)

type AppConfig struct {
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	LogLevel         string        `json:"log_level"`
	RedisHost        string        `json:"redis_host"`
	RedisPort        int           `json:"redis_port"`
	RedisPassword    string        `json:"-"`
	ProcessorURL     string        `json:"processor_url"`
	JamWriteInterval time.Duration `json:"jam_write_interval"`
	DedupeInterval   time.Duration `json:"dedupe_interval"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.JamWriteInterval <= 0 {
		return fmt.Errorf("jam write interval must be positive")
	}
	if cfg.DedupeInterval <= 0 {
		return fmt.Errorf("dedupe interval must be positive")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	queueRepo := queueRedis.NewRepo(rc, logger)
	jamRepo := jamRedis.NewRepo(rc, cfg.JamWriteInterval, logger)
	connectionRepo := inmemory.NewRepo()
	proc := processor.New(cfg.ProcessorURL, logger)

	sessionService := session.NewService(queueRepo, jamRepo, connectionRepo, proc, logger)

	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	sessionService.Start(serverCtx)

	// periodic track-data dedupe keeps the global set free of ids that
	// were stored twice by racing adds
	go func() {
		ticker := time.NewTicker(cfg.DedupeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-serverCtx.Done():
				return
			case <-ticker.C:
				if err := queueRepo.DedupeTrackData(serverCtx); err != nil {
					logger.InfoContext(serverCtx, "failed to dedupe track data", "error", err)
				}
			}
		}
	}()

	controller := controller.NewController(sessionService, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
