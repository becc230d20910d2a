// The growatt-server command intercepts TCP traffic between Growatt data
// loggers and the vendor cloud, relaying it transparently while decoding
// the proprietary protocol into Postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/stefa168/growatt-server/internal/config"
	"github.com/stefa168/growatt-server/internal/observability"
	"github.com/stefa168/growatt-server/internal/protocol"
	"github.com/stefa168/growatt-server/internal/proxy"
	"github.com/stefa168/growatt-server/internal/schema"
	"github.com/stefa168/growatt-server/internal/session"
	"github.com/stefa168/growatt-server/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the configuration file (empty configures from the environment only)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "growatt-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// A .env file is optional; explicit environment always wins.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := observability.InitLogger("growatt-server", cfg.Logging.Level)
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cipher, err := protocol.NewCipher(protocol.DefaultMask)
	if err != nil {
		return err
	}

	schemas, err := schema.NewRegistry(cfg.SchemaDir, log)
	if err != nil {
		return err
	}

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Msg("connecting to database")
	sink, err := storage.OpenPostgres(ctx, cfg.Database.DSN(), log)
	if err != nil {
		return err
	}
	defer sink.Close()
	if err := sink.Migrate(ctx); err != nil {
		return err
	}

	// SIGHUP reloads the schema mappings without touching live sessions.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := schemas.Reload(); err != nil {
				log.Error().Err(err).Msg("schema reload failed, keeping previous mappings")
			}
		}
	}()

	metricsSrv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           observability.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("metrics server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	srv := proxy.New(proxy.Config{
		ListenAddr: cfg.ListenAddr,
		RemoteAddr: cfg.RemoteAddr,
		Model:      cfg.Model,
	}, protocol.NewDecoder(cipher, schemas, log), sink, session.NewRegistry(), log)

	err = srv.Listen(ctx)
	log.Info().Msg("stopped")
	return err
}
