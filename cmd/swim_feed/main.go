// Command swim_feed ingests FAA SWIM publications, reconciles flight
// state and fans updates out to browser and legacy clients.
//
// Exit codes: 0 normal shutdown, 1 configuration error, 2 unrecoverable
// broker failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"swim_feed/internal/api"
	"swim_feed/internal/broker"
	"swim_feed/internal/bus"
	"swim_feed/internal/config"
	"swim_feed/internal/fanout"
	"swim_feed/internal/flightstate"
	_ "swim_feed/internal/parsers" // register all parsers via init()
	"swim_feed/internal/registry"
	"swim_feed/internal/storage"
	"swim_feed/internal/swim"
	"swim_feed/internal/trackid"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		return 1
	}
	log := setupLogging(cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.New(log)
	defer b.Close()

	store := flightstate.New(b, log, flightstate.Config{})
	if cfg.FlightDBPath != "" {
		db, err := storage.OpenFlightDB(cfg.FlightDBPath)
		if err != nil {
			log.Error("flight database unavailable", "path", cfg.FlightDBPath, "error", err)
			return 1
		}
		defer db.Close()
		if err := store.SetPersister(db); err != nil {
			log.Error("warm start failed", "error", err)
			return 1
		}
	}

	pipeline := registry.NewPipeline(b, registry.Default(), log)
	hub := fanout.NewHub(log)
	mapper := trackid.NewMapper()
	relay := fanout.NewRelay(hub, mapper, log)
	srv := api.NewServer(api.Config{Port: cfg.HTTPPort, KMLDir: cfg.KMLDir},
		store, hub, pipeline, mapper, log)

	go pipeline.Run(ctx)
	go store.Run(ctx)
	go hub.Run(ctx, b)
	go relay.Run(ctx, b)
	go mapper.Run(ctx, time.Minute)

	// The archive is best-effort: failure to reach ClickHouse never
	// blocks ingestion.
	if cfg.ClickHouse.Host != "" {
		openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		ch, err := storage.OpenClickHouse(openCtx, storage.ClickHouseConfig{
			Host:     cfg.ClickHouse.Host,
			Port:     cfg.ClickHouse.Port,
			Database: cfg.ClickHouse.Database,
			User:     cfg.ClickHouse.User,
			Password: cfg.ClickHouse.Password,
		})
		cancel()
		if err != nil {
			log.Warn("clickhouse archive disabled", "error", err)
		} else if err := ch.CreateSchema(ctx); err != nil {
			log.Warn("clickhouse archive disabled", "error", err)
			_ = ch.Close()
		} else {
			defer ch.Close()
			go storage.NewArchiver(ch, log).Run(ctx, b)
		}
	}

	errCh := make(chan error, 3)
	go func() { errCh <- srv.Run(ctx) }()

	scds := broker.NewConsumer(
		broker.Config{Name: "scds"},
		broker.DialNATS(broker.NATSConfig{
			URL:      cfg.SCDS.Host,
			Username: cfg.SCDS.Username,
			Password: cfg.SCDS.Password,
			Queue:    cfg.SCDS.Queue,
			Subjects: cfg.SCDS.Subjects,
		}), b, log)
	go func() { errCh <- scds.Run(ctx) }()

	if cfg.SFDPS.Enabled() {
		sfdps := broker.NewConsumer(
			broker.Config{Name: "sfdps", ForceService: swim.ServiceSFDPS},
			broker.DialNATS(broker.NATSConfig{
				URL:      cfg.SFDPS.Host,
				Username: cfg.SFDPS.Username,
				Password: cfg.SFDPS.Password,
				Queue:    cfg.SFDPS.Queue,
				Subjects: cfg.SFDPS.Subjects,
			}), b, log)
		go func() { errCh <- sfdps.Run(ctx) }()
	}

	log.Info("swim_feed started", "port", cfg.HTTPPort, "sfdps", cfg.SFDPS.Enabled())

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			// Give the server and consumers a moment to drain.
			time.Sleep(2 * time.Second)
			return 0
		case err := <-errCh:
			if err == nil {
				continue
			}
			if errors.Is(err, broker.ErrBrokerFatal) {
				log.Error("broker failure", "error", err)
				return 2
			}
			log.Error("fatal error", "error", err)
			return 1
		}
	}
}

// setupLogging writes structured JSON to stderr, and additionally to a
// rotating file when configured.
func setupLogging(logFile string) *slog.Logger {
	var w io.Writer = os.Stderr
	if logFile != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	log := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)
	return log
}
