package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"warfront/internal/config"
	"warfront/internal/database"
	"warfront/internal/server"
	"warfront/pkg/world"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	addr := pflag.String("addr", cfg.Addr, "Listen address")
	dbPath := pflag.String("db", cfg.DBPath, "Database path")
	worldPath := pflag.String("world", cfg.WorldPath, "World definition file to seed")
	dev := pflag.Bool("dev", cfg.Development, "Development logging")
	pflag.Parse()
	cfg.Addr = *addr
	cfg.DBPath = *dbPath
	cfg.WorldPath = *worldPath
	cfg.Development = *dev

	log, err := cfg.Logger()
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.New(cfg.DBPath, database.Options{
		ControlThreshold: cfg.ControlThreshold,
		ContestMargin:    cfg.ContestMargin,
	})
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if cfg.WorldPath != "" {
		def, err := world.Load(cfg.WorldPath)
		if err != nil {
			log.Fatal("failed to load world definition", zap.Error(err))
		}
		seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := def.Seed(seedCtx, db); err != nil {
			cancel()
			log.Fatal("failed to seed world", zap.Error(err))
		}
		cancel()
		log.Info("world seeded",
			zap.String("world", def.Name),
			zap.Int("factions", len(def.Factions)),
			zap.Int("territories", len(def.Territories)))
	}

	srv := server.New(server.Config{
		Addr:         cfg.Addr,
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
	}, db, log)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
		}
	}()

	log.Info("warfront server running",
		zap.String("addr", cfg.Addr),
		zap.String("db", cfg.DBPath))

	<-done
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}

	log.Info("server stopped")
}
