// Command convoy runs the logistics bridge against a hub and logs what it
// receives. It stands in for the convoy routing subsystem during development
// and smoke testing.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"warfront/internal/bridge"
	"warfront/internal/config"
	"warfront/internal/protocol"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	hubURL := pflag.String("hub", cfg.HubURL, "Hub websocket URL")
	dev := pflag.Bool("dev", cfg.Development, "Development logging")
	pflag.Parse()
	cfg.HubURL = *hubURL
	cfg.Development = *dev

	log, err := cfg.Logger()
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	b := bridge.New(bridge.Config{
		HubURL:        cfg.HubURL,
		BatchSize:     cfg.BridgeBatchSize,
		FlushInterval: cfg.BridgeFlushInterval,
		MaxRetries:    cfg.BridgeMaxRetries,
	}, log.Named("bridge"))

	b.OnTerritorialBatch = func(events []protocol.TerritorialEventPayload) {
		for _, ev := range events {
			log.Info("territorial update",
				zap.String("territory", ev.TerritoryName),
				zap.String("event", ev.EventType),
				zap.String("controller", ev.ControllerName),
				zap.Bool("contested", ev.Contested))
		}
		stats := b.Stats()
		log.Info("bridge stats",
			zap.Int("batch", len(events)),
			zap.Int64("messages_sent", stats.MessagesSent),
			zap.Int64("batches_flushed", stats.BatchesFlushed),
			zap.Float64("avg_latency_ms", stats.AvgLatencyMS))
	}
	b.OnFailure = func(err error) {
		log.Error("bridge failed permanently", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-done
		cancel()
	}()

	if err := b.Run(ctx); err != nil {
		os.Exit(1)
	}
}
