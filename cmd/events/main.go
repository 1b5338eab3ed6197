package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/farmlink/marketplace/internal/cachesync"
	"github.com/farmlink/marketplace/internal/config"
	kafkax "github.com/farmlink/marketplace/internal/kafka"
	"github.com/farmlink/marketplace/internal/market"
	"github.com/farmlink/marketplace/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &cachesync.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-events",
		Log:         log,
	}

	group := getenv("EVENTS_GROUP", "cachesync-svc")
	workers := mustAtoi(os.Getenv("EVENTS_WORKERS"), "4")

	orderCons := kafkax.NewConsumer(cfg.KafkaBrokers, group, market.TopicOrderStatus, workers)
	rentalCons := kafkax.NewConsumer(cfg.KafkaBrokers, group, market.TopicRentalStatus, workers)

	go func() {
		log.Info("order consumer started", "group", group, "topic", market.TopicOrderStatus)
		if err := orderCons.Start(ctx, svc.HandleOrderStatus); err != nil {
			log.Error("order consumer exit", "err", err)
			cancel()
		}
	}()
	go func() {
		log.Info("rental consumer started", "group", group, "topic", market.TopicRentalStatus)
		if err := rentalCons.Start(ctx, svc.HandleRentalStatus); err != nil {
			log.Error("rental consumer exit", "err", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumers")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
