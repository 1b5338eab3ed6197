package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/farmlink/marketplace/internal/catalog"
	"github.com/farmlink/marketplace/internal/config"
	"github.com/farmlink/marketplace/internal/httpx"
	kafkax "github.com/farmlink/marketplace/internal/kafka"
	"github.com/farmlink/marketplace/internal/market"
	"github.com/farmlink/marketplace/internal/messaging"
	"github.com/farmlink/marketplace/internal/notify"
	"github.com/farmlink/marketplace/internal/orders"
	"github.com/farmlink/marketplace/internal/postgres"
	"github.com/farmlink/marketplace/internal/redisx"
	"github.com/farmlink/marketplace/internal/rentals"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per lifecycle topic
	orderProd := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicOrderStatus, 1024)
	orderProd.Start(ctx)
	rentalProd := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicRentalStatus, 1024)
	rentalProd.Start(ctx)

	// Repos & engines
	catalogRepo := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}
	rentalRepo := &rentals.Repo{DB: db}
	messageRepo := &messaging.Repo{DB: db}

	orderEngine := &orders.Engine{Catalog: catalogRepo, Store: orderRepo}
	rentalEngine := &rentals.Engine{Catalog: catalogRepo, Store: rentalRepo}
	messageSvc := &messaging.Service{Store: messageRepo}
	projector := &notify.Projector{Orders: orderRepo, Rentals: rentalRepo, Inquiries: messageRepo}

	validate := validator.New()

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{
		Engine:   orderEngine,
		Catalog:  catalogRepo,
		Producer: orderProd,
		Redis:    rdb,
		Validate: validate,
		Service:  cfg.ServiceName,
	}).Register(router)
	(&httpx.RentalsHandler{
		Engine:   rentalEngine,
		Producer: rentalProd,
		Redis:    rdb,
		Validate: validate,
		Service:  cfg.ServiceName,
	}).Register(router)
	(&httpx.MessagesHandler{Service: messageSvc, Validate: validate}).Register(router)
	(&httpx.NotificationsHandler{Projector: projector}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	orderProd.Close()
	rentalProd.Close()
	cancel()
	orderProd.WaitClosed()
	rentalProd.WaitClosed()
}
