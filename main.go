package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	auction "auction-core/internal/auctionService"
	"auction-core/internal/auctionlock"
	bidding "auction-core/internal/biddingService"
	"auction-core/internal/broker"
	"auction-core/internal/config"
	"auction-core/internal/models"
	"auction-core/internal/notification"
	"auction-core/internal/repository"
	"auction-core/internal/server"
	"auction-core/internal/settlement"
	"auction-core/internal/worker"
	"auction-core/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()
	utils.ConfigureLogger(cfg.Log.Level)

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := utils.InitTracer("auction-core", cfg.Observ.JaegerEndpoint)
		if err != nil {
			utils.Fatal("failed to initialize tracer", map[string]any{"error": err.Error()})
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				utils.Error("failed to shut down tracer", map[string]any{"error": err.Error()})
			}
		}()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	repo, seed := openRepository(ctx, cfg)
	hub := notification.NewHub(cfg.Notify.Buffer)
	locks := auctionlock.NewTable(cfg.Bidding.LockTimeout)

	var sinks []settlement.Sink
	var producer *broker.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAuctionEvents)
		defer producer.Close()

		eventPublisher := broker.NewEventPublisher(producer)
		sinks = append(sinks, eventPublisher)
		kafkaBridge := hub.Subscribe(notification.AllTopics, eventPublisher.Forward)
		defer kafkaBridge.Unsubscribe()
		utils.Info("kafka producer initialized", map[string]any{"topic": cfg.Kafka.TopicAuctionEvents})
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			utils.Fatal("failed to connect to redis", map[string]any{"addr": cfg.Redis.Addr, "error": err.Error()})
		}
		defer client.Close()

		relay := broker.NewRedisRelay(client, cfg.Redis.ChannelPrefix)
		redisBridge := hub.Subscribe(notification.AllTopics, relay.Forward)
		defer redisBridge.Unsubscribe()
		utils.Info("redis relay connected", map[string]any{"addr": cfg.Redis.Addr})
	}

	engine := settlement.NewEngine(repo, hub, sinks...)
	auctionSvc := auction.NewAuctionService(repo, locks, engine, hub, auction.Options{
		AllowCancelWithBids: cfg.Bidding.AllowCancelWithBids,
	})
	biddingSvc := bidding.NewBiddingService(repo, locks, auctionSvc, hub, bidding.Options{
		MinIncrement: cfg.Bidding.MinIncrement,
	})

	if seed {
		prepopulateAuctions(ctx, auctionSvc)
	}

	go auctionSvc.RunScheduler(ctx, cfg.Scheduler.Interval)

	var paymentWorker *worker.PaymentWorker
	if len(cfg.Kafka.Brokers) > 0 {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayments, cfg.Kafka.ConsumerGroup)
		paymentWorker = worker.NewPaymentWorker(consumer, engine)
		go func() {
			if err := paymentWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				utils.Error("payment worker stopped", map[string]any{"error": err.Error()})
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.SetupRouter(auctionSvc, biddingSvc, hub)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Info("starting auction server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Fatal("failed to start server", map[string]any{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Info("shutting down server", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("server forced to shutdown", map[string]any{"error": err.Error()})
	}

	stop()
	if paymentWorker != nil {
		_ = paymentWorker.Stop()
	}
	// settlement events still in flight go out before the producer closes
	engine.Wait()
	if closer, ok := repo.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	utils.Info("server exited", nil)
}

// openRepository picks Postgres when configured and reports whether the
// in-memory store should be seeded with sample auctions
func openRepository(ctx context.Context, cfg *config.Config) (repository.AuctionDB, bool) {
	if cfg.Database.URL == "" {
		utils.Info("using in-memory store", nil)
		return repository.NewMemoryRepo(), cfg.Server.Env != "production"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	repo, err := repository.NewPostgresRepo(connectCtx, cfg.Database.URL)
	if err != nil {
		utils.Fatal("failed to connect to database", map[string]any{"error": err.Error()})
	}
	utils.Info("database connected", nil)
	return repo, false
}

// prepopulateAuctions adds sample auctions to an empty development store
func prepopulateAuctions(ctx context.Context, svc *auction.AuctionService) {
	specs := []models.AuctionSpec{
		{SellerID: "seller1", Title: "Vintage film camera", Description: "Leica M3, fully serviced", Category: "cameras", StartingPrice: decimal.NewFromInt(100)},
		{SellerID: "seller1", Title: "Oak writing desk", Description: "Solid oak, early 1900s", Category: "furniture", StartingPrice: decimal.NewFromInt(200), ReservePrice: decimal.NewFromInt(450)},
		{SellerID: "seller2", Title: "Signed first edition", Description: "First printing with dust jacket", Category: "books", StartingPrice: decimal.NewFromInt(150)},
	}

	for i, spec := range specs {
		spec.EndTime = time.Now().Add(time.Duration(i+1) * 24 * time.Hour)
		if _, err := svc.Create(ctx, spec); err != nil {
			utils.Warn("failed to seed auction", map[string]any{"title": spec.Title, "error": err.Error()})
		}
	}
}
