package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/aq2208/payflow/configs"
	"github.com/aq2208/payflow/internal/adapter/cache"
	"github.com/aq2208/payflow/internal/adapter/gateway"
	"github.com/aq2208/payflow/internal/adapter/http"
	"github.com/aq2208/payflow/internal/adapter/http/middleware"
	"github.com/aq2208/payflow/internal/adapter/kafka"
	"github.com/aq2208/payflow/internal/adapter/queue"
	"github.com/aq2208/payflow/internal/adapter/repo"
	"github.com/aq2208/payflow/internal/logging"
	"github.com/aq2208/payflow/internal/security"
	"github.com/aq2208/payflow/internal/usecase"
	"github.com/aq2208/payflow/internal/worker"
)

type App struct {
	Router *gin.Engine
}

// InitWithConfig wires the full dependency graph. The returned cleanup closes
// external connections; ctx cancellation stops the background consumers and
// the reconciler.
func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	logging.Init(cfg.App.Name, cfg.App.LogFile)

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("ping mysql: %w", err)
	}

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	// init rabbitmq
	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	// webhook signing keys
	keys, err := security.NewKeystore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("load webhook keys: %w", err)
	}

	// infra
	orderRepo := repo.NewMySQLOrderRepo(db)
	attemptRepo := repo.NewMySQLAttemptRepo(db)
	webhookRepo := repo.NewMySQLWebhookRepo(db)
	splitRepo := repo.NewMySQLSplitRepo(db)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	locker := cache.NewRedisOrderLock(rdb, cfg.OrderLock.TTL, cfg.OrderLock.MaxWait)
	statusCache := cache.NewRedisCache(rdb, cfg.Cache.TTL)
	producer, err := queue.NewRabbitProducer(ch)
	if err != nil {
		return nil, nil, fmt.Errorf("init rabbit producer: %w", err)
	}

	// gateways behind the dispatch router
	gwRouter := gateway.NewRouter(
		gateway.NewPrimaryGateway(cfg.Gateways.Primary, keys.Primary, logging.New("gateway.primary")),
		gateway.NewSecondaryGateway(cfg.Gateways.Secondary, keys.Secondary, logging.New("gateway.secondary")),
		gateway.NewCashNetGateway(cfg.Gateways.CashNet, keys.CashNet, logging.New("gateway.cashnet")),
		cfg,
		logging.New("gateway.router"),
	)

	// use cases
	resolver := usecase.NewAttemptResolver(orderRepo, attemptRepo, producer, statusCache, logging.New("resolver"))
	registerUC := usecase.NewRegisterOrder(orderRepo, idem, logging.New("register_order"))
	payUC := usecase.NewPayOrder(orderRepo, attemptRepo, gwRouter, locker, statusCache, logging.New("pay_order"))
	webhookUC := usecase.NewProcessWebhook(gwRouter, webhookRepo, attemptRepo, resolver, idem, locker, logging.New("process_webhook"))
	settleUC := usecase.NewSettleOrder(orderRepo, attemptRepo, splitRepo, producer, cfg.Commission.PlatformFeePermille, logging.New("settle_order"))
	fulfillUC := usecase.NewFulfillOrder(orderRepo, locker, settleUC, producer, statusCache, logging.New("fulfill_order"))
	reconcileUC := usecase.NewReconcilePending(orderRepo, attemptRepo, splitRepo, gwRouter, resolver, locker, producer,
		cfg.Reconcile.ConfirmTimeout, cfg.Reconcile.BatchSize, logging.New("reconcile"))

	// settlement queue consumer
	qr := queue.NewRouter(ch, logging.New("rabbit"), queue.WithPrefetch(50))
	qr.Register(queue.SettlementRequestedQueue, queue.NewSettleHandler(settleUC, logging.New("settle_consumer")))
	if err := qr.Start(); err != nil {
		return nil, nil, fmt.Errorf("start rabbit consumers: %w", err)
	}

	// fulfillment feed from order management
	if err := startKafkaListener(ctx, cfg, fulfillUC); err != nil {
		return nil, nil, err
	}

	// reconciliation sweeper
	go worker.NewReconciler(reconcileUC, cfg.Reconcile.Interval, logging.New("reconciler")).Run(ctx)

	// http surface
	handlers := http.Handlers{
		Orders:      http.NewOrderHandler(registerUC, orderRepo, splitRepo, statusCache),
		Pay:         http.NewPayHandler(payUC),
		Webhooks:    http.NewWebhookHandler(webhookUC),
		Fulfillment: http.NewFulfillmentHandler(fulfillUC),
		Token:       http.NewTokenHandler(cfg),
	}
	router := http.NewRouter(handlers, middleware.NewAuthz(cfg), logging.New("http"))

	cleanup := func() {
		_ = ch.Close()
		_ = conn.Close()
		_ = rdb.Close()
		_ = db.Close()
	}
	return &App{Router: router}, cleanup, nil
}

func startKafkaListener(ctx context.Context, cfg configs.Config, fulfillUC *usecase.FulfillOrder) error {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return fmt.Errorf("init kafka group: %w", err)
	}

	l := logging.New("kafka")
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.FulfillmentTopic}, kafka.NewFulfillmentHandler(fulfillUC, l), l)
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			l.Error("kafka consumer exited", "err", err)
		}
		_ = grp.Close()
	}()
	return nil
}
