package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/kafka"
	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/adapter/memory"
	"github.com/YelzhanWeb/catering/internal/adapter/postgres"
	"github.com/YelzhanWeb/catering/internal/adapter/rabbitmq"
	"github.com/YelzhanWeb/catering/internal/app/lifecycle"
	"github.com/YelzhanWeb/catering/internal/app/menu"
	"github.com/YelzhanWeb/catering/internal/app/order"
	"github.com/YelzhanWeb/catering/internal/app/promotion"
	"github.com/YelzhanWeb/catering/internal/app/stats"
	"github.com/YelzhanWeb/catering/internal/app/tracking"
	"github.com/YelzhanWeb/catering/internal/config"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	amqpAdapter "github.com/YelzhanWeb/catering/internal/adapter/amqp"
	httpAdapter "github.com/YelzhanWeb/catering/internal/adapter/http"
	redisAdapter "github.com/YelzhanWeb/catering/internal/adapter/redis"
)

type options struct {
	mode          string
	port          int
	configPath    string
	prefetch      int
	store         string
	migrate       bool
	relayWebhooks bool
}

// repositories is the storage the services run on, postgres or in memory.
type repositories struct {
	orders     interfaces.OrderRepository
	promotions interfaces.PromotionRepository
	menu       interfaces.MenuRepository
	stats      interfaces.StatsRepository
	close      func()
}

func main() {
	var opts options
	flag.StringVar(&opts.mode, "mode", "", "Service mode: api, event-worker, notification-subscriber")
	flag.IntVar(&opts.port, "port", 0, "HTTP port, overrides server.port")
	flag.StringVar(&opts.configPath, "config", "config.yaml", "Path to the YAML config")
	flag.IntVar(&opts.prefetch, "prefetch", 10, "RabbitMQ prefetch count")
	flag.StringVar(&opts.store, "store", "postgres", "Order store: postgres or memory")
	flag.BoolVar(&opts.migrate, "migrate", false, "Apply the embedded schema before starting")
	flag.BoolVar(&opts.relayWebhooks, "relay-webhooks", false, "Queue verified webhooks on RabbitMQ instead of applying them inline")
	flag.Parse()

	if opts.mode == "" {
		log.Fatal("--mode flag is required")
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if opts.port == 0 {
		opts.port = cfg.Server.Port
	}

	lgr := logger.New(opts.mode, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mqConn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ, lgr)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": cfg.RabbitMQ.Host,
	})

	switch opts.mode {
	case "api":
		err = runAPI(ctx, cfg, opts, mqConn, lgr)
	case "event-worker":
		err = runEventWorker(ctx, cfg, opts, mqConn, lgr)
	case "notification-subscriber":
		err = runNotificationSubscriber(ctx, mqConn, lgr)
	default:
		log.Fatalf("Invalid mode: %s", opts.mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		lgr.Error("service_failed", "Service stopped with error", "runtime", nil, err)
		os.Exit(1)
	}
	lgr.Info("shutdown_complete", "Service stopped", "shutdown", nil)
}

func openRepositories(ctx context.Context, cfg *config.Config, opts options, lgr logger.Logger) (*repositories, error) {
	if opts.store == "memory" {
		store := memory.NewStore()
		lgr.Warn("memory_store", "Using the in-memory store, data is lost on exit", "startup", nil)
		return &repositories{
			orders:     store.Orders(),
			promotions: store.Promotions(),
			menu:       store.Menu(),
			stats:      store.Stats(),
			close:      func() {},
		}, nil
	}

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
		"host": cfg.Database.Host,
		"db":   cfg.Database.Database,
	})

	if opts.migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		lgr.Info("db_migrated", "Database schema applied", "startup", nil)
	}

	return &repositories{
		orders:     postgres.NewOrderRepository(db),
		promotions: postgres.NewPromotionRepository(db),
		menu:       postgres.NewMenuRepository(db),
		stats:      postgres.NewStatsRepository(db),
		close:      db.Close,
	}, nil
}

// openCRM returns nil when the CRM mirror is disabled.
func openCRM(cfg *config.Config, lgr logger.Logger) (interfaces.CRMSync, func()) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}
	}
	producer, err := kafka.NewCRMProducer(cfg.Kafka, lgr)
	if err != nil {
		lgr.Error("kafka_unavailable", "CRM mirror disabled, Kafka producer failed to start", "startup", nil, err)
		return nil, func() {}
	}
	return producer, func() {
		if err := producer.Close(); err != nil {
			lgr.Error("kafka_close_failed", "Failed to flush CRM producer", "shutdown", nil, err)
		}
	}
}

func newCalculator(cfg *config.Config) *domain.Calculator {
	// both values passed Validate when the config was loaded
	rate, _ := cfg.TaxRate()
	fee, _ := cfg.DeliveryFee()
	return domain.NewCalculator(rate, fee)
}

func runAPI(ctx context.Context, cfg *config.Config, opts options, mqConn rabbitmq.Connection, lgr logger.Logger) error {
	repos, err := openRepositories(ctx, cfg, opts, lgr)
	if err != nil {
		return err
	}
	defer repos.close()

	crm, closeCRM := openCRM(cfg, lgr)
	defer closeCRM()

	publisher := rabbitmq.NewPublisher(mqConn)

	menuRepo := repos.menu
	var limiter httpAdapter.RateLimiter
	if rdb, err := redisAdapter.Connect(ctx, cfg.Redis); err != nil {
		lgr.Warn("redis_unavailable", "Running without menu cache and rate limiting", "startup", map[string]interface{}{"error": err.Error()})
	} else {
		defer rdb.Close()
		ttl := time.Duration(cfg.Redis.MenuCacheTTLSec) * time.Second
		menuRepo = redisAdapter.NewCachedMenuRepository(repos.menu, rdb, ttl, lgr)
		limiter = redisAdapter.NewRateLimiter(rdb, cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSec)*time.Second)
		lgr.Info("redis_connected", "Connected to Redis", "startup", map[string]interface{}{"addr": cfg.Redis.Addr})
	}

	calc := newCalculator(cfg)
	menuService := menu.NewService(menuRepo, lgr)
	promotionService := promotion.NewService(repos.promotions, repos.orders, calc.Rules(), lgr)

	var orderOpts []order.Option
	if cfg.Pricing.PriceLunch {
		orderOpts = append(orderOpts, order.WithLunchPricing(menuService))
	}
	orderService := order.NewService(repos.orders, promotionService, calc, publisher, crm, lgr, orderOpts...)
	lifecycleService := lifecycle.NewService(repos.orders, publisher, crm, lgr)

	var relay interfaces.EventRelay
	if opts.relayWebhooks {
		relay = publisher
	}

	handler := httpAdapter.NewRouter(httpAdapter.Handlers{
		Orders:     httpAdapter.NewOrderHandler(orderService, lgr),
		Promotions: httpAdapter.NewPromotionHandler(promotionService, lgr),
		Webhooks:   httpAdapter.NewWebhookHandler(lifecycleService, relay, cfg.Webhooks.PaymentSecret, cfg.Webhooks.DeliverySecret, lgr),
		Admin:      httpAdapter.NewAdminHandler(lifecycleService, menuService, stats.NewService(repos.stats, lgr), lgr),
		Tracking:   httpAdapter.NewTrackingHandler(tracking.NewService(repos.orders, lgr), lgr),
	}, limiter, lgr)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lgr.Info("service_started", fmt.Sprintf("Catering API started on port %d", opts.port), "startup", map[string]interface{}{
		"port":           opts.port,
		"store":          opts.store,
		"relay_webhooks": opts.relayWebhooks,
	})

	go func() {
		<-ctx.Done()
		lgr.Info("shutdown_initiated", "Shutting down Catering API", "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runEventWorker(ctx context.Context, cfg *config.Config, opts options, mqConn rabbitmq.Connection, lgr logger.Logger) error {
	if opts.store == "memory" {
		return errors.New("event-worker needs the postgres store shared with the api")
	}
	repos, err := openRepositories(ctx, cfg, opts, lgr)
	if err != nil {
		return err
	}
	defer repos.close()

	crm, closeCRM := openCRM(cfg, lgr)
	defer closeCRM()

	lifecycleService := lifecycle.NewService(repos.orders, rabbitmq.NewPublisher(mqConn), crm, lgr)
	handler := amqpAdapter.NewEventHandler(lifecycleService, lgr)
	consumer := rabbitmq.NewConsumer(mqConn, opts.prefetch, lgr)

	lgr.Info("service_started", "Event worker started", "startup", map[string]interface{}{
		"prefetch": opts.prefetch,
		"queue":    rabbitmq.EventsQueue,
	})

	return consumer.ConsumeEvents(ctx, handler.HandleEvent)
}

func runNotificationSubscriber(ctx context.Context, mqConn rabbitmq.Connection, lgr logger.Logger) error {
	consumer := rabbitmq.NewConsumer(mqConn, 1, lgr)
	notificationHandler := amqpAdapter.NewNotificationHandler(lgr)

	lgr.Info("service_started", "Notification Subscriber started", "startup", nil)

	return consumer.ConsumeNotifications(ctx, notificationHandler.HandleNotification)
}
