package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront/internal/adapter/catalog"
	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/messaging"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/logger"
	"github.com/rl1809/storefront/internal/port"
)

const (
	memoryCleanupInterval = time.Minute
	grpcHealthInterval    = 10 * time.Second
)

// sessionStore is everything the conversation needs from the fast store.
type sessionStore interface {
	port.CartRepository
	port.SessionRepository
	port.UserLocker
	port.IdempotencyStore
	port.Outbox
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pingers := make(map[string]handler.Pinger)
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn("close failed", zap.Error(err))
			}
		}
		log.Info("connections closed")
	}()

	// Initialize the cart and session store
	var (
		store  sessionStore
		orders port.OrderRepository
		users  port.UserRepository
	)
	storeOpts := storage.RedisOptions{
		CartCeiling: cfg.Cart.ItemCeiling,
		CartTTL:     cfg.Cart.TTL,
		SessionTTL:  cfg.Checkout.SessionTTL,
	}

	switch cfg.App.StoreType {
	case "memory":
		mem := storage.NewMemoryAdapter(storeOpts, memoryCleanupInterval)
		closers = append(closers, func() error { mem.Close(); return nil })
		store, orders, users = mem, mem, mem
		log.Info("using in-memory store")

	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:            cfg.Redis.Address(),
			Password:        cfg.Redis.Password,
			DB:              cfg.Redis.DB,
			PoolSize:        cfg.Redis.PoolSize,
			MaxRetries:      cfg.Redis.MaxRetries,
			MinRetryBackoff: cfg.Redis.MinRetryBackoff,
			MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
			DialTimeout:     cfg.Redis.DialTimeout,
		})
		closers = append(closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Address()))

		redisAdapter := storage.NewRedisAdapter(rdb, storeOpts)
		pingers["redis"] = redisAdapter
		store = redisAdapter

		// Initialize MySQL
		db, err := sql.Open("mysql", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("open mysql: %w", err)
		}
		closers = append(closers, db.Close)
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping mysql: %w", err)
		}
		log.Info("connected to mysql")

		if cfg.Database.Migrate {
			if err := storage.RunMigrations(db); err != nil {
				return err
			}
			log.Info("migrations applied")
		}

		mysqlAdapter := storage.NewMySQLAdapter(db)
		pingers["mysql"] = mysqlAdapter
		orders = storage.NewBreakerOrderRepository(mysqlAdapter, storage.BreakerSettings{
			MaxFailures: cfg.Database.BreakerMaxFailures,
			Timeout:     cfg.Database.BreakerTimeout,
		}, log)
		users = mysqlAdapter
	}

	// Initialize the inventory source
	source, err := openCatalogSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	if c, ok := source.(interface{ Close() error }); ok {
		closers = append(closers, c.Close)
	}

	// Initialize the event publisher
	var events port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafka := messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.CartChangedTopic, cfg.Kafka.CheckoutCompletedTopic)
		closers = append(closers, kafka.Close)
		events = kafka
		log.Info("publishing events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		bus := messaging.NewBus()
		bus.OnCheckoutCompleted(func(ctx context.Context, e domain.CheckoutCompleted) {
			log.Info("checkout completed",
				zap.Int64("order_id", e.OrderID),
				zap.Int64("user_id", e.UserID),
				zap.String("total", e.Total.StringFixed(2)),
			)
		})
		events = bus
	}

	// Initialize services
	inventory := service.NewCatalog(source, cfg.Catalog.ReloadInterval, cfg.Catalog.LoadTimeout, log)
	if err := inventory.Start(ctx); err != nil {
		log.Warn("initial catalog load failed, retrying on schedule", zap.Error(err))
	}
	defer inventory.Stop()

	notifications := service.NewNotificationService(store, store, events, cfg.App.AdminIDs, cfg.Notify.QueueSize, log)
	notifications.Start(cfg.Notify.Workers)
	defer notifications.Close()
	log.Info("started notification workers", zap.Int("workers", cfg.Notify.Workers))

	carts := service.NewCartService(store, inventory, events, log)
	reconciler := service.NewReconciler(carts, inventory, log)
	orderService := service.NewOrderService(orders, users, store, carts, reconciler, notifications, store,
		service.OrderServiceConfig{
			PageSize:      cfg.Checkout.OrdersPageSize,
			AdminPageSize: cfg.Checkout.AdminOrdersPageSize,
		}, log)
	checkout := service.NewCheckoutService(store, reconciler, orderService, log)
	conversation := service.NewConversation(store, users, inventory, carts, reconciler, checkout, orderService,
		cfg.Checkout.LockTTL, log)

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLogging(log)))
	grpcHandler := handler.NewGRPCHandler(inventory, pingers, log)
	grpcHandler.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddress())
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	healthCtx, stopHealth := context.WithCancel(ctx)
	go grpcHandler.Run(healthCtx, grpcHealthInterval)

	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCAddress()))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(conversation, inventory, orderService, store, pingers, log)
	router := handler.NewRouter(handler.RouterConfig{
		Handler: httpHandler,
		IsAdmin: cfg.App.IsAdmin,
		Logger:  log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.HTTPAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddress()))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	stopHealth()
	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	inventory.Stop()
	notifications.Close()
	log.Info("workers stopped")

	return nil
}

func openCatalogSource(ctx context.Context, cfg *config.Config, log *zap.Logger) (port.CatalogSource, error) {
	c := cfg.Catalog

	switch c.Source {
	case "sqlite":
		db, err := catalog.OpenSQLite(c.Path)
		if err != nil {
			return nil, err
		}
		return newSQLSource(db, "sqlite", c.Table)

	case "postgres":
		db, err := catalog.OpenPostgres(c.PostgresDSN())
		if err != nil {
			return nil, err
		}
		return newSQLSource(db, "postgres", c.Table)

	case "mongodb":
		source, err := catalog.NewMongoSource(ctx, c.MongoURI, c.MongoDatabase, c.MongoCollection)
		if err != nil {
			return nil, err
		}
		return source, nil

	default:
		return catalog.NewXLSXSource(c.Path, c.Sheet, c.SkipRows, log), nil
	}
}

func newSQLSource(db *sql.DB, driver, table string) (port.CatalogSource, error) {
	source, err := catalog.NewSQLSource(db, driver, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return source, nil
}
