package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	authapp "github.com/ecofinds/marketplace/application/auth"
	cartapp "github.com/ecofinds/marketplace/application/cart"
	orderapp "github.com/ecofinds/marketplace/application/order"
	productapp "github.com/ecofinds/marketplace/application/product"
	"github.com/ecofinds/marketplace/cmd/config"
	redisclient "github.com/ecofinds/marketplace/cmd/redis"
	_ "github.com/ecofinds/marketplace/docs"
	"github.com/ecofinds/marketplace/pkg/metrics"
	cartRepo "github.com/ecofinds/marketplace/repository/cart"
	"github.com/ecofinds/marketplace/repository/memory"
	orderRepo "github.com/ecofinds/marketplace/repository/order"
	productRepo "github.com/ecofinds/marketplace/repository/product"
	redisRepo "github.com/ecofinds/marketplace/repository/redis"
	txRepo "github.com/ecofinds/marketplace/repository/tx"
	userRepo "github.com/ecofinds/marketplace/repository/user"
	"github.com/ecofinds/marketplace/thirdparty/rabbitmq"
	"github.com/ecofinds/marketplace/transport"
	"github.com/ecofinds/marketplace/utils/logger"
)

type repositories struct {
	tx      txRepo.TxRepository
	user    userRepo.UserRepository
	product productRepo.ProductRepository
	cart    cartRepo.CartRepository
	order   orderRepo.OrderRepository
}

// @title EcoFinds Marketplace API
// @version 1.0
// @description Checkout and order service of the EcoFinds second-hand marketplace
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables
	cfg := config.Load()

	// Initialize global logger
	if err := logger.Init(cfg.Environment); err != nil {
		panic(err)
	}
	defer logger.Close()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	logger.Info("Starting server", zap.String("env", cfg.Environment), zap.String("db_driver", cfg.Database.Driver))

	repos, closeDB := openRepositories(cfg)
	defer closeDB()

	// Redis backs sessions and idempotency keys
	var rdb *goredis.Client
	client, err := redisclient.New(cfg)
	switch {
	case err == nil:
		rdb = client
		defer func() {
			_ = rdb.Close()
		}()
	case cfg.Database.Driver == config.DriverMemory:
		logger.Warn("redis unavailable, sessions and idempotency disabled", zap.Error(err))
	default:
		logger.Fatal("err connect redis", zap.Error(err))
	}
	RedisRepo := redisRepo.NewRepository(rdb)

	var publisher rabbitmq.EventPublisher
	if cfg.RabbitMQ.Enabled {
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQ.Host, cfg.RabbitMQ.Port, cfg.RabbitMQ.User, cfg.RabbitMQ.Password)
		if err != nil {
			logger.Fatal("err connect rabbitmq", zap.Error(err))
		}
		defer func() {
			_ = p.Close()
		}()
		publisher = p
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize application layers
	AuthApp := authapp.NewAuthApp(cfg, repos.user, RedisRepo)
	ProductApp := productapp.NewProductApp(repos.product)
	CartApp := cartapp.NewCartApp(repos.cart, repos.product)
	OrderApp := orderapp.NewOrderApp(cfg, repos.tx, repos.order, repos.cart, repos.product, RedisRepo, publisher, metrics.NewOrderMetrics(reg))

	httpTransport := transport.NewTransport(AuthApp, ProductApp, CartApp, OrderApp, transport.Options{
		Metrics:      metrics.NewServerMetrics(reg),
		Gatherer:     reg,
		MetricsToken: cfg.Server.MetricsToken,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpTransport,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("HTTP server running", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", zap.Error(err))
	}
}

// openRepositories connects the configured storage backend.
func openRepositories(cfg *config.Config) (repositories, func()) {
	if cfg.Database.Driver == config.DriverMemory {
		store := memory.NewStore()
		store.SeedDemo()
		logger.Warn("using in-memory storage, data is lost on exit")
		return repositories{
			tx:      memory.NewTxRepository(store),
			user:    memory.NewUserRepository(store),
			product: memory.NewProductRepository(store),
			cart:    memory.NewCartRepository(store),
			order:   memory.NewOrderRepository(store),
		}, func() {}
	}

	db, err := sqlx.Connect(cfg.Database.Driver, cfg.GetDSN())
	if err != nil {
		logger.Fatal("err connect db", zap.Error(err))
	}

	// Set database connection pool settings
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return repositories{
		tx:      txRepo.NewTxRepository(db),
		user:    userRepo.NewUserRepository(db),
		product: productRepo.NewProductRepository(db),
		cart:    cartRepo.NewCartRepository(db),
		order:   orderRepo.NewOrderRepository(db),
	}, func() { _ = db.Close() }
}
