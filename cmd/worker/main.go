package main

import (
	"context"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ecofinds/marketplace/application/notification"
	"github.com/ecofinds/marketplace/cmd/config"
	"github.com/ecofinds/marketplace/repository/memory"
	userRepo "github.com/ecofinds/marketplace/repository/user"
	"github.com/ecofinds/marketplace/thirdparty/rabbitmq"
	"github.com/ecofinds/marketplace/utils/logger"
)

// worker consumes order events and notifies buyers and sellers.
func main() {
	cfg := config.Load()

	if err := logger.Init(cfg.Environment); err != nil {
		panic(err)
	}
	defer logger.Close()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	var users userRepo.UserRepository
	if cfg.Database.Driver == config.DriverMemory {
		store := memory.NewStore()
		store.SeedDemo()
		users = memory.NewUserRepository(store)
	} else {
		db, err := sqlx.Connect(cfg.Database.Driver, cfg.GetDSN())
		if err != nil {
			logger.Fatal("err connect db", zap.Error(err))
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.Database.MaxIdleConns)
		users = userRepo.NewUserRepository(db)
	}

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQ.Host, cfg.RabbitMQ.Port, cfg.RabbitMQ.User, cfg.RabbitMQ.Password)
	if err != nil {
		logger.Fatal("err connect rabbitmq", zap.Error(err))
	}
	defer func() {
		_ = consumer.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("notification worker running", zap.String("queue", rabbitmq.NotificationQueue))
	if err := consumer.Start(ctx, notification.NewNotifier(users).Handle); err != nil {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("notification worker stopped")
}
