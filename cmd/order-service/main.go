package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-orderflow/internal/audit"
	"ms-orderflow/internal/config"
	"ms-orderflow/internal/gateway"
	"ms-orderflow/internal/gateway/ageverify"
	"ms-orderflow/internal/gateway/shippo"
	"ms-orderflow/internal/gateway/stripegw"
	"ms-orderflow/internal/logger"
	"ms-orderflow/internal/models"
	"ms-orderflow/internal/order"
	"ms-orderflow/internal/order/api"
	"ms-orderflow/internal/order/db"
	orderkafka "ms-orderflow/internal/order/kafka"
	rediswrap "ms-orderflow/internal/order/redis"
	"ms-orderflow/internal/report"
	"ms-orderflow/internal/storage"
)

func connectDatabase(cfg config.DatabaseConfig, logger *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Order Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectDatabase(cfg.Database, logger)
	defer bunDB.Close()
	db.Migrate(bunDB)
	logger.Info("DATABASE", "Schema migrations applied")

	redisClient := connectRedis(ctx, cfg.Redis, logger)
	defer redisClient.Close()

	if cfg.Kafka.Enabled {
		if err := orderkafka.EnsureTopicsExist(cfg.Kafka.Brokers); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
	}
	producer := orderkafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	logger.Info("KAFKA", "Kafka producer initialized successfully")

	fileStore, err := storage.NewFileStore(cfg.Storage.Dir)
	if err != nil {
		logger.Fatal("STORAGE", fmt.Sprintf("Failed to initialize object store: %v", err))
	}

	auditRecorder := audit.NewRecorder(&db.DB{Bun: bunDB}, logger, 256)
	defer auditRecorder.Close()

	ageVerifier := ageverify.NewClient(cfg.AgeVerify.BaseURL, cfg.AgeVerify.APIKey,
		&http.Client{Timeout: cfg.AgeVerify.Timeout}, cfg.AgeVerify.PollInterval, cfg.AgeVerify.MaxAttempts)
	payments := stripegw.New(cfg.Stripe.SecretKey)
	labels := shippo.NewClient(cfg.Shippo.BaseURL, cfg.Shippo.APIToken,
		&http.Client{Timeout: cfg.Shippo.Timeout})

	warehouse := models.Address{
		FirstName:  cfg.Warehouse.Name,
		Street1:    cfg.Warehouse.Street1,
		City:       cfg.Warehouse.City,
		State:      cfg.Warehouse.State,
		PostalCode: cfg.Warehouse.PostalCode,
		Country:    cfg.Warehouse.Country,
		Phone:      cfg.Warehouse.Phone,
	}

	orderService := order.NewService(order.Deps{
		DB:          &db.DB{Bun: bunDB},
		Lock:        rediswrap.NewRedis(redisClient),
		Notifier:    producer,
		AgeVerifier: ageVerifier,
		Payments:    payments,
		Labels:      labels,
		Store:       fileStore,
		Audit:       auditRecorder,
		Warehouse:   warehouse,
		Parcel: gateway.Parcel{
			LengthIn: 10,
			WidthIn:  8,
			HeightIn: 4,
			WeightOz: 16,
		},
		Logger: logger,
	})

	reportService := report.NewService(&report.Store{Bun: bunDB}, fileStore, auditRecorder, logger)

	handler := &api.Handler{
		OrderService:  orderService,
		ReportService: reportService,
	}

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(api.ActorMiddleware())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", handler.CreateOrder)
			r.Get("/{orderId}", handler.GetOrder)
			r.Post("/{orderId}/ship", handler.ShipOrder)
			r.Post("/{orderId}/stake-call", handler.LogStakeCall)
		})
		r.Post("/reports/pact", handler.GenerateReport)
	})
	logger.Info("ROUTER", "Order and report routes registered under /api/v1")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Order Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Order Service shutdown complete")
	}
}
