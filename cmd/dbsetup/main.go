package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/GoSTEAN/velo-sub001/internal/config"
	"github.com/GoSTEAN/velo-sub001/internal/models"
	"github.com/GoSTEAN/velo-sub001/internal/services"
	"github.com/GoSTEAN/velo-sub001/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	var (
		migrate     = flag.Bool("migrate", false, "Run pending receipt collection migrations")
		rollback    = flag.Bool("rollback", false, "Roll back the last migration")
		seedData    = flag.Bool("seed", false, "Seed the receipt collection with sample receipts")
		healthCheck = flag.Bool("health", false, "Run database health check")
		all         = flag.Bool("all", false, "Run migrate, health check and seed")
	)
	flag.Parse()

	if !*migrate && !*rollback && !*seedData && !*healthCheck && !*all {
		fmt.Println("Receipt Store Setup Utility")
		fmt.Println("Usage:")
		fmt.Println("  -migrate   Run pending receipt collection migrations")
		fmt.Println("  -rollback  Roll back the last migration")
		fmt.Println("  -seed      Seed the receipt collection with sample receipts")
		fmt.Println("  -health    Run database health check")
		fmt.Println("  -all       Run full setup (migrate + health + seed)")
		fmt.Println()
		fmt.Println("Environment Variables:")
		fmt.Println("  MONGODB_URI                 MongoDB connection string")
		fmt.Println("  MONGODB_DATABASE            Database name")
		fmt.Println("  MONGODB_RECEIPT_COLLECTION  Receipt collection name")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&logger.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.Logging.Environment,
		OutputPaths: cfg.Logging.OutputPaths,
		Service:     "payment-verifier-dbsetup",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()
	defer func() { _ = log.Sync() }()

	if !cfg.MongoDB.Enabled() {
		log.Fatal("MONGODB_URI must be set")
	}

	ctx := context.Background()

	client, err := services.ConnectMongo(ctx, &cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	store := services.NewReceiptStore(client, &cfg.MongoDB)
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to disconnect", zap.Error(err))
		}
	}()

	manager := NewMigrationManager(client, &cfg.MongoDB)

	if *migrate || *all {
		if err := manager.MigrateUp(ctx); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
	}

	if *rollback {
		if err := manager.MigrateDown(ctx); err != nil {
			log.Fatal("Rollback failed", zap.Error(err))
		}
	}

	// After migrations so that a fresh database has its indexes
	if *healthCheck || *all {
		if err := runHealthCheck(ctx, store); err != nil {
			log.Fatal("Health check failed", zap.Error(err))
		}
	}

	if *seedData || *all {
		if err := seedReceipts(ctx, store); err != nil {
			log.Fatal("Data seeding failed", zap.Error(err))
		}
	}

	log.Info("Database setup completed successfully")
}

// runHealthCheck reports the receipt store check and fails unless it is healthy
func runHealthCheck(ctx context.Context, store *services.ReceiptStore) error {
	check := store.Check(ctx)

	logger.GetLogger().Info("Health check",
		zap.String("check", check.Service),
		zap.String("status", string(check.Status)),
		zap.Duration("response_time", check.ResponseTime),
		zap.String("message", check.Message),
	)

	if check.Status != services.HealthStatusHealthy {
		return fmt.Errorf("receipt store %s: %s", check.Status, check.Message)
	}
	return nil
}

// seedReceipts records sample receipts for local development. Recording is an
// upsert, so seeding twice leaves the same documents.
func seedReceipts(ctx context.Context, store *services.ReceiptStore) error {
	log := logger.GetLogger()
	now := time.Now().UTC()

	samples := []models.Receipt{
		{
			TxHash:         "0x5eed0001",
			Receiver:       "0xabc",
			Token:          "0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7",
			ExpectedAmount: "1000000000000000000",
			ObservedAmount: "1000000000000000000",
			BlockNumber:    100,
			Confirmations:  3,
			Status:         models.StatusSuccess,
			Description:    "seed: awaiting confirmations",
			FirstSeenAt:    now,
		},
		{
			TxHash:         "0x5eed0002",
			Receiver:       "0xabc",
			Token:          "0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7",
			ExpectedAmount: "500",
			ObservedAmount: "497",
			BlockNumber:    90,
			Confirmations:  12,
			Status:         models.StatusConfirmed,
			Description:    "seed: confirmed within tolerance",
			FirstSeenAt:    now,
		},
	}

	for i := range samples {
		if err := store.Record(ctx, &samples[i]); err != nil {
			return fmt.Errorf("record %s: %w", samples[i].TxHash, err)
		}
	}

	log.Info("Seeded receipts", zap.Int("count", len(samples)))
	return nil
}
