package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/GoSTEAN/velo-sub001/internal/config"
	"github.com/GoSTEAN/velo-sub001/internal/models"
	"github.com/GoSTEAN/velo-sub001/internal/services"
	"github.com/GoSTEAN/velo-sub001/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const migrationsCollection = "schema_migrations"

// Migration is one versioned change to the receipt collection
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, coll *mongo.Collection) error
	Down        func(ctx context.Context, coll *mongo.Collection) error
}

// MigrationManager applies and rolls back migrations, tracking the applied
// versions in their own collection
type MigrationManager struct {
	db         *mongo.Database
	receipts   *mongo.Collection
	migrations []Migration
	log        *logger.Logger
}

// NewMigrationManager creates a migration manager over an open client
func NewMigrationManager(client *mongo.Client, cfg *config.MongoDBConfig) *MigrationManager {
	db := client.Database(cfg.Database)
	return &MigrationManager{
		db:         db,
		receipts:   db.Collection(cfg.ReceiptCollection),
		migrations: receiptMigrations(),
		log:        logger.GetLogger().Named("migrations"),
	}
}

func receiptMigrations() []Migration {
	indexes := services.ReceiptIndexes()

	return []Migration{
		{
			Version:     1,
			Description: "Create receipt collection with unique (tx_hash, receiver, token) index",
			Up: func(ctx context.Context, coll *mongo.Collection) error {
				_, err := coll.Indexes().CreateOne(ctx, indexes[0])
				return err
			},
			Down: func(ctx context.Context, coll *mongo.Collection) error {
				return coll.Drop(ctx)
			},
		},
		{
			Version:     2,
			Description: "Add receiver history and status indexes",
			Up: func(ctx context.Context, coll *mongo.Collection) error {
				_, err := coll.Indexes().CreateMany(ctx, indexes[1:])
				return err
			},
			Down: func(ctx context.Context, coll *mongo.Collection) error {
				var errs []error
				for _, name := range []string{services.ReceiptReceiverIndex, services.ReceiptStatusIndex} {
					if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
						errs = append(errs, fmt.Errorf("drop %s: %w", name, err))
					}
				}
				return errors.Join(errs...)
			},
		},
		{
			Version:     3,
			Description: "Backfill confirmed_at of confirmed receipts",
			Up: func(ctx context.Context, coll *mongo.Collection) error {
				filter := bson.M{
					"status":       models.StatusConfirmed,
					"confirmed_at": bson.M{"$exists": false},
				}
				update := mongo.Pipeline{
					{{Key: "$set", Value: bson.M{"confirmed_at": "$first_seen_at"}}},
				}
				_, err := coll.UpdateMany(ctx, filter, update)
				return err
			},
			// A backfilled timestamp cannot be told apart from a recorded one
			Down: func(ctx context.Context, coll *mongo.Collection) error {
				return nil
			},
		},
	}
}

// pendingMigrations returns the migrations above current, in version order
func pendingMigrations(migrations []Migration, current int) []Migration {
	var pending []Migration
	for _, m := range migrations {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })
	return pending
}

func findMigration(migrations []Migration, version int) (Migration, bool) {
	for _, m := range migrations {
		if m.Version == version {
			return m, true
		}
	}
	return Migration{}, false
}

// CurrentVersion returns the highest applied version, 0 when none ran
func (mm *MigrationManager) CurrentVersion(ctx context.Context) (int, error) {
	var result struct {
		Version int `bson:"version"`
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	err := mm.db.Collection(migrationsCollection).FindOne(ctx, bson.M{}, opts).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	return result.Version, nil
}

// MigrateUp runs all pending migrations
func (mm *MigrationManager) MigrateUp(ctx context.Context) error {
	current, err := mm.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	mm.log.Info("Current migration version", zap.Int("version", current))

	for _, m := range pendingMigrations(mm.migrations, current) {
		mm.log.Info("Running migration", zap.Int("version", m.Version), zap.String("description", m.Description))

		stepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := m.Up(stepCtx, mm.receipts)
		cancel()
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}

		doc := bson.M{"version": m.Version, "description": m.Description, "applied_at": time.Now().UTC()}
		if _, err := mm.db.Collection(migrationsCollection).InsertOne(ctx, doc); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}

	mm.log.Info("All migrations applied")
	return nil
}

// MigrateDown rolls back the last applied migration
func (mm *MigrationManager) MigrateDown(ctx context.Context) error {
	current, err := mm.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if current == 0 {
		mm.log.Info("No migrations to roll back")
		return nil
	}

	m, ok := findMigration(mm.migrations, current)
	if !ok {
		return fmt.Errorf("migration %d not found", current)
	}

	mm.log.Info("Rolling back migration", zap.Int("version", m.Version), zap.String("description", m.Description))

	stepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = m.Down(stepCtx, mm.receipts)
	cancel()
	if err != nil {
		return fmt.Errorf("rollback of migration %d failed: %w", m.Version, err)
	}

	if _, err := mm.db.Collection(migrationsCollection).DeleteOne(ctx, bson.M{"version": current}); err != nil {
		return fmt.Errorf("remove migration record: %w", err)
	}
	return nil
}
