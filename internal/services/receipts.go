package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/GoSTEAN/velo-sub001/internal/config"
	"github.com/GoSTEAN/velo-sub001/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Receipt collection index names
const (
	ReceiptUniqueIndex   = "tx_hash_1_receiver_1_token_1"
	ReceiptReceiverIndex = "receiver_1_first_seen_at_-1"
	ReceiptStatusIndex   = "status_1"
)

// ErrReceiptNotFound is returned when no receipt exists for a transaction
var ErrReceiptNotFound = errors.New("receipt not found")

// ReceiptIndexes are the indexes the receipt collection relies on
func ReceiptIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tx_hash", Value: 1}, {Key: "receiver", Value: 1}, {Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(ReceiptUniqueIndex),
		},
		{
			Keys:    bson.D{{Key: "receiver", Value: 1}, {Key: "first_seen_at", Value: -1}},
			Options: options.Index().SetName(ReceiptReceiverIndex),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName(ReceiptStatusIndex),
		},
	}
}

// missingIndexes returns the names of ReceiptIndexes absent from present, sorted
func missingIndexes(present []string) []string {
	have := make(map[string]struct{}, len(present))
	for _, name := range present {
		have[name] = struct{}{}
	}

	var missing []string
	for _, idx := range ReceiptIndexes() {
		name := *idx.Options.Name
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// ReceiptStore persists matched payments in MongoDB
type ReceiptStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// NewReceiptStore wraps the receipt collection of an open client
func NewReceiptStore(client *mongo.Client, cfg *config.MongoDBConfig) *ReceiptStore {
	return &ReceiptStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.ReceiptCollection),
		timeout:    5 * time.Second,
	}
}

// EnsureIndexes creates the receipt indexes if they are missing
func (s *ReceiptStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.collection.Indexes().CreateMany(ctx, ReceiptIndexes()); err != nil {
		return fmt.Errorf("create receipt indexes: %w", err)
	}
	return nil
}

// Record upserts the receipt for (tx hash, receiver, token). The first sighting
// fixes the immutable fields; later calls only raise the confirmation count
// and promote the status to confirmed, never demote it.
func (s *ReceiptStore) Record(ctx context.Context, r *models.Receipt) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{"tx_hash": r.TxHash, "receiver": r.Receiver, "token": r.Token}

	onInsert := bson.M{
		"expected_amount": r.ExpectedAmount,
		"observed_amount": r.ObservedAmount,
		"block_number":    r.BlockNumber,
		"first_seen_at":   r.FirstSeenAt,
	}
	if r.Description != "" {
		onInsert["description"] = r.Description
	}

	update := bson.M{
		"$setOnInsert": onInsert,
		"$max":         bson.M{"confirmations": r.Confirmations},
	}
	if r.Status == models.StatusConfirmed {
		update["$set"] = bson.M{"status": models.StatusConfirmed}
	} else {
		onInsert["status"] = r.Status
	}

	if _, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert receipt: %w", err)
	}

	if r.Status == models.StatusConfirmed && r.ConfirmedAt != nil {
		stamp := bson.M{"$set": bson.M{"confirmed_at": *r.ConfirmedAt}}
		pending := bson.M{"tx_hash": r.TxHash, "receiver": r.Receiver, "token": r.Token, "confirmed_at": bson.M{"$exists": false}}
		if _, err := s.collection.UpdateOne(ctx, pending, stamp); err != nil {
			return fmt.Errorf("stamp receipt confirmation: %w", err)
		}
	}

	return nil
}

// FindByTxHash returns every receipt recorded for a transaction
func (s *ReceiptStore) FindByTxHash(ctx context.Context, txHash string) ([]models.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.collection.Find(ctx, bson.M{"tx_hash": txHash},
		options.Find().SetSort(bson.D{{Key: "first_seen_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find receipts: %w", err)
	}
	defer cursor.Close(ctx)

	var receipts []models.Receipt
	if err := cursor.All(ctx, &receipts); err != nil {
		return nil, fmt.Errorf("decode receipts: %w", err)
	}
	if len(receipts) == 0 {
		return nil, ErrReceiptNotFound
	}
	return receipts, nil
}

// Check pings MongoDB and verifies the receipt collection. An unreachable
// server is unhealthy; missing indexes or an unreadable collection degrade it.
func (s *ReceiptStore) Check(ctx context.Context) *HealthCheck {
	const service = "mongodb"
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		return newHealthCheck(service, start, HealthStatusUnhealthy, fmt.Sprintf("ping failed: %v", err))
	}

	names, err := s.collection.Indexes().ListSpecifications(ctx)
	if err != nil {
		return newHealthCheck(service, start, HealthStatusDegraded, fmt.Sprintf("list indexes: %v", err))
	}
	present := make([]string, 0, len(names))
	for _, spec := range names {
		present = append(present, spec.Name)
	}
	if missing := missingIndexes(present); len(missing) > 0 {
		return newHealthCheck(service, start, HealthStatusDegraded, fmt.Sprintf("missing indexes: %v", missing))
	}

	count, err := s.collection.EstimatedDocumentCount(ctx)
	if err != nil {
		return newHealthCheck(service, start, HealthStatusDegraded, fmt.Sprintf("count receipts: %v", err))
	}

	return newHealthCheck(service, start, HealthStatusHealthy, fmt.Sprintf("%d receipts, all indexes present", count))
}

// Close closes the MongoDB connection
func (s *ReceiptStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.client.Disconnect(ctx)
}
