package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/GoSTEAN/velo-sub001/internal/chain"
	"github.com/GoSTEAN/velo-sub001/internal/config"
	"github.com/GoSTEAN/velo-sub001/internal/matcher"
	"github.com/GoSTEAN/velo-sub001/internal/models"
	"github.com/GoSTEAN/velo-sub001/pkg/cache"
	"github.com/GoSTEAN/velo-sub001/pkg/logger"
	"github.com/GoSTEAN/velo-sub001/pkg/metrics"

	"go.uber.org/zap"
)

// errFault marks a panic raised while fetching events. The fetch runs inside a
// shared flight whose panics would otherwise escape the request goroutine.
var errFault = errors.New("verification fault")

// receiptTimeout bounds one background receipt write
const receiptTimeout = 10 * time.Second

// VerificationService scans a bounded block window for a transfer that
// satisfies a payment intent and maps it onto pending, success or confirmed.
type VerificationService struct {
	chain     chain.Client
	events    *cache.Cache[[]chain.Event]
	receipts  ReceiptRecorder
	metrics   *metrics.MetricsCollector
	config    config.VerificationConfig
	eventKey  string
	tolerance *big.Rat
	now       func() time.Time

	// recording tracks receipt writes still in flight
	recording sync.WaitGroup
}

// ServiceOption customizes a VerificationService
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	receipts ReceiptRecorder
	metrics  *metrics.MetricsCollector
	now      func() time.Time
}

// WithReceipts records matched payments in the given store
func WithReceipts(r ReceiptRecorder) ServiceOption {
	return func(o *serviceOptions) { o.receipts = r }
}

// WithMetrics shares a metrics collector with the service
func WithMetrics(m *metrics.MetricsCollector) ServiceOption {
	return func(o *serviceOptions) { o.metrics = m }
}

// WithClock replaces time.Now for the service and its event cache
func WithClock(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) { o.now = now }
}

// NewVerificationService creates a VerificationService reading through client
func NewVerificationService(client chain.Client, cfg *config.Config, opts ...ServiceOption) (*VerificationService, error) {
	o := serviceOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewMetricsCollector()
	}

	tolerance, err := cfg.Verification.Tolerance()
	if err != nil {
		return nil, err
	}

	// A scan may try every endpoint, each bounded by the chain timeout.
	endpoints := 1
	if cfg.Chain.FallbackEndpoint != "" {
		endpoints = 2
	}
	fetchTimeout := time.Duration(endpoints)*cfg.Chain.Timeout + time.Second

	events, err := cache.New[[]chain.Event](
		cfg.Verification.CacheTTL,
		cfg.Verification.CacheMaxEntries,
		cache.WithClock(o.now),
		cache.WithSweepInterval(cfg.Verification.CacheCleanupInterval),
		cache.WithFetchTimeout(fetchTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create event cache: %w", err)
	}

	return &VerificationService{
		chain:     client,
		events:    events,
		receipts:  o.receipts,
		metrics:   o.metrics,
		config:    cfg.Verification,
		eventKey:  cfg.Chain.TransferEventKey,
		tolerance: tolerance,
		now:       o.now,
	}, nil
}

// Verify checks one payment intent. Chain fetch failures and internal faults
// produce a result with status invalid; only a chain that cannot be reached at
// all is returned as an error (wrapping chain.ErrConnectivity).
func (vs *VerificationService) Verify(ctx context.Context, intent *PaymentIntent) (result *models.VerificationResult, err error) {
	log := logger.GetLogger().WithContext(ctx).Named("verification_service").WithFields(map[string]interface{}{
		"receiver": intent.Receiver,
		"token":    intent.Token,
		"amount":   intent.Amount.Dec(),
	})

	defer func() {
		if r := recover(); r != nil {
			log.Error("Verification panicked", zap.Any("panic", r), zap.Stack("stack"))
			result = vs.invalid(0, 0, "Internal verification error")
			err = nil
		}

		if err == nil {
			vs.metrics.RecordVerification(string(result.Status))
		}
	}()

	latest, err := vs.latestBlock(ctx)
	if err != nil {
		if errors.Is(err, chain.ErrConnectivity) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn("Failed to fetch latest block", zap.Error(err))
		return vs.invalid(0, 0, fmt.Sprintf("Failed to fetch latest block: %v", err)), nil
	}

	fromBlock := uint64(0)
	if latest > vs.config.ScanBlockRange {
		fromBlock = latest - vs.config.ScanBlockRange
	}

	key := cache.Key(intent.Token, intent.Receiver, intent.Amount.Dec(), fromBlock, latest)
	events, outcome, err := vs.events.GetOrFetch(ctx, key, func(ctx context.Context) ([]chain.Event, error) {
		return vs.fetchEvents(ctx, intent.Token, fromBlock, latest)
	})
	if err != nil {
		if errors.Is(err, chain.ErrConnectivity) {
			return nil, err
		}
		if errors.Is(err, errFault) {
			log.Error("Event fetch panicked", zap.Error(err))
			return vs.invalid(fromBlock, latest, "Internal verification error"), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn("Failed to fetch transfer events", zap.Error(err))
		return vs.invalid(fromBlock, latest, fmt.Sprintf("Failed to fetch events: %v", err)), nil
	}

	switch outcome {
	case cache.Hit:
		vs.metrics.RecordCacheHit()
	case cache.Shared:
		vs.metrics.RecordSharedFetch()
	default:
		vs.metrics.RecordCacheMiss()
	}

	match := matcher.Match(events, intent.Amount, intent.Receiver, vs.tolerance)

	result = &models.VerificationResult{
		RequiredConfirmations: vs.config.RequiredConfirmations,
		Timestamp:             vs.now().UTC(),
		EventsScanned:         match.Scanned,
		ReceiverTransfers:     match.ToReceiver,
		FromBlock:             fromBlock,
		ToBlock:               latest,
		Cached:                outcome == cache.Hit,
	}

	if match.Match == nil {
		result.Status = models.StatusPending
		result.Details = fmt.Sprintf("Scanned %d events; %s received %d transfers",
			match.Scanned, intent.RequestedReceiver, match.ToReceiver)
		if c := match.Closest; c != nil {
			result.Closest = &models.ClosestTransfer{
				TransactionHash:    c.Transfer.TransactionHash,
				BlockNumber:        c.Transfer.BlockNumber,
				Amount:             c.Transfer.Amount.Dec(),
				RelativeDifference: c.RelativeDifference.FloatString(6),
			}
		}

		log.Info("No matching transfer in scan window",
			zap.Uint64("from_block", fromBlock),
			zap.Uint64("to_block", latest),
			zap.Int("events_scanned", match.Scanned),
			zap.Int("receiver_transfers", match.ToReceiver),
			zap.Int("malformed_events", match.Malformed),
			zap.Bool("cached", result.Cached),
		)
		return result, nil
	}

	transfer := match.Match
	confirmations := Confirmations(latest, transfer.BlockNumber)
	result.Status = ConfirmationStatus(confirmations, vs.config.RequiredConfirmations)
	result.TransactionHash = transfer.TransactionHash
	result.BlockNumber = &transfer.BlockNumber
	result.Confirmations = &confirmations
	result.Amount = transfer.Amount.Dec()

	if result.Status == models.StatusConfirmed {
		result.Details = fmt.Sprintf("Payment confirmed with %d confirmations", confirmations)
	} else {
		result.Details = fmt.Sprintf("Payment found with %d of %d required confirmations",
			confirmations, vs.config.RequiredConfirmations)
	}

	log.Info("Matching transfer found",
		zap.String("tx_hash", transfer.TransactionHash),
		zap.Uint64("block_number", transfer.BlockNumber),
		zap.Uint64("confirmations", confirmations),
		zap.String("status", string(result.Status)),
		zap.Bool("cached", result.Cached),
	)

	vs.recordReceipt(ctx, log, intent, result)

	return result, nil
}

// Confirmations is the number of blocks built on top of the block holding the
// transfer. A transfer ahead of the observed head has none.
func Confirmations(currentBlock, transferBlock uint64) uint64 {
	if currentBlock < transferBlock {
		return 0
	}
	return currentBlock - transferBlock
}

// ConfirmationStatus maps a matched transfer's confirmations onto success or confirmed
func ConfirmationStatus(confirmations, required uint64) models.VerificationStatus {
	if confirmations >= required {
		return models.StatusConfirmed
	}
	return models.StatusSuccess
}

func (vs *VerificationService) latestBlock(ctx context.Context) (uint64, error) {
	start := time.Now()
	latest, err := vs.chain.LatestBlock(ctx)
	vs.metrics.RecordRPCCall(time.Since(start), err == nil)
	return latest, err
}

func (vs *VerificationService) fetchEvents(ctx context.Context, token string, fromBlock, toBlock uint64) (events []chain.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			events, err = nil, fmt.Errorf("%w: %v", errFault, r)
		}
	}()

	start := time.Now()
	page, err := vs.chain.GetEvents(ctx, chain.EventFilter{
		ContractAddress: token,
		Keys:            [][]string{{vs.eventKey}},
		FromBlock:       fromBlock,
		ToBlock:         toBlock,
		PageSize:        vs.config.EventPageSize,
	})
	vs.metrics.RecordRPCCall(time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	return page.Events, nil
}

func (vs *VerificationService) invalid(fromBlock, toBlock uint64, details string) *models.VerificationResult {
	return &models.VerificationResult{
		Status:                models.StatusInvalid,
		RequiredConfirmations: vs.config.RequiredConfirmations,
		Timestamp:             vs.now().UTC(),
		Details:               details,
		FromBlock:             fromBlock,
		ToBlock:               toBlock,
	}
}

// recordReceipt stores the match in the background so a slow store never delays
// the response. Failures are logged and do not affect the result.
func (vs *VerificationService) recordReceipt(ctx context.Context, log *logger.Logger, intent *PaymentIntent, result *models.VerificationResult) {
	if vs.receipts == nil {
		return
	}

	now := result.Timestamp
	receipt := &models.Receipt{
		TxHash:         chain.NormalizeHash(result.TransactionHash),
		Receiver:       intent.Receiver,
		Token:          intent.Token,
		ExpectedAmount: intent.Amount.Dec(),
		ObservedAmount: result.Amount,
		BlockNumber:    *result.BlockNumber,
		Confirmations:  *result.Confirmations,
		Status:         result.Status,
		Description:    intent.Description,
		FirstSeenAt:    now,
	}
	if result.Status == models.StatusConfirmed {
		receipt.ConfirmedAt = &now
	}

	vs.recording.Add(1)
	go func() {
		defer vs.recording.Done()

		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), receiptTimeout)
		defer cancel()

		if err := vs.receipts.Record(recordCtx, receipt); err != nil {
			log.Error("Failed to record payment receipt", zap.Error(err), zap.String("tx_hash", receipt.TxHash))
		}
	}()
}

// GetCacheStats returns cache statistics for monitoring
func (vs *VerificationService) GetCacheStats() map[string]interface{} {
	return map[string]interface{}{
		"cache_size":        vs.events.Size(),
		"cache_max_entries": vs.config.CacheMaxEntries,
		"cache_ttl_ms":      vs.config.CacheTTL.Milliseconds(),
	}
}

// GetMetrics returns performance metrics
func (vs *VerificationService) GetMetrics() *metrics.Metrics {
	return vs.metrics.GetMetrics()
}

// Close stops the cache sweep and waits for pending receipt writes
func (vs *VerificationService) Close() {
	vs.events.Stop()
	vs.recording.Wait()
}
