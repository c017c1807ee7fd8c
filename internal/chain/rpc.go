package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/GoSTEAN/velo-sub001/internal/config"
	"github.com/GoSTEAN/velo-sub001/pkg/logger"
	"github.com/GoSTEAN/velo-sub001/pkg/metrics"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	methodBlockNumber = "starknet_blockNumber"
	methodGetEvents   = "starknet_getEvents"

	opLatestBlock = "latest_block"
	opGetEvents   = "get_events"
)

type endpoint struct {
	label  string
	client *rpc.Client
}

// RPCClient reads chain state over JSON-RPC. It is built with an explicit primary
// endpoint and an optional fallback; the fallback is only consulted when the
// primary is unreachable, never when it answers with an error.
type RPCClient struct {
	endpoints []endpoint
	log       *logger.Logger
}

// NewRPCClient dials the configured endpoints. Dialing over HTTP does no I/O, so
// an unreachable node is only detected on the first call.
func NewRPCClient(cfg *config.ChainConfig) (*RPCClient, error) {
	primary, err := dialEndpoint("primary", cfg.Endpoint, cfg)
	if err != nil {
		return nil, err
	}

	c := &RPCClient{
		endpoints: []endpoint{primary},
		log:       logger.GetLogger().Named("chain_client"),
	}

	if cfg.FallbackEndpoint != "" {
		fallback, err := dialEndpoint("fallback", cfg.FallbackEndpoint, cfg)
		if err != nil {
			return nil, err
		}
		c.endpoints = append(c.endpoints, fallback)
	}

	return c, nil
}

func dialEndpoint(label, rawURL string, cfg *config.ChainConfig) (endpoint, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	client, err := rpc.DialHTTPWithClient(rawURL, httpClient)
	if err != nil {
		return endpoint{}, fmt.Errorf("dial %s chain endpoint %s: %w", label, EndpointHost(rawURL), redact(err))
	}
	if cfg.APIKey != "" && cfg.APIKeyHeader != "" {
		client.SetHeader(cfg.APIKeyHeader, cfg.APIKey)
	}

	return endpoint{label: label, client: client}, nil
}

// LatestBlock returns the number of the chain head
func (c *RPCClient) LatestBlock(ctx context.Context) (uint64, error) {
	var number uint64
	if err := c.call(ctx, opLatestBlock, &number, methodBlockNumber); err != nil {
		return 0, err
	}
	return number, nil
}

type blockID struct {
	BlockNumber uint64 `json:"block_number"`
}

type eventsRequest struct {
	FromBlock blockID    `json:"from_block"`
	ToBlock   blockID    `json:"to_block"`
	Address   string     `json:"address,omitempty"`
	Keys      [][]string `json:"keys,omitempty"`
	ChunkSize int        `json:"chunk_size"`
}

type emittedEvent struct {
	FromAddress     string   `json:"from_address"`
	Keys            []string `json:"keys"`
	Data            []string `json:"data"`
	BlockHash       string   `json:"block_hash"`
	BlockNumber     *uint64  `json:"block_number"`
	TransactionHash string   `json:"transaction_hash"`
}

type eventsResponse struct {
	Events            []emittedEvent `json:"events"`
	ContinuationToken string         `json:"continuation_token"`
}

// GetEvents fetches a single page of events matching the filter
func (c *RPCClient) GetEvents(ctx context.Context, filter EventFilter) (*EventPage, error) {
	req := eventsRequest{
		FromBlock: blockID{BlockNumber: filter.FromBlock},
		ToBlock:   blockID{BlockNumber: filter.ToBlock},
		Address:   filter.ContractAddress,
		Keys:      filter.Keys,
		ChunkSize: filter.PageSize,
	}

	var resp eventsResponse
	if err := c.call(ctx, opGetEvents, &resp, methodGetEvents, req); err != nil {
		return nil, err
	}

	page := &EventPage{
		Events:    make([]Event, 0, len(resp.Events)),
		Truncated: resp.ContinuationToken != "",
	}
	for _, ev := range resp.Events {
		if ev.BlockNumber == nil {
			page.Dropped++
			continue
		}
		page.Events = append(page.Events, Event{
			ContractAddress: ev.FromAddress,
			Keys:            ev.Keys,
			Data:            ev.Data,
			BlockHash:       ev.BlockHash,
			BlockNumber:     *ev.BlockNumber,
			TransactionHash: ev.TransactionHash,
		})
	}

	if page.Truncated {
		c.log.Warn("Event page truncated, remaining events in range are not scanned",
			zap.String("contract", filter.ContractAddress),
			zap.Uint64("from_block", filter.FromBlock),
			zap.Uint64("to_block", filter.ToBlock),
			zap.Int("page_size", filter.PageSize),
		)
	}

	return page, nil
}

// Healthy checks that at least one endpoint answers
func (c *RPCClient) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.LatestBlock(ctx); err != nil {
		return fmt.Errorf("chain health check failed: %w", err)
	}
	return nil
}

// Close releases the underlying connections
func (c *RPCClient) Close() {
	for _, ep := range c.endpoints {
		ep.client.Close()
	}
}

func (c *RPCClient) call(ctx context.Context, op string, result interface{}, method string, args ...interface{}) error {
	var lastErr error

	for i, ep := range c.endpoints {
		start := time.Now()
		err := ep.client.CallContext(ctx, result, method, args...)
		metrics.ObserveChainCall(op, ep.label, time.Since(start), err)
		if err == nil {
			return nil
		}
		err = redact(err)

		// The caller gave up; the node was not shown to be unreachable.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &Error{Op: op, Endpoint: ep.label, Kind: ctxErr, Err: err}
		}

		kind := classify(err)
		lastErr = &Error{Op: op, Endpoint: ep.label, Kind: kind, Err: err}

		if kind != ErrConnectivity {
			return lastErr
		}
		if i+1 < len(c.endpoints) {
			c.log.Warn("Chain endpoint unreachable, trying fallback",
				zap.String("op", op),
				zap.String("endpoint", ep.label),
				zap.Error(err),
			)
		}
	}

	return lastErr
}

// classify separates answers from the node (fetch errors) from failures to reach it.
func classify(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) || errors.Is(err, rpc.ErrNoResult) {
		return ErrFetch
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ErrFetch
	}

	return ErrConnectivity
}

// EndpointHost reduces an endpoint URL to scheme and host. Providers put API
// keys in the path or query, so only this form is logged or returned.
func EndpointHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "<invalid endpoint>"
	}
	return u.Scheme + "://" + u.Host
}

// redact strips the endpoint path and query from transport errors, which
// carry the full request URL.
func redact(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	return &url.Error{Op: urlErr.Op, URL: EndpointHost(urlErr.URL), Err: urlErr.Err}
}
