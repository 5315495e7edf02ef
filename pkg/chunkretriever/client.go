// Package chunkretriever is a JSON-RPC client for the chunk retriever
// service: lookup of semantic chunks by their source identifier.
package chunkretriever

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maverikod/vvz-rpc-clients/internal/jsonrpc"
)

// Error types surfaced by the client; inspect with errors.As.
type (
	ValidationError = jsonrpc.ValidationError
	ConnectionError = jsonrpc.ConnectionError
	TimeoutError    = jsonrpc.TimeoutError
	RPCError        = jsonrpc.RPCError
)

type Config struct {
	URL        string
	Port       int
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	caller  *jsonrpc.Caller
	timeout time.Duration
	logger  *zap.Logger
}

func New(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, jsonrpc.NewValidationError("url is required")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return nil, jsonrpc.NewValidationError("invalid port: %d", config.Port)
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	endpoint := fmt.Sprintf("%s:%d/cmd", strings.TrimRight(config.URL, "/"), config.Port)

	caller, err := jsonrpc.NewCaller(jsonrpc.Config{
		Endpoint:   endpoint,
		Timeout:    config.Timeout,
		MaxRetries: config.MaxRetries,
		HTTPClient: config.HTTPClient,
		Logger:     config.Logger,
	})
	if err != nil {
		return nil, err
	}

	config.Logger.Debug("Chunk retriever client ready", zap.String("endpoint", caller.Endpoint()))

	return &Client{
		caller:  caller,
		timeout: config.Timeout,
		logger:  config.Logger,
	}, nil
}

func (c *Client) Close() {
	c.caller.Close()
}

type findChunksParams struct {
	SourceID string `json:"source_id"`
}

// FindChunksBySourceID fetches all chunks filed under sourceID, which
// must be a valid RFC 4122 UUID string. Invalid input is rejected
// locally; no request is sent.
func (c *Client) FindChunksBySourceID(ctx context.Context, sourceID string) (*FindChunksResponse, error) {
	parsed, err := uuid.Parse(sourceID)
	if err != nil {
		return nil, jsonrpc.NewValidationError("source_id is not a valid UUID: %s", sourceID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result FindChunksResponse
	params := findChunksParams{SourceID: parsed.String()}
	if err := c.caller.Call(ctx, "find_chunks_by_source_id", params, &result); err != nil {
		return nil, fmt.Errorf("find chunks failed: %w", err)
	}

	c.logger.Debug("Fetched chunks",
		zap.String("source_id", parsed.String()),
		zap.Int("count", result.Count))

	return &result, nil
}

// FindChunksBySourceUUID is FindChunksBySourceID for an already-parsed
// UUID value.
func (c *Client) FindChunksBySourceUUID(ctx context.Context, sourceID uuid.UUID) (*FindChunksResponse, error) {
	return c.FindChunksBySourceID(ctx, sourceID.String())
}

// FindChunksBySourceID is a one-shot convenience: it builds a client
// for url/port, issues a single lookup, and closes the connection.
func FindChunksBySourceID(ctx context.Context, url string, port int, sourceID string) (*FindChunksResponse, error) {
	client, err := New(Config{URL: url, Port: port})
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return client.FindChunksBySourceID(ctx, sourceID)
}
