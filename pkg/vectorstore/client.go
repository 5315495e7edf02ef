// Package vectorstore is a JSON-RPC client for the vector store
// service: record creation from vectors or text, similarity search,
// metadata filtering, deletion, and service introspection
// (health/config/help).
package vectorstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maverikod/vvz-rpc-clients/internal/jsonrpc"
)

// Recorder receives one observation per RPC call. Implementations must
// be safe for concurrent use.
type Recorder interface {
	Record(method string, duration time.Duration, err error)
}

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      int
	BackoffMaxDelay time.Duration
	APIKey          string
	HTTPClient      *http.Client
	Logger          *zap.Logger
	Metrics         Recorder
}

type Client struct {
	caller  *jsonrpc.Caller
	timeout time.Duration
	logger  *zap.Logger
	metrics Recorder
}

func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, jsonrpc.NewValidationError("base URL is required")
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, jsonrpc.NewValidationError("invalid base URL: %s", config.BaseURL)
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	caller, err := jsonrpc.NewCaller(jsonrpc.Config{
		Endpoint:        strings.TrimRight(config.BaseURL, "/") + "/cmd",
		Timeout:         config.Timeout,
		MaxRetries:      config.MaxRetries,
		BackoffMaxDelay: config.BackoffMaxDelay,
		APIKey:          config.APIKey,
		HTTPClient:      config.HTTPClient,
		Logger:          config.Logger,
	})
	if err != nil {
		return nil, err
	}

	config.Logger.Debug("Vector store client ready", zap.String("endpoint", caller.Endpoint()))

	return &Client{
		caller:  caller,
		timeout: config.Timeout,
		logger:  config.Logger,
		metrics: config.Metrics,
	}, nil
}

// Connect creates a client and verifies the service is reachable with a
// health probe.
func Connect(ctx context.Context, config Config) (*Client, error) {
	client, err := New(config)
	if err != nil {
		return nil, err
	}

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) Close() {
	c.caller.Close()
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.caller.Call(ctx, method, params, result)
	if c.metrics != nil {
		c.metrics.Record(method, time.Since(start), err)
	}
	return err
}

type createParams struct {
	Vector    []float32 `json:"vector,omitempty"`
	Text      string    `json:"text,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	Model     string    `json:"model,omitempty"`
}

type createResult struct {
	RecordID string `json:"record_id"`
}

// CreateRecord stores a record from a prepared vector and returns the
// new record id.
func (c *Client) CreateRecord(ctx context.Context, vector []float32, opts CreateOptions) (string, error) {
	if len(vector) == 0 {
		return "", jsonrpc.NewValidationError("vector must not be empty")
	}

	params := createParams{
		Vector:    vector,
		Metadata:  opts.Metadata,
		SessionID: opts.SessionID,
		Timestamp: opts.Timestamp,
		Model:     opts.Model,
	}

	var result createResult
	if err := c.call(ctx, "create_record", params, &result); err != nil {
		return "", fmt.Errorf("create record failed: %w", err)
	}

	return result.RecordID, nil
}

// CreateTextRecord stores a record from text; the service vectorizes it.
func (c *Client) CreateTextRecord(ctx context.Context, text string, opts CreateOptions) (string, error) {
	if text == "" {
		return "", jsonrpc.NewValidationError("text must not be empty")
	}

	params := createParams{
		Text:      text,
		Metadata:  opts.Metadata,
		SessionID: opts.SessionID,
		Timestamp: opts.Timestamp,
		Model:     opts.Model,
	}

	var result createResult
	if err := c.call(ctx, "create_text_record", params, &result); err != nil {
		return "", fmt.Errorf("create text record failed: %w", err)
	}

	return result.RecordID, nil
}

type searchParams struct {
	Vector          []float32 `json:"vector,omitempty"`
	Text            string    `json:"text,omitempty"`
	Limit           int       `json:"limit"`
	IncludeMetadata bool      `json:"include_metadata"`
	IncludeVectors  bool      `json:"include_vectors"`
	FilterCriteria  Metadata  `json:"filter_criteria,omitempty"`
}

type recordsResult struct {
	Records []Record `json:"records"`
}

// SearchRecords performs similarity search with a query vector.
func (c *Client) SearchRecords(ctx context.Context, vector []float32, opts SearchOptions) ([]Record, error) {
	if len(vector) == 0 {
		return nil, jsonrpc.NewValidationError("query vector must not be empty")
	}

	params := searchParams{
		Vector:          vector,
		Limit:           limitOrDefault(opts.Limit),
		IncludeMetadata: opts.IncludeMetadata,
		IncludeVectors:  opts.IncludeVectors,
		FilterCriteria:  opts.FilterCriteria,
	}

	var result recordsResult
	if err := c.call(ctx, "search_records", params, &result); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return result.Records, nil
}

// SearchTextRecords performs similarity search with a query text.
func (c *Client) SearchTextRecords(ctx context.Context, text string, opts SearchOptions) ([]Record, error) {
	if text == "" {
		return nil, jsonrpc.NewValidationError("query text must not be empty")
	}

	params := searchParams{
		Text:            text,
		Limit:           limitOrDefault(opts.Limit),
		IncludeMetadata: opts.IncludeMetadata,
		IncludeVectors:  opts.IncludeVectors,
		FilterCriteria:  opts.FilterCriteria,
	}

	var result recordsResult
	if err := c.call(ctx, "search_text_records", params, &result); err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}

	return result.Records, nil
}

type filterParams struct {
	MetadataFilter  Metadata `json:"metadata_filter"`
	Limit           int      `json:"limit"`
	IncludeMetadata bool     `json:"include_metadata"`
}

// FilterRecords selects records by metadata predicate. An empty filter
// matches all records.
func (c *Client) FilterRecords(ctx context.Context, filter Metadata, opts FilterOptions) ([]Record, error) {
	if filter == nil {
		filter = Metadata{}
	}

	params := filterParams{
		MetadataFilter:  filter,
		Limit:           limitOrDefault(opts.Limit),
		IncludeMetadata: opts.IncludeMetadata,
	}

	var result recordsResult
	if err := c.call(ctx, "filter_records", params, &result); err != nil {
		return nil, fmt.Errorf("filter failed: %w", err)
	}

	return result.Records, nil
}

type recordIDParams struct {
	RecordID string `json:"record_id"`
}

// GetMetadata fetches the metadata of a single record.
func (c *Client) GetMetadata(ctx context.Context, recordID string) (Metadata, error) {
	if err := validateRecordID(recordID); err != nil {
		return nil, err
	}

	var result struct {
		Metadata Metadata `json:"metadata"`
	}
	if err := c.call(ctx, "get_metadata", recordIDParams{RecordID: recordID}, &result); err != nil {
		return nil, fmt.Errorf("get metadata failed: %w", err)
	}

	return result.Metadata, nil
}

// GetText fetches the text of a single record. Records created from raw
// vectors have no text and yield a ResourceNotFoundError.
func (c *Client) GetText(ctx context.Context, recordID string) (string, error) {
	if err := validateRecordID(recordID); err != nil {
		return "", err
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := c.call(ctx, "get_text", recordIDParams{RecordID: recordID}, &result); err != nil {
		return "", fmt.Errorf("get text failed: %w", err)
	}

	return result.Text, nil
}

type deleteParams struct {
	RecordID   string   `json:"record_id,omitempty"`
	RecordIDs  []string `json:"record_ids,omitempty"`
	Filter     Metadata `json:"filter,omitempty"`
	MaxRecords int      `json:"max_records,omitempty"`
	Confirm    bool     `json:"confirm,omitempty"`
}

// Delete removes records by id, id list, or metadata filter. Bulk
// deletion requires req.Confirm; the check happens before anything is
// sent to the service.
func (c *Client) Delete(ctx context.Context, req DeleteRequest) (*DeleteResult, error) {
	selectors := 0
	if req.RecordID != "" {
		selectors++
	}
	if len(req.RecordIDs) > 0 {
		selectors++
	}
	if req.Filter != nil {
		selectors++
	}
	if selectors != 1 {
		return nil, jsonrpc.NewValidationError("exactly one of record id, record ids, or filter must be set")
	}

	if req.RecordID != "" {
		if err := validateRecordID(req.RecordID); err != nil {
			return nil, err
		}
	}
	for _, id := range req.RecordIDs {
		if err := validateRecordID(id); err != nil {
			return nil, err
		}
	}

	bulk := len(req.RecordIDs) > 0 || req.Filter != nil
	if bulk && !req.Confirm {
		return nil, jsonrpc.NewValidationError("bulk deletion requires explicit confirmation")
	}

	params := deleteParams{
		RecordID:   req.RecordID,
		RecordIDs:  req.RecordIDs,
		Filter:     req.Filter,
		MaxRecords: req.MaxRecords,
		Confirm:    req.Confirm,
	}

	var result DeleteResult
	if err := c.call(ctx, "delete_records", params, &result); err != nil {
		return nil, fmt.Errorf("delete failed: %w", err)
	}

	return &result, nil
}

// Health fetches the service health report.
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	var result HealthInfo
	if err := c.call(ctx, "health", nil, &result); err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	return &result, nil
}

type configParams struct {
	Operation string `json:"operation"`
	Path      string `json:"path,omitempty"`
}

// ServerConfig reads service configuration. operation is "get"; path
// optionally narrows the result to a dotted config path.
func (c *Client) ServerConfig(ctx context.Context, operation, path string) (map[string]any, error) {
	if operation == "" {
		operation = "get"
	}

	var result map[string]any
	if err := c.call(ctx, "config", configParams{Operation: operation, Path: path}, &result); err != nil {
		return nil, fmt.Errorf("config access failed: %w", err)
	}

	return result, nil
}

type helpParams struct {
	Command string `json:"command,omitempty"`
}

// Help lists the commands the service understands. A non-empty command
// narrows the listing to that single command; an unknown command yields
// ResourceNotFoundError.
func (c *Client) Help(ctx context.Context, command string) (*HelpInfo, error) {
	var result HelpInfo
	if err := c.call(ctx, "help", helpParams{Command: command}, &result); err != nil {
		return nil, fmt.Errorf("help failed: %w", err)
	}
	return &result, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	return limit
}

func validateRecordID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return jsonrpc.NewValidationError("invalid record id: %s", id)
	}
	return nil
}
