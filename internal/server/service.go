package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maverikod/vvz-rpc-clients/internal/jsonrpc"
	"github.com/maverikod/vvz-rpc-clients/internal/metrics"
	"github.com/maverikod/vvz-rpc-clients/internal/storage"
)

const serviceVersion = "1.0.0"

// serviceError carries a JSON-RPC error code alongside a message.
type serviceError struct {
	Code    int
	Message string
}

func (e *serviceError) Error() string { return e.Message }

func invalidParams(format string, args ...any) error {
	return &serviceError{Code: jsonrpc.CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func notFound(resource, id string) error {
	return &serviceError{Code: jsonrpc.CodeNotFound, Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

func notAuthenticated(message string) error {
	return &serviceError{Code: jsonrpc.CodeNotAuthenticated, Message: message}
}

type ServiceOptions struct {
	ModelName   string
	Dimension   int
	ConfigToken string
	ConfigView  map[string]any
}

// Service implements the vector store and chunk retriever operations
// behind the JSON-RPC dispatch in Handler.
type Service struct {
	store       storage.Store
	embedder    Embedder
	collector   *metrics.Collector
	logger      *zap.Logger
	modelName   string
	configToken string
	configView  map[string]any
	startTime   time.Time
}

func NewService(store storage.Store, collector *metrics.Collector, logger *zap.Logger, opts ServiceOptions) *Service {
	if opts.ModelName == "" {
		opts.ModelName = "hash-embedder-384"
	}
	if opts.ConfigView == nil {
		opts.ConfigView = map[string]any{}
	}
	return &Service{
		store:       store,
		embedder:    NewHashEmbedder(opts.Dimension),
		collector:   collector,
		logger:      logger,
		modelName:   opts.ModelName,
		configToken: opts.ConfigToken,
		configView:  opts.ConfigView,
		startTime:   time.Now(),
	}
}

type createParams struct {
	Vector    []float32      `json:"vector"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
	SessionID string         `json:"session_id"`
	Timestamp string         `json:"timestamp"`
	Model     string         `json:"model"`
}

type createResult struct {
	RecordID string `json:"record_id"`
}

func (s *Service) CreateRecord(ctx context.Context, params createParams) (*createResult, error) {
	start := time.Now()
	defer func() {
		s.collector.RecordLatency("create_record", time.Since(start))
	}()

	if len(params.Vector) == 0 {
		return nil, invalidParams("vector is required")
	}
	if params.Metadata == nil {
		return nil, invalidParams("metadata is required for vector records")
	}
	if _, hasBody := params.Metadata["body"]; !hasBody {
		return nil, invalidParams("metadata must include a body field")
	}

	record := s.newRecord(params)
	record.Vector = params.Vector

	if err := s.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("store record: %w", err)
	}

	s.collector.IncrementCounter("records_created", 1)
	s.logger.Debug("Created vector record", zap.String("id", record.ID))

	return &createResult{RecordID: record.ID}, nil
}

func (s *Service) CreateTextRecord(ctx context.Context, params createParams) (*createResult, error) {
	start := time.Now()
	defer func() {
		s.collector.RecordLatency("create_text_record", time.Since(start))
	}()

	if params.Text == "" {
		return nil, invalidParams("text is required")
	}

	record := s.newRecord(params)
	record.Text = params.Text
	record.Vector = s.embedder.Embed(params.Text)

	if err := s.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("store record: %w", err)
	}

	s.collector.IncrementCounter("records_created", 1)
	s.logger.Debug("Created text record", zap.String("id", record.ID))

	return &createResult{RecordID: record.ID}, nil
}

func (s *Service) newRecord(params createParams) *storage.StoredRecord {
	timestamp := time.Now().UnixNano()
	if params.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, params.Timestamp); err == nil {
			timestamp = parsed.UnixNano()
		}
	}

	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &storage.StoredRecord{
		ID:        uuid.NewString(),
		Metadata:  metadata,
		SessionID: params.SessionID,
		Timestamp: timestamp,
	}
}

type searchParams struct {
	Vector          []float32      `json:"vector"`
	Text            string         `json:"text"`
	Limit           int            `json:"limit"`
	IncludeMetadata bool           `json:"include_metadata"`
	IncludeVectors  bool           `json:"include_vectors"`
	FilterCriteria  map[string]any `json:"filter_criteria"`
}

type recordView struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Vector   []float32      `json:"vector,omitempty"`
	Text     string         `json:"text,omitempty"`
}

type recordsResult struct {
	Records []recordView `json:"records"`
}

func (s *Service) SearchRecords(ctx context.Context, params searchParams) (*recordsResult, error) {
	start := time.Now()
	defer func() {
		s.collector.RecordLatency("search_records", time.Since(start))
	}()

	if len(params.Vector) == 0 {
		return nil, invalidParams("vector is required")
	}

	return s.search(ctx, params.Vector, params)
}

func (s *Service) SearchTextRecords(ctx context.Context, params searchParams) (*recordsResult, error) {
	start := time.Now()
	defer func() {
		s.collector.RecordLatency("search_text_records", time.Since(start))
	}()

	if params.Text == "" {
		return nil, invalidParams("text is required")
	}

	return s.search(ctx, s.embedder.Embed(params.Text), params)
}

func (s *Service) search(ctx context.Context, query []float32, params searchParams) (*recordsResult, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}

	results := make([]*storage.SearchResult, 0, len(records))
	for _, record := range records {
		if len(record.Vector) == 0 {
			continue
		}
		if params.FilterCriteria != nil && !storage.MatchesFilter(filterableMetadata(record), params.FilterCriteria) {
			continue
		}
		score := storage.CosineSimilarity(query, record.Vector)
		results = append(results, &storage.SearchResult{
			ID:     record.ID,
			Score:  score,
			Record: record,
		})
	}

	results = storage.TopKResults(results, limit)
	s.collector.IncrementCounter("searches", 1)

	views := make([]recordView, len(results))
	for i, result := range results {
		views[i] = recordView{
			ID:    result.ID,
			Score: float64(result.Score),
		}
		if params.IncludeMetadata {
			views[i].Metadata = result.Record.Metadata
		}
		if params.IncludeVectors {
			views[i].Vector = result.Record.Vector
		}
	}

	return &recordsResult{Records: views}, nil
}

type filterParams struct {
	MetadataFilter  map[string]any `json:"metadata_filter"`
	Limit           int            `json:"limit"`
	IncludeMetadata bool           `json:"include_metadata"`
}

func (s *Service) FilterRecords(ctx context.Context, params filterParams) (*recordsResult, error) {
	start := time.Now()
	defer func() {
		s.collector.RecordLatency("filter_records", time.Since(start))
	}()

	matched, err := s.filterMatches(ctx, params.MetadataFilter)
	if err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	s.collector.IncrementCounter("searches", 1)

	views := make([]recordView, len(matched))
	for i, record := range matched {
		views[i] = recordView{ID: record.ID}
		if params.IncludeMetadata {
			views[i].Metadata = record.Metadata
		}
	}

	return &recordsResult{Records: views}, nil
}

// filterableMetadata is the view filters are evaluated against. The
// session id lives on its own record field but must still answer to a
// session_id filter key.
func filterableMetadata(record *storage.StoredRecord) map[string]any {
	if record.SessionID == "" {
		return record.Metadata
	}
	if _, ok := record.Metadata["session_id"]; ok {
		return record.Metadata
	}
	merged := make(map[string]any, len(record.Metadata)+1)
	for k, v := range record.Metadata {
		merged[k] = v
	}
	merged["session_id"] = record.SessionID
	return merged
}

// filterMatches scans the store concurrently in fixed-size chunks and
// returns matches ordered by insertion timestamp.
func (s *Service) filterMatches(ctx context.Context, filter map[string]any) ([]*storage.StoredRecord, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	if filter == nil {
		filter = map[string]any{}
	}

	const chunkSize = 256
	parts := make([][]*storage.StoredRecord, (len(records)+chunkSize-1)/chunkSize)

	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < len(records); i += chunkSize {
		i := i
		end := i + chunkSize
		if end > len(records) {
			end = len(records)
		}
		g.Go(func() error {
			var part []*storage.StoredRecord
			for _, record := range records[i:end] {
				if storage.MatchesFilter(filterableMetadata(record), filter) {
					part = append(part, record)
				}
			}
			parts[i/chunkSize] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var matched []*storage.StoredRecord
	for _, part := range parts {
		matched = append(matched, part...)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp < matched[j].Timestamp
	})

	return matched, nil
}

type recordIDParams struct {
	RecordID string `json:"record_id"`
}

type metadataResult struct {
	Metadata map[string]any `json:"metadata"`
}

func (s *Service) GetMetadata(ctx context.Context, params recordIDParams) (*metadataResult, error) {
	record, err := s.getRecord(ctx, params.RecordID)
	if err != nil {
		return nil, err
	}
	return &metadataResult{Metadata: record.Metadata}, nil
}

type textResult struct {
	Text string `json:"text"`
}

func (s *Service) GetText(ctx context.Context, params recordIDParams) (*textResult, error) {
	record, err := s.getRecord(ctx, params.RecordID)
	if err != nil {
		return nil, err
	}
	if record.Text == "" {
		return nil, notFound("text for record", params.RecordID)
	}
	return &textResult{Text: record.Text}, nil
}

func (s *Service) getRecord(ctx context.Context, id string) (*storage.StoredRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalidParams("invalid record id: %s", id)
	}
	record, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, notFound("record", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

type deleteParams struct {
	RecordID   string         `json:"record_id"`
	RecordIDs  []string       `json:"record_ids"`
	Filter     map[string]any `json:"filter"`
	MaxRecords int            `json:"max_records"`
	Confirm    bool           `json:"confirm"`
}

type deleteResult struct {
	DeletedCount int `json:"deleted_count"`
}

func (s *Service) DeleteRecords(ctx context.Context, params deleteParams) (*deleteResult, error) {
	start := time.Now()
	defer func() {
		s.collector.RecordLatency("delete_records", time.Since(start))
	}()

	switch {
	case params.RecordID != "":
		return s.deleteOne(ctx, params.RecordID)
	case len(params.RecordIDs) > 0:
		if !params.Confirm {
			return nil, invalidParams("bulk deletion requires confirm=true")
		}
		return s.deleteMany(ctx, params.RecordIDs)
	case params.Filter != nil:
		if !params.Confirm {
			return nil, invalidParams("bulk deletion requires confirm=true")
		}
		return s.deleteByFilter(ctx, params.Filter, params.MaxRecords)
	default:
		return nil, invalidParams("one of record_id, record_ids, or filter is required")
	}
}

func (s *Service) deleteOne(ctx context.Context, id string) (*deleteResult, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalidParams("invalid record id: %s", id)
	}

	err := s.store.Delete(ctx, id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, notFound("record", id)
	}
	if err != nil {
		return nil, fmt.Errorf("delete record: %w", err)
	}

	s.collector.IncrementCounter("records_deleted", 1)
	return &deleteResult{DeletedCount: 1}, nil
}

func (s *Service) deleteMany(ctx context.Context, ids []string) (*deleteResult, error) {
	deleted := 0
	for _, id := range ids {
		err := s.store.Delete(ctx, id)
		if errors.Is(err, storage.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("delete record %s: %w", id, err)
		}
		deleted++
	}

	s.collector.IncrementCounter("records_deleted", float64(deleted))
	return &deleteResult{DeletedCount: deleted}, nil
}

func (s *Service) deleteByFilter(ctx context.Context, filter map[string]any, maxRecords int) (*deleteResult, error) {
	matched, err := s.filterMatches(ctx, filter)
	if err != nil {
		return nil, err
	}

	if maxRecords > 0 && len(matched) > maxRecords {
		matched = matched[:maxRecords]
	}

	deleted := 0
	for _, record := range matched {
		if err := s.store.Delete(ctx, record.ID); err != nil {
			if errors.Is(err, storage.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("delete record %s: %w", record.ID, err)
		}
		deleted++
	}

	s.collector.IncrementCounter("records_deleted", float64(deleted))
	return &deleteResult{DeletedCount: deleted}, nil
}

type healthResult struct {
	Status        string  `json:"status"`
	Model         string  `json:"model"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	RecordCount   int64   `json:"record_count"`
}

func (s *Service) Health(ctx context.Context) (*healthResult, error) {
	count, err := s.store.Count(ctx)
	status := "ok"
	if err != nil {
		s.logger.Warn("Store count failed during health check", zap.Error(err))
		status = "degraded"
		count = -1
	}

	s.collector.SetRecordCount(count)

	return &healthResult{
		Status:        status,
		Model:         s.modelName,
		Version:       serviceVersion,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		RecordCount:   count,
	}, nil
}

type configOpParams struct {
	Operation string `json:"operation"`
	Path      string `json:"path"`
}

func (s *Service) Config(_ context.Context, params configOpParams, token string) (map[string]any, error) {
	if s.configToken != "" && token != s.configToken {
		return nil, notAuthenticated("config access requires a valid API key")
	}

	if params.Operation != "" && params.Operation != "get" {
		return nil, invalidParams("unsupported config operation: %s", params.Operation)
	}

	if params.Path == "" {
		return s.configView, nil
	}

	section, ok := s.configView[params.Path]
	if !ok {
		return nil, notFound("config path", params.Path)
	}
	asMap, ok := section.(map[string]any)
	if !ok {
		return map[string]any{params.Path: section}, nil
	}
	return asMap, nil
}

type commandHelp struct {
	Summary string   `json:"summary"`
	Params  []string `json:"params,omitempty"`
}

type helpParams struct {
	Command string `json:"command"`
}

type helpResult struct {
	Commands map[string]commandHelp `json:"commands"`
}

func (s *Service) Help(_ context.Context, params helpParams) (*helpResult, error) {
	commands := map[string]commandHelp{
		"health":                   {Summary: "service status, model, version"},
		"help":                     {Summary: "list available commands"},
		"config":                   {Summary: "read service configuration", Params: []string{"operation", "path"}},
		"create_record":            {Summary: "store a record from a vector", Params: []string{"vector", "metadata", "session_id", "timestamp", "model"}},
		"create_text_record":       {Summary: "store a record from text", Params: []string{"text", "metadata", "session_id", "timestamp", "model"}},
		"search_records":           {Summary: "similarity search by vector", Params: []string{"vector", "limit", "include_metadata", "include_vectors", "filter_criteria"}},
		"search_text_records":      {Summary: "similarity search by text", Params: []string{"text", "limit", "include_metadata", "include_vectors", "filter_criteria"}},
		"filter_records":           {Summary: "select records by metadata filter", Params: []string{"metadata_filter", "limit", "include_metadata"}},
		"get_metadata":             {Summary: "fetch record metadata", Params: []string{"record_id"}},
		"get_text":                 {Summary: "fetch record text", Params: []string{"record_id"}},
		"delete_records":           {Summary: "delete by id, id list, or filter", Params: []string{"record_id", "record_ids", "filter", "max_records", "confirm"}},
		"find_chunks_by_source_id": {Summary: "fetch semantic chunks by source id", Params: []string{"source_id"}},
	}

	if params.Command == "" {
		return &helpResult{Commands: commands}, nil
	}

	help, ok := commands[params.Command]
	if !ok {
		return nil, notFound("command", params.Command)
	}
	return &helpResult{Commands: map[string]commandHelp{params.Command: help}}, nil
}

type findChunksParams struct {
	SourceID string `json:"source_id"`
}

type semanticChunk struct {
	UUID      string `json:"uuid"`
	SourceID  string `json:"source_id"`
	Ordinal   int    `json:"ordinal"`
	Type      string `json:"type,omitempty"`
	Language  string `json:"language,omitempty"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at,omitempty"`
}

type findChunksResult struct {
	Chunks []semanticChunk `json:"chunks"`
	Count  int             `json:"count"`
}

// FindChunksBySourceID serves the chunk retriever contract: every text
// record whose metadata carries a matching source_id key is a chunk.
func (s *Service) FindChunksBySourceID(ctx context.Context, params findChunksParams) (*findChunksResult, error) {
	start := time.Now()
	defer func() {
		s.collector.RecordLatency("find_chunks_by_source_id", time.Since(start))
	}()

	if _, err := uuid.Parse(params.SourceID); err != nil {
		return nil, invalidParams("source_id is not a valid UUID: %s", params.SourceID)
	}

	matched, err := s.filterMatches(ctx, map[string]any{"source_id": params.SourceID})
	if err != nil {
		return nil, err
	}

	chunks := make([]semanticChunk, 0, len(matched))
	for _, record := range matched {
		if record.Text == "" {
			continue
		}
		// Fallback ordinal is the chunk's position among emitted
		// chunks, not its position in the raw match list.
		chunk := semanticChunk{
			UUID:      record.ID,
			SourceID:  params.SourceID,
			Ordinal:   len(chunks),
			Text:      record.Text,
			CreatedAt: time.Unix(0, record.Timestamp).UTC().Format(time.RFC3339),
		}
		if ordinal, ok := record.Metadata["ordinal"]; ok {
			if f, isNum := ordinal.(float64); isNum {
				chunk.Ordinal = int(f)
			}
		}
		if chunkType, ok := record.Metadata["type"].(string); ok {
			chunk.Type = chunkType
		}
		if language, ok := record.Metadata["language"].(string); ok {
			chunk.Language = language
		}
		chunks = append(chunks, chunk)
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Ordinal < chunks[j].Ordinal
	})

	s.collector.IncrementCounter("chunk_fetches", 1)

	return &findChunksResult{Chunks: chunks, Count: len(chunks)}, nil
}
