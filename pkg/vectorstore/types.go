package vectorstore

// Metadata is an arbitrary JSON object attached to a record. Values in
// filter criteria may be plain (equality) or operator objects such as
// {"$gte": 4}, {"$in": [...]}, {"$contains": "tag"}, {"$ne": "x"}.
type Metadata map[string]any

// Record is a search or filter hit returned by the service.
type Record struct {
	ID       string    `json:"id"`
	Score    float64   `json:"score,omitempty"`
	Metadata Metadata  `json:"metadata,omitempty"`
	Vector   []float32 `json:"vector,omitempty"`
	Text     string    `json:"text,omitempty"`
}

// CreateOptions carries the optional fields of record creation.
type CreateOptions struct {
	Metadata  Metadata
	SessionID string
	Timestamp string
	Model     string
}

// SearchOptions controls similarity search.
type SearchOptions struct {
	Limit           int
	IncludeMetadata bool
	IncludeVectors  bool
	FilterCriteria  Metadata
}

// FilterOptions controls metadata-filter selection.
type FilterOptions struct {
	Limit           int
	IncludeMetadata bool
}

// DeleteRequest selects records for deletion. Exactly one of RecordID,
// RecordIDs, or Filter must be set. Deleting more than a single record
// (RecordIDs or Filter) requires Confirm.
type DeleteRequest struct {
	RecordID   string
	RecordIDs  []string
	Filter     Metadata
	MaxRecords int
	Confirm    bool
}

// DeleteResult reports the outcome of a delete operation.
type DeleteResult struct {
	DeletedCount int `json:"deleted_count"`
}

// HealthInfo is the service health report.
type HealthInfo struct {
	Status        string  `json:"status"`
	Model         string  `json:"model"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	RecordCount   int64   `json:"record_count"`
}

// Healthy reports whether the service considers itself operational.
func (h *HealthInfo) Healthy() bool {
	return h.Status == "ok" || h.Status == "healthy"
}

// CommandHelp describes one service command.
type CommandHelp struct {
	Summary string   `json:"summary"`
	Params  []string `json:"params,omitempty"`
}

// HelpInfo lists the commands the service understands.
type HelpInfo struct {
	Commands map[string]CommandHelp `json:"commands"`
}

const defaultSearchLimit = 10
