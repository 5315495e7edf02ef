package chunkretriever

// SemanticChunk is the flat chunk shape returned by the chunk retriever
// service. Every field is optional except UUID and SourceID.
type SemanticChunk struct {
	UUID      string  `json:"uuid"`
	SourceID  string  `json:"source_id"`
	Ordinal   int     `json:"ordinal"`
	Type      string  `json:"type,omitempty"`
	Role      string  `json:"role,omitempty"`
	Language  string  `json:"language,omitempty"`
	Text      string  `json:"text"`
	Summary   string  `json:"summary,omitempty"`
	Tags      string  `json:"tags,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
	Status    string  `json:"status,omitempty"`
	Quality   float64 `json:"quality_score,omitempty"`
}

// FindChunksResponse is the result of a source-id lookup.
type FindChunksResponse struct {
	Chunks []SemanticChunk `json:"chunks"`
	Count  int             `json:"count"`
}
