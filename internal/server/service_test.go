package server

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maverikod/vvz-rpc-clients/internal/metrics"
	"github.com/maverikod/vvz-rpc-clients/internal/storage"
	"github.com/maverikod/vvz-rpc-clients/pkg/chunkretriever"
	"github.com/maverikod/vvz-rpc-clients/pkg/vectorstore"
)

// startService spins up the full stack (memory store, service, RPC
// handler) behind an httptest server and returns a connected client.
func startService(t *testing.T, opts ServiceOptions) (*vectorstore.Client, *httptest.Server) {
	t.Helper()

	store := storage.NewMemoryStore()
	collector := metrics.NewCollectorWith(prometheus.NewRegistry())
	service := NewService(store, collector, zap.NewNop(), opts)
	handler := NewHandler(service, zap.NewNop())

	srv := httptest.NewServer(handler.Mux())
	t.Cleanup(srv.Close)

	client, err := vectorstore.New(vectorstore.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client, srv
}

func TestCreateAndFetchTextRecord(t *testing.T) {
	client, _ := startService(t, ServiceOptions{})
	ctx := context.Background()

	id, err := client.CreateTextRecord(ctx, "hello vector world", vectorstore.CreateOptions{
		Metadata: vectorstore.Metadata{"type": "greeting"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "record ids are UUIDs")

	metadata, err := client.GetMetadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "greeting", metadata["type"])

	text, err := client.GetText(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello vector world", text)
}

func TestCreateVectorRecordRequiresBody(t *testing.T) {
	client, _ := startService(t, ServiceOptions{})
	ctx := context.Background()

	vector := make([]float32, 8)
	vector[0] = 1

	_, err := client.CreateRecord(ctx, vector, vectorstore.CreateOptions{
		Metadata: vectorstore.Metadata{"type": "raw"},
	})
	require.Error(t, err)
	var validation *vectorstore.ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = client.CreateRecord(ctx, vector, vectorstore.CreateOptions{
		Metadata: vectorstore.Metadata{"type": "raw", "body": "payload"},
	})
	require.NoError(t, err)
}

func TestVectorRecordHasNoText(t *testing.T) {
	client, _ := startService(t, ServiceOptions{})
	ctx := context.Background()

	vector := make([]float32, 8)
	vector[3] = 1

	id, err := client.CreateRecord(ctx, vector, vectorstore.CreateOptions{
		Metadata: vectorstore.Metadata{"body": "payload"},
	})
	require.NoError(t, err)

	_, err = client.GetText(ctx, id)
	var notFound *vectorstore.ResourceNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSearchTextRecordsRanksBySimilarity(t *testing.T) {
	client, _ := startService(t, ServiceOptions{})
	ctx := context.Background()

	texts := []string{
		"the quick brown fox",
		"vector databases store embeddings",
		"completely unrelated content about cooking",
	}
	for _, text := range texts {
		_, err := client.CreateTextRecord(ctx, text, vectorstore.CreateOptions{
			Metadata: vectorstore.Metadata{"type": "doc"},
		})
		require.NoError(t, err)
	}

	// The embedder is deterministic, so the exact query text must come
	// back as the top hit with a perfect score.
	results, err := client.SearchTextRecords(ctx, "vector databases store embeddings",
		vectorstore.SearchOptions{Limit: 3, IncludeMetadata: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[0].Score)
	}
}

func TestSearchWithFilterCriteria(t *testing.T) {
	client, _ := startService(t, ServiceOptions{})
	ctx := context.Background()

	_, err := client.CreateTextRecord(ctx, "alpha", vectorstore.CreateOptions{
		Metadata: vectorstore.Metadata{"category": "keep"},
	})
	require.NoError(t, err)
	_, err = client.CreateTextRecord(ctx, "alpha", vectorstore.CreateOptions{
		Metadata: vectorstore.Metadata{"category": "drop"},
	})
	require.NoError(t, err)

	results, err := client.SearchTextRecords(ctx, "alpha", vectorstore.SearchOptions{
		Limit:           10,
		IncludeMetadata: true,
		FilterCriteria:  vectorstore.Metadata{"category": "keep"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep", results[0].Metadata["category"])
}

func TestFilterRecordsOperators(t *testing.T) {
	client, _ := startService(t, ServiceOptions{})
	ctx := context.Background()

	priorities := []int{1, 2, 3, 4, 5}
	for _, p := range priorities {
		_, err := client.CreateTextRecord(ctx, "record", vectorstore.CreateOptions{
			Metadata: vectorstore.Metadata{
				"priority": p,
				"tags":     []string{"batch", "test"},
			},
		})
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter vectorstore.Metadata
		want   int
	}{
		{"gte", vectorstore.Metadata{"priority": vectorstore.Metadata{"$gte": 4}}, 2},
		{"lt", vectorstore.Metadata{"priority": vectorstore.Metadata{"$lt": 3}}, 2},
		{"ne", vectorstore.Metadata{"priority": vectorstore.Metadata{"$ne": 1}}, 4},
		{"in", vectorstore.Metadata{"priority": vectorstore.Metadata{"$in": []int{1, 5}}}, 2},
		{"contains", vectorstore.Metadata{"tags": vectorstore.Metadata{"$contains": "batch"}}, 5},
		{"equality", vectorstore.Metadata{"priority": 3}, 1},
		{"empty matches all", vectorstore.Metadata{}, 5},
		{"no match", vectorstore.Metadata{"priority": 99}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := client.FilterRecords(ctx, tt.filter, vectorstore.FilterOptions{Limit: 10})
			require.NoError(t, err)
			assert.Len(t, results, tt.want)
		})
	}
}

func TestSessionIDIsFilterable(t *testing.T) {
	client, _ := startService(t, ServiceOptions{})
	ctx := context.Background()

	sessionID := uuid.NewString()
	for i := 0; i < 3; i++ {
		_, err := client.CreateTextRecord(ctx, "session record", vectorstore.CreateOptions{
			Metadata:  vectorstore.Metadata{"type": "note"},
			SessionID: sessionID,
		})
		require.NoError(t, err)
	}
	_, err := client.CreateTextRecord(ctx, "other session", vectorstore.CreateOptions{
		SessionID: uuid.NewString(),
	})
	require.NoError(t, err)

	sessionFilter := vectorstore.Metadata{"session_id": sessionID}

	// Plain metadata filter.
	matched, err := client.FilterRecords(ctx, sessionFilter, vectorstore.FilterOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, matched, 3)

	// Combined with another metadata key.
	matched, err = client.FilterRecords(ctx, vectorstore.Metadata{
		"session_id": sessionID,
		"type":       "note",
	}, vectorstore.FilterOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, matched, 3)

	// As search filter criteria.
	results, err := client.SearchTextRecords(ctx, "session record", vectorstore.SearchOptions{
		Limit:          10,
		FilterCriteria: sessionFilter,
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	// Bulk delete by session.
	deleted, err := client.Delete(ctx, vectorstore.DeleteRequest{
		Filter:  sessionFilter,
		Confirm: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, deleted.DeletedCount)

	remaining, err := client.FilterRecords(ctx, vectorstore.Metadata{}, vectorstore.FilterOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "the other session's record survives")
}

func TestDeleteSingle(t *testing.T) {
	client, _ := startService(t, ServiceOptions{})
	ctx := context.Background()

	id, err := client.CreateTextRecord(ctx, "to delete", vectorstore.CreateOptions{})
	require.NoError(t, err)

	result, err := client.Delete(ctx, vectorstore.DeleteRequest{RecordID: id})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedCount)

	_, err = client.GetMetadata(ctx, id)
	var notFound *vectorstore.ResourceNotFoundError
	assert.ErrorAs(t, err, &notFound)

	// Deleting again reports not found.
	_, err = client.Delete(ctx, vectorstore.DeleteRequest{RecordID: id})
	assert.ErrorAs(t, err, &notFound)
}

func TestDeleteManySkipsMissing(t *testing.T) {
	client, _ := startService(t, ServiceOptions{})
	ctx := context.Background()

	id, err := client.CreateTextRecord(ctx, "kept around", vectorstore.CreateOptions{})
	require.NoError(t, err)

	result, err := client.Delete(ctx, vectorstore.DeleteRequest{
		RecordIDs: []string{id, uuid.NewString()},
		Confirm:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedCount)
}

func TestDeleteByFilterHonorsMaxRecords(t *testing.T) {
	client, _ := startService(t, ServiceOptions{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.CreateTextRecord(ctx, "bulk", vectorstore.CreateOptions{
			Metadata: vectorstore.Metadata{"group": "bulk"},
		})
		require.NoError(t, err)
	}

	result, err := client.Delete(ctx, vectorstore.DeleteRequest{
		Filter:     vectorstore.Metadata{"group": "bulk"},
		MaxRecords: 3,
		Confirm:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.DeletedCount)

	remaining, err := client.FilterRecords(ctx, vectorstore.Metadata{"group": "bulk"},
		vectorstore.FilterOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestHealthReportsModelAndCount(t *testing.T) {
	client, _ := startService(t, ServiceOptions{ModelName: "test-model"})
	ctx := context.Background()

	_, err := client.CreateTextRecord(ctx, "one", vectorstore.CreateOptions{})
	require.NoError(t, err)

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.Healthy())
	assert.Equal(t, "test-model", health.Model)
	assert.Equal(t, serviceVersion, health.Version)
	assert.Equal(t, int64(1), health.RecordCount)
}

func TestHelpListsAllCommands(t *testing.T) {
	client, _ := startService(t, ServiceOptions{})

	help, err := client.Help(context.Background(), "")
	require.NoError(t, err)

	for _, command := range []string{
		"health", "help", "config",
		"create_record", "create_text_record",
		"search_records", "search_text_records", "filter_records",
		"get_metadata", "get_text", "delete_records",
		"find_chunks_by_source_id",
	} {
		assert.Contains(t, help.Commands, command)
	}

	// Narrowing to one command.
	single, err := client.Help(context.Background(), "delete_records")
	require.NoError(t, err)
	require.Len(t, single.Commands, 1)
	assert.Contains(t, single.Commands["delete_records"].Params, "confirm")

	_, err = client.Help(context.Background(), "no_such_command")
	var notFound *vectorstore.ResourceNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestConfigRequiresToken(t *testing.T) {
	view := map[string]any{
		"server": map[string]any{"port": 8007},
	}

	store := storage.NewMemoryStore()
	collector := metrics.NewCollectorWith(prometheus.NewRegistry())
	service := NewService(store, collector, zap.NewNop(), ServiceOptions{
		ConfigToken: "secret",
		ConfigView:  view,
	})
	handler := NewHandler(service, zap.NewNop())
	srv := httptest.NewServer(handler.Mux())
	t.Cleanup(srv.Close)

	ctx := context.Background()

	// Without a token.
	anon, err := vectorstore.New(vectorstore.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	t.Cleanup(anon.Close)

	_, err = anon.ServerConfig(ctx, "get", "")
	var authErr *vectorstore.AuthenticationError
	assert.ErrorAs(t, err, &authErr)

	// With the right token.
	authed, err := vectorstore.New(vectorstore.Config{BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)
	t.Cleanup(authed.Close)

	cfg, err := authed.ServerConfig(ctx, "get", "")
	require.NoError(t, err)
	assert.Contains(t, cfg, "server")

	section, err := authed.ServerConfig(ctx, "get", "server")
	require.NoError(t, err)
	assert.EqualValues(t, 8007, section["port"])

	_, err = authed.ServerConfig(ctx, "get", "missing")
	var notFound *vectorstore.ResourceNotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = authed.ServerConfig(ctx, "set", "")
	var validation *vectorstore.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestFindChunksBySourceID(t *testing.T) {
	client, srv := startService(t, ServiceOptions{})
	ctx := context.Background()

	sourceID := uuid.NewString()
	// Insert out of order; the response must come back sorted by the
	// ordinal carried in metadata.
	for _, i := range []int{2, 0, 1} {
		_, err := client.CreateTextRecord(ctx, texts()[i], vectorstore.CreateOptions{
			Metadata: vectorstore.Metadata{
				"source_id": sourceID,
				"ordinal":   i,
				"type":      "DocBlock",
				"language":  "en",
			},
		})
		require.NoError(t, err)
	}

	// A record under a different source must not leak in.
	_, err := client.CreateTextRecord(ctx, "other doc", vectorstore.CreateOptions{
		Metadata: vectorstore.Metadata{"source_id": uuid.NewString()},
	})
	require.NoError(t, err)

	retriever := newChunkClient(t, srv.URL)

	resp, err := retriever.FindChunksBySourceID(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Chunks, 3)
	for i, chunk := range resp.Chunks {
		assert.Equal(t, i, chunk.Ordinal)
		assert.Equal(t, texts()[i], chunk.Text)
		assert.Equal(t, sourceID, chunk.SourceID)
		assert.Equal(t, "DocBlock", chunk.Type)
	}

	// The nil UUID is syntactically valid and simply matches nothing.
	empty, err := retriever.FindChunksBySourceUUID(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
}

func TestFindChunksFallbackOrdinals(t *testing.T) {
	client, srv := startService(t, ServiceOptions{})
	ctx := context.Background()

	sourceID := uuid.NewString()
	vector := make([]float32, 8)
	vector[0] = 1

	// Interleave text-less vector records with text records carrying
	// no ordinal key. Only text records become chunks, and their
	// fallback ordinals must stay contiguous.
	stamps := []string{
		"2026-08-01T10:00:00Z",
		"2026-08-01T10:00:01Z",
		"2026-08-01T10:00:02Z",
		"2026-08-01T10:00:03Z",
		"2026-08-01T10:00:04Z",
	}
	for i, stamp := range stamps {
		var err error
		if i%2 == 1 {
			_, err = client.CreateRecord(ctx, vector, vectorstore.CreateOptions{
				Metadata:  vectorstore.Metadata{"source_id": sourceID, "body": "vector only"},
				Timestamp: stamp,
			})
		} else {
			_, err = client.CreateTextRecord(ctx, "text "+stamp, vectorstore.CreateOptions{
				Metadata:  vectorstore.Metadata{"source_id": sourceID},
				Timestamp: stamp,
			})
		}
		require.NoError(t, err)
	}

	retriever := newChunkClient(t, srv.URL)

	resp, err := retriever.FindChunksBySourceID(ctx, sourceID)
	require.NoError(t, err)
	require.Equal(t, 3, resp.Count)
	for i, chunk := range resp.Chunks {
		assert.Equal(t, i, chunk.Ordinal)
		assert.Equal(t, "text "+stamps[i*2], chunk.Text)
	}
}

func texts() []string {
	return []string{"chunk zero", "chunk one", "chunk two"}
}

func newChunkClient(t *testing.T, rawURL string) *chunkretriever.Client {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	client, err := chunkretriever.New(chunkretriever.Config{
		URL:  parsed.Scheme + "://" + parsed.Hostname(),
		Port: port,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}
