package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
)

var ErrRecordNotFound = errors.New("record not found")

type StoredRecord struct {
	ID        string         `json:"id"`
	Vector    []float32      `json:"vector,omitempty"`
	Text      string         `json:"text,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

func (r *StoredRecord) ToBytes() ([]byte, error) {
	return json.Marshal(r)
}

func RecordFromBytes(data []byte) (*StoredRecord, error) {
	var r StoredRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func SerializeVector(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func DeserializeVector(data []byte) []float32 {
	values := make([]float32, len(data)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return values
}

func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

func EuclideanDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return math.MaxFloat32
	}

	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}

	return float32(math.Sqrt(float64(sum)))
}

func DotProduct(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var product float32
	for i := range a {
		product += a[i] * b[i]
	}

	return product
}

type DistanceFunc func(a, b []float32) float32

func GetDistanceFunc(metric string) DistanceFunc {
	switch metric {
	case "cosine":
		return func(a, b []float32) float32 {
			return 1 - CosineSimilarity(a, b)
		}
	case "euclidean":
		return EuclideanDistance
	case "dot_product":
		return func(a, b []float32) float32 {
			return -DotProduct(a, b)
		}
	default:
		return func(a, b []float32) float32 {
			return 1 - CosineSimilarity(a, b)
		}
	}
}

type SearchResult struct {
	ID       string
	Score    float32
	Distance float32
	Record   *StoredRecord
}

func SortResultsByScore(results []*SearchResult) {
	for i := 0; i < len(results)-1; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[i].Score < results[j].Score {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
}

func TopKResults(results []*SearchResult, k int) []*SearchResult {
	if len(results) > k {
		quickSelect(results, k)
		results = results[:k]
	}
	SortResultsByScore(results)
	return results
}

func quickSelect(results []*SearchResult, k int) {
	left, right := 0, len(results)-1
	for left < right {
		pivotIdx := partition(results, left, right)
		if pivotIdx == k {
			return
		} else if pivotIdx < k {
			left = pivotIdx + 1
		} else {
			right = pivotIdx - 1
		}
	}
}

func partition(results []*SearchResult, left, right int) int {
	pivot := results[right].Score
	i := left
	for j := left; j < right; j++ {
		if results[j].Score > pivot {
			results[i], results[j] = results[j], results[i]
			i++
		}
	}
	results[i], results[right] = results[right], results[i]
	return i
}
