package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Record is an entry of the in-memory index.
type Record struct {
	ID       string
	Vector   []float32
	Priority int
	Payload  map[string]interface{}
}

// MemoryIndex is an exact cosine index kept in process memory.
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		collections: map[string]map[string]Record{
			CollectionPages:    {},
			CollectionSections: {},
			CollectionPassages: {},
		},
	}
}

func (m *MemoryIndex) Upsert(collection string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		return ErrUnknownCollection
	}
	col[rec.ID] = rec
	return nil
}

func (m *MemoryIndex) Delete(collection, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[collection], id)
}

func (m *MemoryIndex) Query(ctx context.Context, collection string, vector []float32, topN int, minSimilarity float64) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	col, ok := m.collections[collection]
	if !ok {
		m.mu.RUnlock()
		return nil, ErrUnknownCollection
	}

	type scored struct {
		Candidate
		priority int
	}
	hits := make([]scored, 0, len(col))
	for _, rec := range col {
		sim := clampSimilarity(cosineSimilarity(vector, rec.Vector))
		if sim < minSimilarity {
			continue
		}
		hits = append(hits, scored{
			Candidate: Candidate{ID: rec.ID, Similarity: sim, Payload: rec.Payload},
			priority:  rec.Priority,
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		if hits[i].priority != hits[j].priority {
			return hits[i].priority > hits[j].priority
		}
		return hits[i].ID < hits[j].ID
	})

	if topN > 0 && len(hits) > topN {
		hits = hits[:topN]
	}
	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = h.Candidate
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
