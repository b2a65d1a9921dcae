// Package vectorindex is the nearest-neighbour lookup over embedded
// destinations and knowledge passages.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const (
	CollectionPages    = "pages"
	CollectionSections = "sections"
	CollectionPassages = "passages"
)

var ErrUnknownCollection = errors.New("vectorindex: unknown collection")

// Candidate is a single hit. Similarity is in [0,1], higher is closer.
type Candidate struct {
	ID         string
	Similarity float64
	Payload    map[string]interface{}
}

// SimilarityIndex returns up to topN candidates with similarity >= minSimilarity,
// best first.
type SimilarityIndex interface {
	Query(ctx context.Context, collection string, vector []float32, topN int, minSimilarity float64) ([]Candidate, error)
}

func (c Candidate) String(key string) string {
	switch v := c.Payload[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func (c Candidate) Int(key string) int {
	switch v := c.Payload[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int16:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func clampSimilarity(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
