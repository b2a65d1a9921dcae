package vectorindex

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// CollectionSpec maps a collection onto a table with a vector column.
type CollectionSpec struct {
	Table           string
	Columns         []string
	EmbeddingColumn string
	PriorityColumn  string
}

var DefaultCollections = map[string]CollectionSpec{
	CollectionPages: {
		Table:           "page_destinations",
		Columns:         []string{"id::text AS id", "url", "title", "required_tier", "priority"},
		EmbeddingColumn: "embedding_value",
		PriorityColumn:  "priority",
	},
	CollectionSections: {
		Table:           "section_destinations",
		Columns:         []string{"id::text AS id", "element_id", "title", "page_url", "page_title", "required_tier"},
		EmbeddingColumn: "embedding_value",
	},
	CollectionPassages: {
		Table:           "knowledge_passages",
		Columns:         []string{"id::text AS id", "source_url", "source_title", "content"},
		EmbeddingColumn: "embedding_value",
	},
}

// PgVectorIndex queries pgvector tables through gorm.
type PgVectorIndex struct {
	db          *gorm.DB
	collections map[string]CollectionSpec
}

func NewPgVectorIndex(db *gorm.DB) *PgVectorIndex {
	return &PgVectorIndex{db: db, collections: DefaultCollections}
}

// BuildQuery renders the similarity query for a collection.
func (p *PgVectorIndex) BuildQuery(collection string, vector []float32, topN int, minSimilarity float64) (string, []interface{}, error) {
	spec, ok := p.collections[collection]
	if !ok {
		return "", nil, ErrUnknownCollection
	}

	vec := pgvector.NewVector(vector)
	// cosine distance: 1 - distance = similarity
	similarity := fmt.Sprintf("1 - (%s <=> ?)", spec.EmbeddingColumn)

	b := sq.Select(spec.Columns...).
		Column(sq.Expr(similarity+" AS similarity", vec)).
		From(spec.Table).
		Where(sq.Eq{"is_active": true}).
		Where("deleted_at IS NULL").
		Where(spec.EmbeddingColumn + " IS NOT NULL").
		Where(sq.Expr(similarity+" >= ?", vec, minSimilarity)).
		OrderBy("similarity DESC")
	if spec.PriorityColumn != "" {
		b = b.OrderBy(spec.PriorityColumn + " DESC")
	}
	if topN > 0 {
		b = b.Limit(uint64(topN))
	}
	return b.ToSql()
}

func (p *PgVectorIndex) Query(ctx context.Context, collection string, vector []float32, topN int, minSimilarity float64) ([]Candidate, error) {
	query, args, err := p.BuildQuery(collection, vector, topN, minSimilarity)
	if err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	if err := p.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("similarity query on %s: %w", collection, err)
	}

	out := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		sim, _ := row["similarity"].(float64)
		delete(row, "similarity")
		c := Candidate{Similarity: clampSimilarity(sim), Payload: row}
		c.ID = c.String("id")
		out = append(out, c)
	}
	return out, nil
}
