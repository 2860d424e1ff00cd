package lesson

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/philippgille/chromem-go"
)

// VectorRetriever is the optional "mycelium" enhancement: an in-process
// embedding-similarity index over stored lessons, implementing the same
// Retriever interface as TagOverlapRetriever so callers can swap it in
// without touching the rest of the pipeline. It never replaces the
// mandatory tag-overlap fallback, only extends it with cross-fragment
// scoring when available.
type VectorRetriever struct {
	collection *chromem.Collection
	fallback   Retriever
}

const vectorDimension = 256

// NewVectorRetriever builds a VectorRetriever backed by an in-memory
// chromem-go collection, seeded from every lesson already in store. fallback
// is consulted whenever the vector index has no match (empty index, or a
// query with no appreciable similarity to anything stored).
func NewVectorRetriever(ctx context.Context, store Store, fallback Retriever) (*VectorRetriever, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection("lessons", nil, localEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("lesson: create vector collection: %w", err)
	}

	lessons, err := store.AllLessons(ctx)
	if err != nil {
		return nil, fmt.Errorf("lesson: seed vector collection: %w", err)
	}

	vr := &VectorRetriever{collection: col, fallback: fallback}
	for _, l := range lessons {
		if err := vr.Index(ctx, l); err != nil {
			return nil, err
		}
	}
	return vr, nil
}

// Index adds or updates a lesson's embedding in the collection. Call this
// whenever a new lesson is persisted so the index stays current.
func (r *VectorRetriever) Index(ctx context.Context, l Lesson) error {
	embedding, err := localEmbeddingFunc(ctx, l.OriginalPrompt)
	if err != nil {
		return fmt.Errorf("lesson: embed lesson %s: %w", l.ID, err)
	}
	doc := chromem.Document{
		ID:        l.ID,
		Content:   l.OriginalPrompt,
		Metadata:  map[string]string{"gold_standard": l.GoldStandard, "shard_id": l.ShardID},
		Embedding: embedding,
	}
	if err := r.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("lesson: index lesson %s: %w", l.ID, err)
	}
	return nil
}

func (r *VectorRetriever) Retrieve(ctx context.Context, prompt string, tags []string) (Lesson, bool, error) {
	if r.collection.Count() == 0 {
		if r.fallback != nil {
			return r.fallback.Retrieve(ctx, prompt, tags)
		}
		return Lesson{}, false, nil
	}

	queryEmbedding, err := localEmbeddingFunc(ctx, prompt)
	if err != nil {
		return Lesson{}, false, fmt.Errorf("lesson: embed query: %w", err)
	}

	results, err := r.collection.QueryEmbedding(ctx, queryEmbedding, 1, nil, nil)
	if err != nil || len(results) == 0 {
		if r.fallback != nil {
			return r.fallback.Retrieve(ctx, prompt, tags)
		}
		return Lesson{}, false, nil
	}

	top := results[0]
	const minSimilarity = 0.2
	if top.Similarity < minSimilarity {
		if r.fallback != nil {
			return r.fallback.Retrieve(ctx, prompt, tags)
		}
		return Lesson{}, false, nil
	}

	return Lesson{
		ID:             top.ID,
		OriginalPrompt: top.Content,
		GoldStandard:   top.Metadata["gold_standard"],
		ShardID:        top.Metadata["shard_id"],
	}, true, nil
}

// localEmbeddingFunc is a dependency-free bag-of-words hashing embedding:
// no external embedding API is required to run the optional retriever,
// keeping it consistent with the single-process deployment model.
func localEmbeddingFunc(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, vectorDimension)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return vec, nil
	}
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		idx := h.Sum32() % vectorDimension
		vec[idx] += 1.0
	}
	normalize(vec)
	return vec, nil
}

func normalize(vec []float32) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= norm
	}
}

var _ Retriever = (*VectorRetriever)(nil)
