package lesson

import "context"

// Retriever returns the single most-relevant prior lesson for a new prompt,
// or ok=false if nothing qualifies.
type Retriever interface {
	Retrieve(ctx context.Context, prompt string, tags []string) (lesson Lesson, ok bool, err error)
}

// TagOverlapRetriever is the mandatory fallback retriever: it scores stored
// lessons by the size of their tag-set intersection with the query tags,
// breaking ties in favor of the most recent lesson.
type TagOverlapRetriever struct {
	store Store
}

// NewTagOverlapRetriever wraps a Store.
func NewTagOverlapRetriever(store Store) *TagOverlapRetriever {
	return &TagOverlapRetriever{store: store}
}

func (r *TagOverlapRetriever) Retrieve(ctx context.Context, prompt string, tags []string) (Lesson, bool, error) {
	lessons, err := r.store.AllLessons(ctx)
	if err != nil {
		return Lesson{}, false, err
	}
	if len(lessons) == 0 {
		return Lesson{}, false, nil
	}

	query := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		query[t] = struct{}{}
	}

	var best Lesson
	bestScore := -1
	found := false
	for _, l := range lessons {
		score := tagOverlapScore(query, l.ContextTags)
		if score == 0 {
			continue
		}
		if score > bestScore || (score == bestScore && l.Timestamp.After(best.Timestamp)) {
			best = l
			bestScore = score
			found = true
		}
	}
	return best, found, nil
}

func tagOverlapScore(query map[string]struct{}, tags []string) int {
	score := 0
	for _, t := range tags {
		if _, ok := query[t]; ok {
			score++
		}
	}
	return score
}

var _ Retriever = (*TagOverlapRetriever)(nil)
