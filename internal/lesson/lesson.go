// Package lesson stores and retrieves the Arbiter's per-request cache
// entries. A Lesson is append-only within its shard; CFIA owns shard
// membership and splitting, this package owns the bytes.
package lesson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lunacore/luna/internal/atomicfile"
)

// Lesson is the Arbiter's output: a (prompt, response, gold standard, score)
// tuple tagged for later retrieval.
type Lesson struct {
	ID                 string    `json:"id"`
	ShardID            string    `json:"shard_id"`
	OriginalPrompt     string    `json:"original_prompt"`
	SuboptimalResponse string    `json:"suboptimal_response"`
	GoldStandard       string    `json:"gold_standard"`
	UtilityScore       float64   `json:"utility_score"`
	KarmaDelta         float64   `json:"karma_delta"`
	Timestamp          time.Time `json:"timestamp"`
	ContextTags        []string  `json:"context_tags"`
	LinguaCalcDepth    int       `json:"lingua_calc_depth"`
	LinguaCalcGain     float64   `json:"lingua_calc_gain"`
}

// New builds a Lesson with a fresh id and the given timestamp.
func New(shardID, prompt, response, goldStandard string, utilityScore, karmaDelta float64, tags []string, now time.Time) Lesson {
	return Lesson{
		ID:                 uuid.NewString(),
		ShardID:            shardID,
		OriginalPrompt:     prompt,
		SuboptimalResponse: response,
		GoldStandard:       goldStandard,
		UtilityScore:       utilityScore,
		KarmaDelta:         karmaDelta,
		Timestamp:          now,
		ContextTags:        tags,
	}
}

// Store persists lessons by shard, matching CFIA's file-per-shard layout.
// Splitting a shard is two calls at the caller's level: WriteShard the two
// halves under new shard ids, then DeleteShard the original.
type Store interface {
	AppendLesson(ctx context.Context, shardID string, l Lesson) error
	LoadShard(ctx context.Context, shardID string) ([]Lesson, error)
	WriteShard(ctx context.Context, shardID string, lessons []Lesson) error
	DeleteShard(ctx context.Context, shardID string) error
	AllLessons(ctx context.Context) ([]Lesson, error)
	ShardIDs(ctx context.Context) ([]string, error)
}

// FileStore is a JSON-file-per-shard Store, durable via atomicfile.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it if necessary.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("lesson: create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) shardPath(shardID string) string {
	return filepath.Join(s.dir, shardID+".json")
}

func (s *FileStore) AppendLesson(ctx context.Context, shardID string, l Lesson) error {
	existing, err := s.LoadShard(ctx, shardID)
	if err != nil {
		return err
	}
	l.ShardID = shardID
	existing = append(existing, l)
	return s.WriteShard(ctx, shardID, existing)
}

func (s *FileStore) LoadShard(ctx context.Context, shardID string) ([]Lesson, error) {
	data, err := os.ReadFile(s.shardPath(shardID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lesson: read shard %s: %w", shardID, err)
	}
	var lessons []Lesson
	if err := json.Unmarshal(data, &lessons); err != nil {
		return nil, fmt.Errorf("lesson: decode shard %s: %w", shardID, err)
	}
	return lessons, nil
}

func (s *FileStore) WriteShard(ctx context.Context, shardID string, lessons []Lesson) error {
	data, err := json.Marshal(lessons)
	if err != nil {
		return fmt.Errorf("lesson: encode shard %s: %w", shardID, err)
	}
	if err := atomicfile.Write(s.shardPath(shardID), data, 0o644); err != nil {
		return fmt.Errorf("lesson: write shard %s: %w", shardID, err)
	}
	return nil
}

func (s *FileStore) DeleteShard(ctx context.Context, shardID string) error {
	if err := os.Remove(s.shardPath(shardID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lesson: delete shard %s: %w", shardID, err)
	}
	return nil
}

func (s *FileStore) ShardIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("lesson: list store directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) == ".json" {
			ids = append(ids, name[:len(name)-len(".json")])
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileStore) AllLessons(ctx context.Context) ([]Lesson, error) {
	ids, err := s.ShardIDs(ctx)
	if err != nil {
		return nil, err
	}
	var all []Lesson
	for _, id := range ids {
		lessons, err := s.LoadShard(ctx, id)
		if err != nil {
			return nil, err
		}
		all = append(all, lessons...)
	}
	return all, nil
}

var _ Store = (*FileStore)(nil)
