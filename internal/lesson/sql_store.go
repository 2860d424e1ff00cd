package lesson

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Database drivers, registered by blank import exactly as the teacher's
	// session store does.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore is a Store backed by database/sql, supporting PostgreSQL, MySQL,
// and SQLite through the same three blank-imported drivers the teacher uses
// for its session store.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

const createLessonsTableSQL = `
CREATE TABLE IF NOT EXISTS lessons (
    id VARCHAR(64) PRIMARY KEY,
    shard_id VARCHAR(255) NOT NULL,
    original_prompt TEXT NOT NULL,
    suboptimal_response TEXT NOT NULL,
    gold_standard TEXT NOT NULL,
    utility_score DOUBLE PRECISION NOT NULL,
    karma_delta DOUBLE PRECISION NOT NULL,
    context_tags TEXT NOT NULL,
    lingua_calc_depth INTEGER NOT NULL,
    lingua_calc_gain DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lessons_shard_id ON lessons(shard_id);
`

// NewSQLStore opens a Store against an already-configured *sql.DB. dialect
// must be one of "postgres", "mysql", "sqlite".
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("lesson: database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("lesson: unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("lesson: initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ddl := createLessonsTableSQL
	if s.dialect == "mysql" {
		ddl = `
CREATE TABLE IF NOT EXISTS lessons (
    id VARCHAR(64) PRIMARY KEY,
    shard_id VARCHAR(255) NOT NULL,
    original_prompt TEXT NOT NULL,
    suboptimal_response TEXT NOT NULL,
    gold_standard TEXT NOT NULL,
    utility_score DOUBLE NOT NULL,
    karma_delta DOUBLE NOT NULL,
    context_tags TEXT NOT NULL,
    lingua_calc_depth INTEGER NOT NULL,
    lingua_calc_gain DOUBLE NOT NULL,
    created_at TIMESTAMP NOT NULL,
    INDEX idx_lessons_shard_id (shard_id)
);
`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create lessons table: %w", err)
	}
	return nil
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) AppendLesson(ctx context.Context, shardID string, l Lesson) error {
	l.ShardID = shardID
	tagsJSON, err := json.Marshal(l.ContextTags)
	if err != nil {
		return fmt.Errorf("lesson: encode context tags: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO lessons (id, shard_id, original_prompt, suboptimal_response, gold_standard, utility_score, karma_delta, context_tags, lingua_calc_depth, lingua_calc_gain, created_at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
`, s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5),
		s.placeholder(6), s.placeholder(7), s.placeholder(8), s.placeholder(9), s.placeholder(10), s.placeholder(11))

	_, err = s.db.ExecContext(ctx, query,
		l.ID, l.ShardID, l.OriginalPrompt, l.SuboptimalResponse, l.GoldStandard,
		l.UtilityScore, l.KarmaDelta, string(tagsJSON), l.LinguaCalcDepth, l.LinguaCalcGain, l.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("lesson: insert lesson: %w", err)
	}
	return nil
}

func (s *SQLStore) scanLessons(rows *sql.Rows) ([]Lesson, error) {
	var out []Lesson
	for rows.Next() {
		var l Lesson
		var tagsJSON string
		if err := rows.Scan(&l.ID, &l.ShardID, &l.OriginalPrompt, &l.SuboptimalResponse, &l.GoldStandard,
			&l.UtilityScore, &l.KarmaDelta, &tagsJSON, &l.LinguaCalcDepth, &l.LinguaCalcGain, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("lesson: scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &l.ContextTags); err != nil {
			return nil, fmt.Errorf("lesson: decode context tags: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLStore) LoadShard(ctx context.Context, shardID string) ([]Lesson, error) {
	query := fmt.Sprintf(`SELECT id, shard_id, original_prompt, suboptimal_response, gold_standard, utility_score, karma_delta, context_tags, lingua_calc_depth, lingua_calc_gain, created_at FROM lessons WHERE shard_id = %s ORDER BY created_at ASC`, s.placeholder(1))
	rows, err := s.db.QueryContext(ctx, query, shardID)
	if err != nil {
		return nil, fmt.Errorf("lesson: query shard %s: %w", shardID, err)
	}
	defer rows.Close()
	return s.scanLessons(rows)
}

// WriteShard replaces the full contents of a shard, used when CFIA commits a
// split or a bulk rewrite.
func (s *SQLStore) WriteShard(ctx context.Context, shardID string, lessons []Lesson) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("lesson: begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleteQuery := fmt.Sprintf(`DELETE FROM lessons WHERE shard_id = %s`, s.placeholder(1))
	if _, err := tx.ExecContext(ctx, deleteQuery, shardID); err != nil {
		return fmt.Errorf("lesson: clear shard %s: %w", shardID, err)
	}

	for _, l := range lessons {
		l.ShardID = shardID
		tagsJSON, err := json.Marshal(l.ContextTags)
		if err != nil {
			return fmt.Errorf("lesson: encode context tags: %w", err)
		}
		insertQuery := fmt.Sprintf(`
INSERT INTO lessons (id, shard_id, original_prompt, suboptimal_response, gold_standard, utility_score, karma_delta, context_tags, lingua_calc_depth, lingua_calc_gain, created_at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
`, s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5),
			s.placeholder(6), s.placeholder(7), s.placeholder(8), s.placeholder(9), s.placeholder(10), s.placeholder(11))
		if _, err := tx.ExecContext(ctx, insertQuery,
			l.ID, l.ShardID, l.OriginalPrompt, l.SuboptimalResponse, l.GoldStandard,
			l.UtilityScore, l.KarmaDelta, string(tagsJSON), l.LinguaCalcDepth, l.LinguaCalcGain, l.Timestamp,
		); err != nil {
			return fmt.Errorf("lesson: insert lesson: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("lesson: commit shard write: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteShard(ctx context.Context, shardID string) error {
	query := fmt.Sprintf(`DELETE FROM lessons WHERE shard_id = %s`, s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, shardID); err != nil {
		return fmt.Errorf("lesson: delete shard %s: %w", shardID, err)
	}
	return nil
}

func (s *SQLStore) ShardIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT shard_id FROM lessons ORDER BY shard_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("lesson: list shards: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("lesson: scan shard id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) AllLessons(ctx context.Context) ([]Lesson, error) {
	query := `SELECT id, shard_id, original_prompt, suboptimal_response, gold_standard, utility_score, karma_delta, context_tags, lingua_calc_depth, lingua_calc_gain, created_at FROM lessons ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("lesson: query all lessons: %w", err)
	}
	defer rows.Close()
	return s.scanLessons(rows)
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
