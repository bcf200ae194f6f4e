// Package feedback persists user corrections on detection results. The
// records are raw material for recognizer tuning; nothing in the detection
// path depends on them.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/docveil/docveil/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS corrections (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	span_start  INTEGER NOT NULL,
	span_end    INTEGER NOT NULL,
	old_type    TEXT NOT NULL,
	new_type    TEXT,
	accepted    INTEGER NOT NULL,
	note        TEXT,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_corrections_document ON corrections(document_id);
CREATE INDEX IF NOT EXISTS idx_corrections_type ON corrections(old_type);
`

// Correction is one user decision about a detected entity.
type Correction struct {
	ID         int64     `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"documentId"`
	EntityID   string    `db:"entity_id" json:"entityId"`
	SpanStart  int       `db:"span_start" json:"spanStart"`
	SpanEnd    int       `db:"span_end" json:"spanEnd"`
	OldType    string    `db:"old_type" json:"oldType"`
	NewType    *string   `db:"new_type" json:"newType,omitempty"`
	Accepted   bool      `db:"accepted" json:"accepted"`
	Note       *string   `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// TypeStats aggregates accept/reject decisions per entity type.
type TypeStats struct {
	EntityType string `db:"old_type" json:"entityType"`
	Accepted   int    `db:"accepted_count" json:"accepted"`
	Rejected   int    `db:"rejected_count" json:"rejected"`
}

// Store is an embedded sqlite-backed correction store.
type Store struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// Open opens (creating if needed) the store at path.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open feedback store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply feedback schema: %w", err)
	}
	log.Info("Feedback store opened")
	return &Store{db: db, logger: log}, nil
}

// Save inserts one correction.
func (s *Store) Save(ctx context.Context, c *Correction) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO corrections
			(document_id, entity_id, span_start, span_end, old_type, new_type, accepted, note, created_at)
		VALUES
			(:document_id, :entity_id, :span_start, :span_end, :old_type, :new_type, :accepted, :note, :created_at)`,
		c)
	if err != nil {
		return fmt.Errorf("save correction: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		c.ID = id
	}
	return nil
}

// ListByDocument returns all corrections for one document, oldest first.
func (s *Store) ListByDocument(ctx context.Context, documentID string) ([]Correction, error) {
	var out []Correction
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM corrections WHERE document_id = ? ORDER BY created_at, id`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	return out, nil
}

// Stats returns per-type accept/reject counts across all documents.
func (s *Store) Stats(ctx context.Context) ([]TypeStats, error) {
	var out []TypeStats
	err := s.db.SelectContext(ctx, &out, `
		SELECT old_type,
		       SUM(CASE WHEN accepted = 1 THEN 1 ELSE 0 END) AS accepted_count,
		       SUM(CASE WHEN accepted = 0 THEN 1 ELSE 0 END) AS rejected_count
		FROM corrections
		GROUP BY old_type
		ORDER BY old_type`)
	if err != nil {
		return nil, fmt.Errorf("feedback stats: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
