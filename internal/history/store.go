package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/cverag/internal/db"
)

// ErrNotFound is returned by GetByID for unknown IDs.
var ErrNotFound = errors.New("history record not found")

// Store persists request history in the requests table.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts a record. If rec.ID is empty a UUID is generated; a zero
// Timestamp becomes now. The stored ID is returned.
func (s *Store) Log(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	identifiers, err := marshalList(rec.Identifiers)
	if err != nil {
		return "", fmt.Errorf("marshalling identifiers: %w", err)
	}
	missing, err := marshalList(rec.Missing)
	if err != nil {
		return "", fmt.Errorf("marshalling missing identifiers: %w", err)
	}
	corrections, err := json.Marshal(rec.Corrections)
	if err != nil {
		return "", fmt.Errorf("marshalling corrections: %w", err)
	}

	var errText sql.NullString
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO requests (
			id, timestamp, model, rag_type, prompt, identifiers,
			missing, corrections, chunks, duration_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC().Format(time.DateTime),
		rec.Model,
		rec.RAGType,
		rec.Prompt,
		identifiers,
		missing,
		string(corrections),
		rec.Chunks,
		rec.Duration.Milliseconds(),
		errText,
	)
	if err != nil {
		return "", fmt.Errorf("inserting history record: %w", err)
	}
	return rec.ID, nil
}

func marshalList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

const selectColumns = `SELECT id, timestamp, model, rag_type, prompt, identifiers,
	missing, corrections, chunks, duration_ms, error FROM requests`

// GetByID retrieves a single record.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// Filter controls which records List returns.
type Filter struct {
	Model   string
	RAGType string
	Since   *time.Time
	// FailedOnly keeps only requests that ended in an error.
	FailedOnly bool
	Limit      int
	Offset     int
}

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Model != "" {
		clauses = append(clauses, "model = ?")
		args = append(args, filter.Model)
	}
	if filter.RAGType != "" {
		clauses = append(clauses, "rag_type = ?")
		args = append(args, filter.RAGType)
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}
	if filter.FailedOnly {
		clauses = append(clauses, "error IS NOT NULL")
	}

	query := selectColumns
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// DeleteBefore removes records older than before and returns how many were
// deleted.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM requests WHERE timestamp < ?",
		before.UTC().Format(time.DateTime),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old history: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		rec                               Record
		ts                                string
		identifiers, missing, corrections string
		durationMS                        int64
		errText                           sql.NullString
	)
	if err := sc.Scan(&rec.ID, &ts, &rec.Model, &rec.RAGType, &rec.Prompt,
		&identifiers, &missing, &corrections, &rec.Chunks, &durationMS, &errText); err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.DateTime, ts); err == nil {
		rec.Timestamp = t
	} else if t, err := time.Parse(time.RFC3339, ts); err == nil {
		rec.Timestamp = t
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	if errText.Valid {
		rec.Error = errText.String
	}

	if err := json.Unmarshal([]byte(identifiers), &rec.Identifiers); err != nil {
		return nil, fmt.Errorf("decoding identifiers of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(missing), &rec.Missing); err != nil {
		return nil, fmt.Errorf("decoding missing identifiers of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(corrections), &rec.Corrections); err != nil {
		return nil, fmt.Errorf("decoding corrections of %s: %w", rec.ID, err)
	}
	return &rec, nil
}
