package vectordb

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ziadkadry99/cverag/internal/db"
)

// ErrUnsupportedStore is returned for store files whose extension is not
// recognized.
var ErrUnsupportedStore = errors.New("unsupported embedding store format")

var (
	chunkColumns  = []string{"text", "chunk", "content"}
	vectorColumns = []string{"embedding", "embeddings", "vector"}
)

// Load reads an embedding store and builds an Index from it. The format is
// chosen by extension: .csv, .tsv, or .db/.sqlite/.sqlite3.
func Load(ctx context.Context, path string) (*Index, error) {
	entries, err := ReadEntries(ctx, path)
	if err != nil {
		return nil, err
	}
	idx, err := NewIndex(entries)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return idx, nil
}

// ReadEntries reads every row of an embedding store without building an
// index.
func ReadEntries(ctx context.Context, path string) ([]Entry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readDelimitedFile(path, ',')
	case ".tsv":
		return readDelimitedFile(path, '\t')
	case ".db", ".sqlite", ".sqlite3":
		return readSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStore, path)
	}
}

func readDelimitedFile(path string, comma rune) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer f.Close()

	entries, err := ReadCSV(f, comma)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return entries, nil
}

// ReadCSV reads a delimited table with a header row. The chunk column is
// named text, chunk or content; the vector column embedding or vector.
// Other columns (such as a leading index) are ignored.
func ReadCSV(r io.Reader, comma rune) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	chunkCol := findColumn(header, chunkColumns)
	vecCol := findColumn(header, vectorColumns)
	if chunkCol < 0 || vecCol < 0 {
		return nil, fmt.Errorf("header %v must name a chunk column (%s) and a vector column (%s)",
			header, strings.Join(chunkColumns, "/"), strings.Join(vectorColumns, "/"))
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		vec, err := ParseVector(rec[vecCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, Entry{Chunk: rec[chunkCol], Vector: vec})
	}
	return entries, nil
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func readSQLite(ctx context.Context, path string) ([]Entry, error) {
	database, err := db.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	rows, err := database.QueryContext(ctx, `SELECT text, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var text, encoded string
		if err := rows.Scan(&text, &encoded); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		vec, err := ParseVector(encoded)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(entries), err)
		}
		entries = append(entries, Entry{Chunk: text, Vector: vec})
	}
	return entries, rows.Err()
}

// ParseVector decodes a string-encoded vector such as "[0.1, -0.2, 3e-4]".
// Brackets are optional and values may be separated by commas or spaces.
// NaN and infinite values are rejected.
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty vector")
	}

	vec := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("vector value %d: %w", i, err)
		}
		vec[i] = float32(v)
	}
	if i := nonFinite(vec); i >= 0 {
		return nil, fmt.Errorf("%w: value %d is %s", ErrNonFinite, i, fields[i])
	}
	return vec, nil
}

// FormatVector encodes a vector in the bracketed form ParseVector reads.
func FormatVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// WriteStore writes entries to path in the format implied by its extension.
func WriteStore(ctx context.Context, path string, entries []Entry) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return writeDelimitedFile(path, ',', entries)
	case ".tsv":
		return writeDelimitedFile(path, '\t', entries)
	case ".db", ".sqlite", ".sqlite3":
		return WriteSQLite(ctx, path, entries)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedStore, path)
	}
}

func writeDelimitedFile(path string, comma rune, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	if err := WriteCSV(f, comma, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes entries as a text,embedding table.
func WriteCSV(w io.Writer, comma rune, entries []Entry) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write([]string{"text", "embedding"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Chunk, FormatVector(e.Vector)}); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSQLite writes entries into a chunks table, replacing any previous
// contents.
func WriteSQLite(ctx context.Context, path string, entries []Entry) error {
	database, err := db.OpenFile(path)
	if err != nil {
		return err
	}
	defer database.Close()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DROP TABLE IF EXISTS chunks;
		CREATE TABLE chunks (
		    id INTEGER PRIMARY KEY,
		    text TEXT NOT NULL,
		    embedding TEXT NOT NULL
		);`); err != nil {
		return fmt.Errorf("creating chunks table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (id, text, embedding) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, i, e.Chunk, FormatVector(e.Vector)); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	return tx.Commit()
}
