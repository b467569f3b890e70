package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
	id            TEXT NOT NULL,
	source_ref    TEXT NOT NULL,
	title         TEXT NOT NULL,
	kind          TEXT NOT NULL,
	output_path   TEXT NOT NULL,
	size_bytes    INTEGER NOT NULL,
	downloaded_at TEXT NOT NULL
);
`

type Record struct {
	ID           string
	SourceRef    string
	Title        string
	Kind         string
	OutputPath   string
	SizeBytes    int64
	DownloadedAt time.Time
}

// Store keeps a durable log of completed downloads in a local sqlite
// database so finished work survives process restarts.
type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads (id, source_ref, title, kind, output_path, size_bytes, downloaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SourceRef, rec.Title, rec.Kind, rec.OutputPath, rec.SizeBytes,
		rec.DownloadedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("append history record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) ReadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_ref, title, kind, output_path, size_bytes, downloaded_at
		 FROM downloads ORDER BY downloaded_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var stamp string
		if err := rows.Scan(&rec.ID, &rec.SourceRef, &rec.Title, &rec.Kind, &rec.OutputPath, &rec.SizeBytes, &stamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			return nil, fmt.Errorf("parse history timestamp %q: %w", stamp, err)
		}
		rec.DownloadedAt = parsed
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM downloads`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close history database: %w", err)
	}
	return nil
}
