// Package gallery archives gallery entries in a local SQLite database so
// images survive the process that produced them.
package gallery

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/manash/azimg/internal/configstore"
	"github.com/manash/azimg/internal/state"
	"github.com/manash/azimg/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    image_id TEXT NOT NULL,
    mode TEXT NOT NULL,
    prompt TEXT NOT NULL,
    revised_prompt TEXT,
    b64_json TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cost_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mode TEXT NOT NULL,
    model TEXT NOT NULL,
    cost REAL NOT NULL,
    image_count INTEGER NOT NULL DEFAULT 1,
    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entries_image_id ON entries(image_id);
CREATE INDEX IF NOT EXISTS idx_cost_log_timestamp ON cost_log(timestamp);
`

const dbFile = "gallery.db"

// Record is one archived gallery entry.
type Record struct {
	ID    string
	Entry models.GalleryEntry
}

type Archive struct {
	db *sql.DB
}

// Open opens the archive next to the configuration file.
func Open() (*Archive, error) {
	dbPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

func OpenPath(dbPath string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Archive{db: db}, nil
}

func DefaultPath() (string, error) {
	dir, err := configstore.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(dir, dbFile), nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Append stores entries in order inside one transaction.
func (a *Archive) Append(ctx context.Context, entries []models.GalleryEntry) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (id, image_id, mode, prompt, revised_prompt, b64_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), e.Image.ID, string(e.Mode), e.Prompt,
			nullString(e.Image.RevisedPrompt), nullString(e.Image.B64JSON), createdAt.UTC()); err != nil {
			return fmt.Errorf("failed to archive image %s: %w", e.Image.ID, err)
		}
	}
	return tx.Commit()
}

// List returns the newest limit entries in insertion order. A limit of
// zero or less returns everything.
func (a *Archive) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, image_id, mode, prompt, revised_prompt, b64_json, created_at FROM (
		     SELECT * FROM entries ORDER BY seq DESC LIMIT ?
		 ) ORDER BY seq ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns the most recent entry for an image id.
func (a *Archive) Get(ctx context.Context, imageID string) (*Record, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT id, image_id, mode, prompt, revised_prompt, b64_json, created_at
		 FROM entries WHERE image_id = ? ORDER BY seq DESC LIMIT 1`, imageID)

	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (a *Archive) Count(ctx context.Context) (int, error) {
	var count int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count)
	return count, err
}

// Hook returns a gallery hook that archives every appended entry.
func (a *Archive) Hook(ctx context.Context) state.GalleryHook {
	return func(entries []models.GalleryEntry) error {
		return a.Append(ctx, entries)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec           Record
		mode          string
		revisedPrompt sql.NullString
		b64           sql.NullString
	)
	if err := s.Scan(&rec.ID, &rec.Entry.Image.ID, &mode, &rec.Entry.Prompt,
		&revisedPrompt, &b64, &rec.Entry.CreatedAt); err != nil {
		return Record{}, err
	}
	rec.Entry.Mode = models.Mode(mode)
	rec.Entry.Image = models.NewImageResultWithID(rec.Entry.Image.ID, b64.String, revisedPrompt.String)
	return rec, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

type CostEntry struct {
	Mode       models.Mode
	Model      string
	Cost       float64
	ImageCount int
	Timestamp  time.Time
}

type CostSummary struct {
	TotalCost  float64
	ImageCount int
	EntryCount int
}

func (a *Archive) LogCost(ctx context.Context, entry *CostEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO cost_log (mode, model, cost, image_count, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		string(entry.Mode), entry.Model, entry.Cost, entry.ImageCount, ts.UTC())
	return err
}

func (a *Archive) TotalCost(ctx context.Context) (*CostSummary, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0), COALESCE(SUM(image_count), 0), COUNT(*)
		 FROM cost_log`)

	var summary CostSummary
	if err := row.Scan(&summary.TotalCost, &summary.ImageCount, &summary.EntryCount); err != nil {
		return nil, err
	}
	return &summary, nil
}
