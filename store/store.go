// Package store keeps a small SQLite index of crawled entries so a batch
// run can resume where it left off without rescanning every output
// directory's JSON.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/icsd-tools/icsdcrawl/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	collection_code  INTEGER PRIMARY KEY,
	chemical_formula TEXT NOT NULL DEFAULT '',
	space_group      TEXT NOT NULL DEFAULT '',
	output_dir       TEXT NOT NULL DEFAULT '',
	crawled_at       TIMESTAMP NOT NULL
);
`

// Store is the progress index. Safe for concurrent use (database/sql pools).
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the index at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open progress index %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate progress index: %w", err)
	}
	return &Store{db: db}, nil
}

// Record upserts one crawled entry. Re-crawls overwrite the previous row,
// matching the destructive replace of the entry's output directory.
func (s *Store) Record(ctx context.Context, entry models.Entry, outputDir string) error {
	code := entry.CollectionCode()
	if code == 0 {
		return models.NewCrawlError(models.ErrCodeInternal, "entry has no collection code", nil)
	}
	formula, _ := entry["chemical_formula"].(string)
	group, _ := entry["space_group"].(string)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (collection_code, chemical_formula, space_group, output_dir, crawled_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection_code) DO UPDATE SET
			chemical_formula = excluded.chemical_formula,
			space_group      = excluded.space_group,
			output_dir       = excluded.output_dir,
			crawled_at       = excluded.crawled_at`,
		code, formula, group, outputDir, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record entry %d: %w", code, err)
	}
	return nil
}

// Has reports whether the entry has been crawled.
func (s *Store) Has(ctx context.Context, code int) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM entries WHERE collection_code = ?`, code).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// Codes returns all crawled collection codes in ascending order.
func (s *Store) Codes(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection_code FROM entries ORDER BY collection_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []int
	for rows.Next() {
		var code int
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// Summary is one row of the ls listing.
type Summary struct {
	CollectionCode  int
	ChemicalFormula string
	SpaceGroup      string
	OutputDir       string
	CrawledAt       time.Time
}

// List returns every crawled entry, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection_code, chemical_formula, space_group, output_dir, crawled_at
		FROM entries ORDER BY crawled_at DESC, collection_code DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var e Summary
		if err := rows.Scan(&e.CollectionCode, &e.ChemicalFormula, &e.SpaceGroup,
			&e.OutputDir, &e.CrawledAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of crawled entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
