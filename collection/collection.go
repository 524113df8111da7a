// Package collection enumerates the database's collection codes by paging
// through the List View of a code-range query and saving the results table
// as CSV. The batch crawler later feeds off those CSVs.
package collection

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/icsd-tools/icsdcrawl/extract"
	"github.com/icsd-tools/icsdcrawl/models"
)

// CollCodeColumn is the results-table column carrying the collection code.
const CollCodeColumn = "Coll. Code"

// resultTableIndex is the position of the results table on the List View
// page (the first table is the toolbar).
const resultTableIndex = 1

// rowsPerPage is the List View page size.
const rowsPerPage = 10

// CodesPerRange is how many collection codes one enumeration run covers.
const CodesPerRange = 10000

// session is the slice of the queryer the enumerator drives.
type session interface {
	Open(ctx context.Context) error
	SelectStructureSource(ctx context.Context, source models.StructureSource) error
	ShowDBInfo(ctx context.Context) error
	SubmitQuery(ctx context.Context, query models.Query) error
	Hits() int
	Snapshot(ctx context.Context) (string, error)
	NextPage(ctx context.Context) error
	Close()
}

// Enumerator pages a code range's List View into CSV files.
type Enumerator struct {
	q           session
	pageDir     string
	combinedDir string

	// stallPoll is how often a page is re-read while waiting for the
	// AJAX pager to actually swap the table content.
	stallPoll time.Duration

	prevMinCode int
}

// NewEnumerator prepares the output directories.
func NewEnumerator(q session, pageDir, combinedDir string) (*Enumerator, error) {
	for _, dir := range []string{pageDir, combinedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %q: %w", dir, err)
		}
	}
	return &Enumerator{
		q:           q,
		pageDir:     pageDir,
		combinedDir: combinedDir,
		stallPoll:   100 * time.Millisecond,
	}, nil
}

// Run enumerates the 10000-code range starting at firstCode: submits the
// range query over all structures, walks every List View page, writes one
// CSV per page plus a combined CSV for the range.
func (e *Enumerator) Run(ctx context.Context, firstCode int) error {
	defer e.q.Close()

	lastCode := firstCode + CodesPerRange - 1
	codeRange := fmt.Sprintf("%d-%d", firstCode, lastCode)

	if err := e.q.Open(ctx); err != nil {
		return err
	}
	if err := e.q.SelectStructureSource(ctx, models.SourceAll); err != nil {
		return err
	}
	// The collection code field sits inside the collapsed DB Info panel.
	if err := e.q.ShowDBInfo(ctx); err != nil {
		return err
	}
	query := models.Query{"icsd_collection_code": codeRange}
	if err := e.q.SubmitQuery(ctx, query); err != nil {
		return err
	}

	hits := e.q.Hits()
	pages := (hits + rowsPerPage - 1) / rowsPerPage
	slog.Info("enumerating code range", "range", codeRange, "hits", hits, "pages", pages)

	combined := extract.Table{}
	for page := 1; page <= pages; page++ {
		table, err := e.freshPage(ctx)
		if err != nil {
			return err
		}

		name := fmt.Sprintf("%s-p%dof%dps.csv", codeRange, page, pages)
		if err := writeCSV(filepath.Join(e.pageDir, name), table); err != nil {
			return err
		}

		if combined.Header == nil {
			combined.Header = table.Header
		}
		combined.Rows = append(combined.Rows, table.Rows...)

		if page != pages {
			if err := e.q.NextPage(ctx); err != nil {
				return err
			}
		}
	}

	out := filepath.Join(e.combinedDir, fmt.Sprintf("comb_%s.csv", codeRange))
	if err := writeCSV(out, combined); err != nil {
		return err
	}
	slog.Info("code range enumerated", "range", codeRange, "codes", len(combined.Rows), "file", out)
	return nil
}

// freshPage reads the results table, re-reading until its content differs
// from the previous page. The pager updates via AJAX with no navigation
// event, so a stale snapshot is indistinguishable from a loaded one except
// by its minimum collection code.
func (e *Enumerator) freshPage(ctx context.Context) (extract.Table, error) {
	for {
		rawHTML, err := e.q.Snapshot(ctx)
		if err != nil {
			return extract.Table{}, err
		}
		table, err := extract.NthTable(rawHTML, resultTableIndex)
		if err != nil {
			return extract.Table{}, models.NewCrawlError(
				models.ErrCodePageMismatch, "results table not found on the List View", err)
		}

		minCode, err := MinCollCode(table)
		if err != nil {
			return extract.Table{}, err
		}
		if minCode != e.prevMinCode {
			e.prevMinCode = minCode
			return table, nil
		}

		select {
		case <-ctx.Done():
			return extract.Table{}, models.CategorizeError(ctx.Err(), "waiting for a fresh result page")
		case <-time.After(e.stallPoll):
		}
	}
}

// MinCollCode returns the smallest collection code in the results table.
func MinCollCode(table extract.Table) (int, error) {
	col := table.Column(CollCodeColumn)
	if col < 0 {
		return 0, models.NewCrawlError(models.ErrCodePageMismatch,
			fmt.Sprintf("results table has no %q column", CollCodeColumn), nil)
	}
	min := 0
	for _, row := range table.Rows {
		if col >= len(row) {
			continue
		}
		code, err := strconv.Atoi(row[col])
		if err != nil {
			continue
		}
		if min == 0 || code < min {
			min = code
		}
	}
	if min == 0 {
		return 0, models.NewCrawlError(models.ErrCodePageMismatch,
			"results table carries no collection codes", nil)
	}
	return min, nil
}

// writeCSV writes the table as header + rows.
func writeCSV(path string, table extract.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(table.Header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(table.Rows); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
