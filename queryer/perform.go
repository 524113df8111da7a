package queryer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/icsd-tools/icsdcrawl/extract"
	"github.com/icsd-tools/icsdcrawl/models"
)

// session is the slice of the driver the search orchestration runs on.
// The seam keeps the entry walk testable without a browser.
type session interface {
	Open(ctx context.Context) error
	SelectStructureSource(ctx context.Context, source models.StructureSource) error
	SubmitQuery(ctx context.Context, query models.Query) error
	SelectAll(ctx context.Context) error
	ShowDetailedView(ctx context.Context) error
	EntriesLoaded(ctx context.Context) (int, error)
	Hits() int
	parseEntry(ctx context.Context) (int, error)
	NextEntry(ctx context.Context) error
	Close()
}

// PerformQuery runs one complete search session end to end and returns the
// collection codes of the entries exported.
func (q *Queryer) PerformQuery(ctx context.Context, query models.Query, source models.StructureSource) ([]int, error) {
	return perform(ctx, q, query, source, q.limiter)
}

// perform drives the search flow: open the search form, pick the structure
// source, submit the query, select all hits, switch to the expanded
// Detailed View, verify the entry count matches the hit count, then walk
// the entries one by one. The session is closed on every exit path.
func perform(ctx context.Context, s session, query models.Query, source models.StructureSource, limiter *rate.Limiter) ([]int, error) {
	defer s.Close()

	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	if err := s.SelectStructureSource(ctx, source); err != nil {
		return nil, err
	}
	if err := s.SubmitQuery(ctx, query); err != nil {
		return nil, err
	}
	if err := s.SelectAll(ctx); err != nil {
		return nil, err
	}
	if err := s.ShowDetailedView(ctx); err != nil {
		return nil, err
	}

	loaded, err := s.EntriesLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if loaded != s.Hits() {
		return nil, models.NewCrawlError(models.ErrCodeHitsMismatch,
			fmt.Sprintf("Detailed View loaded %d entries for %d hits", loaded, s.Hits()), nil)
	}

	return walkEntries(ctx, s, limiter)
}

// walkEntries visits every loaded entry of the Detailed View: snapshot,
// extract, persist, export the CIF, advance.
func walkEntries(ctx context.Context, s session, limiter *rate.Limiter) ([]int, error) {
	hits := s.Hits()
	slog.Info("parsing entries", "count", hits)

	codes := make([]int, 0, hits)
	for i := 0; i < hits; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return codes, models.CategorizeError(err, "entry pacing interrupted")
		}

		code, err := s.parseEntry(ctx)
		if err != nil {
			return codes, err
		}
		codes = append(codes, code)
		slog.Info("entry exported",
			"progress", fmt.Sprintf("%d/%d", i+1, hits),
			"collectionCode", code,
		)

		// A single hit has no pager.
		if hits != 1 && i != hits-1 {
			if err := s.NextEntry(ctx); err != nil {
				return codes, err
			}
		}
	}

	slog.Info("all entries parsed", "count", len(codes))
	return codes, nil
}

// parseEntry scrapes, persists, and exports the entry currently shown.
func (q *Queryer) parseEntry(ctx context.Context) (int, error) {
	rawHTML, err := q.Snapshot(ctx)
	if err != nil {
		return 0, err
	}

	entry, unparsed, err := extract.Entry(rawHTML)
	if err != nil {
		return 0, err
	}
	if len(unparsed) > 0 {
		slog.Warn("fields skipped", "tags", unparsed)
	}
	code := entry.CollectionCode()

	dir, err := q.writer.WriteEntry(entry)
	if err != nil {
		return 0, err
	}

	if q.cfg.SaveScreenshot {
		png, err := q.Screenshot(ctx)
		if err != nil {
			slog.Warn("screenshot failed", "collectionCode", code, "error", err)
		} else if err := q.writer.WriteScreenshot(code, png); err != nil {
			slog.Warn("screenshot not written", "collectionCode", code, "error", err)
		}
	}

	if err := q.ExportCIF(ctx); err != nil {
		return 0, err
	}
	src, err := q.AwaitDownload(ctx, code)
	if err != nil {
		return 0, err
	}
	if err := q.writer.MoveCIF(src, code); err != nil {
		return 0, err
	}

	if q.index != nil {
		if err := q.index.Record(ctx, entry, dir); err != nil {
			slog.Warn("progress index not updated", "collectionCode", code, "error", err)
		}
	}
	return code, nil
}
