// Package crawler runs unattended bulk retrieval: it plans contiguous
// collection-code ranges from the enumerated CSVs, skips what earlier runs
// already fetched, and retries with a long backoff when the site misbehaves.
package crawler

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/icsd-tools/icsdcrawl/collection"
	"github.com/icsd-tools/icsdcrawl/models"
	"github.com/icsd-tools/icsdcrawl/store"
)

// FetchFunc runs one range query end to end. The crawler opens a fresh
// browser session per batch, so the function is a factory call, not a
// long-lived session.
type FetchFunc func(ctx context.Context, query models.Query) error

// ErrNoCodes is returned when Refresh finds no enumerated codes to plan from.
var ErrNoCodes = models.NewCrawlError(models.ErrCodeInternal,
	"no enumerated collection codes; run the enumerator first", nil)

// Crawler plans and executes batch retrieval.
type Crawler struct {
	combinedDir string
	outputRoot  string
	batchSize   int
	backoff     time.Duration

	fetch FetchFunc
	index *store.Store // optional

	// mu guards the code sets; Refresh rebuilds them while a status
	// reader may be looking.
	mu      sync.RWMutex
	all     []int
	crawled []int
	notYet  []int
}

// New assembles a crawler. index may be nil.
func New(combinedDir, outputRoot string, batchSize int, backoff time.Duration, fetch FetchFunc, index *store.Store) *Crawler {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Crawler{
		combinedDir: combinedDir,
		outputRoot:  outputRoot,
		batchSize:   batchSize,
		backoff:     backoff,
		fetch:       fetch,
		index:       index,
	}
}

// Refresh rebuilds the all/crawled/not-yet code sets from the enumerated
// CSVs, the output tree, and the progress index.
func (c *Crawler) Refresh(ctx context.Context) error {
	all, err := readCombinedCodes(c.combinedDir)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return ErrNoCodes
	}

	crawledSet := scanOutputTree(c.outputRoot)
	if c.index != nil {
		codes, err := c.index.Codes(ctx)
		if err != nil {
			slog.Warn("progress index unreadable, using output tree only", "error", err)
		}
		for _, code := range codes {
			crawledSet[code] = struct{}{}
		}
	}

	crawled := make([]int, 0, len(crawledSet))
	for code := range crawledSet {
		crawled = append(crawled, code)
	}
	sort.Ints(crawled)

	notYet := make([]int, 0, len(all))
	for _, code := range all {
		if _, ok := crawledSet[code]; !ok {
			notYet = append(notYet, code)
		}
	}

	c.mu.Lock()
	c.all, c.crawled, c.notYet = all, crawled, notYet
	c.mu.Unlock()

	slog.Info("crawl state refreshed",
		"known", len(all), "crawled", len(crawled), "remaining", len(notYet))
	return nil
}

// Remaining reports how many enumerated codes are still uncrawled.
func (c *Crawler) Remaining() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.notYet)
}

// CodeRange plans the next contiguous range to fetch: it starts at the
// first uncrawled code, spans at most batchSize known codes, and stops
// just short of the first already-crawled code inside that window so a
// range never re-downloads finished entries.
func (c *Crawler) CodeRange() (start, end int, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.notYet) == 0 {
		return 0, 0, ErrNoCodes
	}
	start = c.notYet[0]

	idx := sort.SearchInts(c.all, start)
	last := idx + c.batchSize - 1
	if last >= len(c.all) {
		last = len(c.all) - 1
	}
	end = c.all[last]

	for _, code := range c.crawled {
		if start <= code && code <= end {
			end = code - 1
			break
		}
	}
	return start, end, nil
}

// maxStalledBatches bounds how often a batch may complete without
// reducing the remaining set before the run aborts. Enumerated codes the
// site never serves would otherwise re-plan the same range forever.
const maxStalledBatches = 3

// Run crawls until every enumerated code has been fetched or the context
// is canceled. A failed batch logs and backs off instead of aborting: bulk
// runs span days and the site drops sessions routinely.
func (c *Crawler) Run(ctx context.Context) error {
	slog.Info("batch crawl starting")

	// Remaining count before the last successful batch; -1 after an error.
	prev := -1
	stalls := 0
	for {
		if err := ctx.Err(); err != nil {
			return models.CategorizeError(err, "batch crawl interrupted")
		}
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		remaining := c.Remaining()
		if remaining == 0 {
			slog.Info("batch crawl complete")
			return nil
		}

		if prev >= 0 && remaining >= prev {
			stalls++
			if stalls >= maxStalledBatches {
				return models.NewCrawlError(models.ErrCodeInternal,
					fmt.Sprintf("%d batches finished without progress, %d codes unreachable", stalls, remaining), nil)
			}
			slog.Warn("batch made no progress, backing off",
				"remaining", remaining, "backoff", c.backoff)
			if err := c.pause(ctx); err != nil {
				return err
			}
		} else {
			stalls = 0
		}

		start, end, err := c.CodeRange()
		if err != nil {
			return err
		}

		query := models.Query{"icsd_collection_code": fmt.Sprintf("%d-%d", start, end)}
		slog.Info("fetching code range", "start", start, "end", end)
		if err := c.fetch(ctx, query); err != nil {
			slog.Error("range fetch failed, backing off",
				"start", start, "end", end,
				"backoff", c.backoff, "error", err)
			prev = -1
			if err := c.pause(ctx); err != nil {
				return err
			}
			continue
		}
		prev = remaining
	}
}

// pause waits out the backoff unless the context ends first.
func (c *Crawler) pause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return models.CategorizeError(ctx.Err(), "batch crawl interrupted")
	case <-time.After(c.backoff):
		return nil
	}
}

// readCombinedCodes loads every combined CSV and returns the sorted,
// validated list of known collection codes. A duplicated code means two
// enumeration ranges overlapped, which poisons range planning.
func readCombinedCodes(combinedDir string) ([]int, error) {
	paths, err := filepath.Glob(filepath.Join(combinedDir, "*.csv"))
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string)
	var all []int
	for _, path := range paths {
		codes, err := readCodesCSV(path)
		if err != nil {
			return nil, err
		}
		for _, code := range codes {
			if prev, dup := seen[code]; dup {
				return nil, models.NewCrawlError(models.ErrCodeInternal,
					fmt.Sprintf("collection code %d appears in both %s and %s", code, prev, path), nil)
			}
			seen[code] = path
			all = append(all, code)
		}
	}
	sort.Ints(all)
	return all, nil
}

// readCodesCSV pulls the Coll. Code column out of one enumerator CSV.
func readCodesCSV(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := -1
	for i, h := range records[0] {
		if h == collection.CollCodeColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%q has no %q column", path, collection.CollCodeColumn)
	}

	codes := make([]int, 0, len(records)-1)
	for _, row := range records[1:] {
		if col >= len(row) {
			continue
		}
		code, err := strconv.Atoi(row[col])
		if err != nil {
			continue
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// scanOutputTree finds entry directories from earlier runs: directories
// named by a collection code that contain meta_data.json.
func scanOutputTree(root string) map[int]struct{} {
	crawled := make(map[int]struct{})
	entries, err := os.ReadDir(root)
	if err != nil {
		return crawled
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		code, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), "meta_data.json")); err == nil {
			crawled[code] = struct{}{}
		}
	}
	return crawled
}
