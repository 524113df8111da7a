package queryer

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/time/rate"

	"github.com/icsd-tools/icsdcrawl/models"
)

// fakeSession scripts the search flow without a browser.
type fakeSession struct {
	hits   int
	loaded int
	codes  []int
	next   int
	parsed int
	paged  int
	closed bool
}

func (f *fakeSession) Open(context.Context) error { return nil }
func (f *fakeSession) SelectStructureSource(context.Context, models.StructureSource) error {
	return nil
}
func (f *fakeSession) SubmitQuery(context.Context, models.Query) error { return nil }
func (f *fakeSession) SelectAll(context.Context) error                 { return nil }
func (f *fakeSession) ShowDetailedView(context.Context) error          { return nil }
func (f *fakeSession) EntriesLoaded(context.Context) (int, error)      { return f.loaded, nil }
func (f *fakeSession) Hits() int                                       { return f.hits }
func (f *fakeSession) parseEntry(context.Context) (int, error) {
	code := f.codes[f.next]
	f.next++
	f.parsed++
	return code, nil
}
func (f *fakeSession) NextEntry(context.Context) error {
	f.paged++
	return nil
}
func (f *fakeSession) Close() { f.closed = true }

func noPacing() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 0)
}

func TestPerform_EntryCountMismatchAborts(t *testing.T) {
	fake := &fakeSession{hits: 3, loaded: 2, codes: []int{10, 11, 12}}

	query := models.Query{"composition": "Na Cl"}
	_, err := perform(context.Background(), fake, query, models.SourceAll, noPacing())

	var cerr *models.CrawlError
	if !errors.As(err, &cerr) || cerr.Code != models.ErrCodeHitsMismatch {
		t.Fatalf("perform = %v, want %s", err, models.ErrCodeHitsMismatch)
	}
	if fake.parsed != 0 {
		t.Errorf("parsed %d entries after the abort, want 0", fake.parsed)
	}
	if !fake.closed {
		t.Error("session not closed on the abort path")
	}
}

func TestPerform_SingleHitSkipsPager(t *testing.T) {
	fake := &fakeSession{hits: 1, loaded: 1, codes: []int{42}}

	query := models.Query{"icsd_collection_code": "42"}
	codes, err := perform(context.Background(), fake, query, models.SourceAll, noPacing())
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if len(codes) != 1 || codes[0] != 42 {
		t.Fatalf("codes = %v, want [42]", codes)
	}
	if fake.paged != 0 {
		t.Errorf("pager clicked %d times for a single hit, want 0", fake.paged)
	}
	if !fake.closed {
		t.Error("session not closed after the run")
	}
}

func TestPerform_WalksEveryEntry(t *testing.T) {
	fake := &fakeSession{hits: 3, loaded: 3, codes: []int{10, 11, 12}}

	query := models.Query{"icsd_collection_code": "10-12"}
	codes, err := perform(context.Background(), fake, query, models.SourceAll, noPacing())
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if len(codes) != 3 {
		t.Fatalf("codes = %v, want 3 entries", codes)
	}
	// The pager is not clicked after the last entry.
	if fake.paged != 2 {
		t.Errorf("pager clicked %d times for 3 entries, want 2", fake.paged)
	}
}
