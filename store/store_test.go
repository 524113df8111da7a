package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/icsd-tools/icsdcrawl/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndHas(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry := models.Entry{
		"collection_code":  18975,
		"chemical_formula": "Li1 Ta1 O3",
		"space_group":      "R 3 c H",
	}
	if err := s.Record(ctx, entry, "out/18975"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	ok, err := s.Has(ctx, 18975)
	if err != nil || !ok {
		t.Errorf("Has(18975) = %v, %v; want true", ok, err)
	}
	ok, err = s.Has(ctx, 99999)
	if err != nil || ok {
		t.Errorf("Has(99999) = %v, %v; want false", ok, err)
	}
}

func TestRecord_UpsertOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := models.Entry{"collection_code": 42, "chemical_formula": "Na Cl"}
	if err := s.Record(ctx, first, "out/42"); err != nil {
		t.Fatal(err)
	}
	second := models.Entry{"collection_code": 42, "chemical_formula": "Na1 Cl1"}
	if err := s.Record(ctx, second, "out2/42"); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("want 1 row after re-crawl, got %d", len(list))
	}
	if list[0].ChemicalFormula != "Na1 Cl1" || list[0].OutputDir != "out2/42" {
		t.Errorf("re-crawl did not overwrite: %+v", list[0])
	}
}

func TestRecord_NoCode(t *testing.T) {
	s := openTestStore(t)
	if err := s.Record(context.Background(), models.Entry{}, "out"); err == nil {
		t.Error("entry without collection code accepted")
	}
}

func TestCodesSorted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, code := range []int{250, 1, 108} {
		entry := models.Entry{"collection_code": code}
		if err := s.Record(ctx, entry, ""); err != nil {
			t.Fatal(err)
		}
	}

	codes, err := s.Codes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(codes, []int{1, 108, 250}) {
		t.Errorf("Codes = %v, want ascending", codes)
	}

	n, err := s.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v; want 3", n, err)
	}
}
