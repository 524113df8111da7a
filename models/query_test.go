package models

import (
	"errors"
	"testing"
)

func TestQueryValidate_Recognized(t *testing.T) {
	q := Query{
		"composition":        "Ni:2:2 Ti:1:1",
		"number_of_elements": "2",
	}
	if err := q.Validate(); err != nil {
		t.Errorf("valid query rejected: %v", err)
	}
}

func TestQueryValidate_Empty(t *testing.T) {
	err := Query{}.Validate()
	if err == nil {
		t.Fatal("empty query accepted")
	}
	var ce *CrawlError
	if !errors.As(err, &ce) || ce.Code != ErrCodeInvalidQuery {
		t.Errorf("error = %v, want code %s", err, ErrCodeInvalidQuery)
	}
}

func TestQueryValidate_UnrecognizedKey(t *testing.T) {
	err := Query{"sum_formula": "Al O F"}.Validate()
	if err == nil {
		t.Fatal("unrecognized key accepted")
	}
	var ce *CrawlError
	if !errors.As(err, &ce) || ce.Code != ErrCodeInvalidQuery {
		t.Errorf("error = %v, want code %s", err, ErrCodeInvalidQuery)
	}
}

func TestParseStructureSource(t *testing.T) {
	tests := []struct {
		in   string
		want StructureSource
	}{
		{"", SourceAll},
		{"E", SourceExperimental},
		{"experimental", SourceExperimental},
		{"t", SourceTheoretical},
		{"theory", SourceTheoretical},
		{"A", SourceAll},
		{"all", SourceAll},
		{"bogus", SourceAll},
	}
	for _, tt := range tests {
		if got := ParseStructureSource(tt.in); got != tt.want {
			t.Errorf("ParseStructureSource(%q) = %c, want %c", tt.in, got, tt.want)
		}
	}
}

func TestCrawlError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewCrawlError(ErrCodeNavigation, "navigation to target URL failed", cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	want := "NAVIGATION_FAILED: navigation to target URL failed: boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCategorizeError(t *testing.T) {
	err := CategorizeError(errors.New("net::ERR_CONNECTION_REFUSED"), "navigation failed")
	if err.Code != ErrCodeNavigation {
		t.Errorf("code = %s, want %s", err.Code, ErrCodeNavigation)
	}
}

func TestEntryCollectionCode(t *testing.T) {
	e := Entry{"collection_code": 18975}
	if e.CollectionCode() != 18975 {
		t.Errorf("CollectionCode() = %d, want 18975", e.CollectionCode())
	}
	if (Entry{}).CollectionCode() != 0 {
		t.Error("unanchored entry should report code 0")
	}
}
