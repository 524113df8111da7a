package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/icsd-tools/icsdcrawl/tags"
)

// StructureSource restricts a search to experimental structures, theoretical
// structures, or both. The Basic Search form defaults to experimental.
type StructureSource byte

const (
	SourceExperimental StructureSource = 'E'
	SourceTheoretical  StructureSource = 'T'
	SourceAll          StructureSource = 'A'
)

// ParseStructureSource accepts "E"/"T"/"A" in any case, or the spelled-out
// words ("experimental", "theory", ...). Anything unrecognized or empty
// falls back to SourceAll.
func ParseStructureSource(s string) StructureSource {
	if s == "" {
		return SourceAll
	}
	switch strings.ToUpper(s)[0] {
	case 'E':
		return SourceExperimental
	case 'T':
		return SourceTheoretical
	default:
		return SourceAll
	}
}

// Query is the search posted to the Basic Search & Retrieve form: a mapping
// of recognized field names to the string typed into the corresponding input.
//
// Recognized field names are the keys of tags.QueryTags:
// composition, number_of_elements, icsd_collection_code.
type Query map[string]string

// Validate rejects empty queries and unrecognized field names. Unrecognized
// keys are a caller error, not something to silently drop.
func (q Query) Validate() error {
	if len(q) == 0 {
		return NewCrawlError(ErrCodeInvalidQuery, "empty query", nil)
	}
	for name := range q {
		if _, ok := tags.QueryTags[name]; !ok {
			return NewCrawlError(
				ErrCodeInvalidQuery,
				fmt.Sprintf("unrecognized query field %q", name),
				nil,
			)
		}
	}
	return nil
}

// Fields returns the query's field names in a stable order, for logging.
func (q Query) Fields() []string {
	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
