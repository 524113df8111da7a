package queryer

import (
	"fmt"
	"strconv"
	"strings"
)

// hitsFromListView parses the hit count out of the List View title, e.g.
// "Manage Hitlist : List View of search results 42 entries found". The
// count is the 7th whitespace token; the title must name the List View at
// all, otherwise the results page never loaded.
func hitsFromListView(title string) (int, error) {
	if !strings.Contains(title, "List View") {
		return 0, fmt.Errorf("title %q does not name the List View", title)
	}
	fields := strings.Fields(title)
	if len(fields) < 7 {
		return 0, fmt.Errorf("title %q too short to carry a hit count", title)
	}
	hits, err := strconv.Atoi(fields[6])
	if err != nil {
		return 0, fmt.Errorf("hit count token %q: %w", fields[6], err)
	}
	return hits, nil
}

// entriesFromDetailedView parses the loaded-entry count from the Detailed
// View title, e.g. "Detailed View on 2 entries of 2": the last token.
func entriesFromDetailedView(title string) (int, error) {
	if !strings.Contains(title, "Detailed View") {
		return 0, fmt.Errorf("title %q does not name the Detailed View", title)
	}
	fields := strings.Fields(title)
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, fmt.Errorf("entry count token %q: %w", fields[len(fields)-1], err)
	}
	return n, nil
}

// cifFilename is the name the site gives an exported CIF.
func cifFilename(code int) string {
	return fmt.Sprintf("%s_%d.cif", cifBaseFilename, code)
}
