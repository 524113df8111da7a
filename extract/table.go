package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table is a parsed HTML table: one header row plus data rows, all cells
// flattened to plain text.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named header column, or -1.
func (t Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Tables parses every <table> in the document. The header comes from the
// first row containing <th> cells; tables without one use their first row.
func Tables(rawHTML string) ([]Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var tables []Table
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		// Nested tables are picked up on their own pass.
		if tbl.ParentsFiltered("table").Length() > 0 {
			return
		}

		var t Table
		tbl.Find("tr").Each(func(_ int, row *goquery.Selection) {
			ths := row.ChildrenFiltered("th")
			if ths.Length() > 0 {
				if t.Header == nil {
					t.Header = cellTexts(ths)
				}
				return
			}
			cells := cellTexts(row.ChildrenFiltered("td"))
			if len(cells) == 0 {
				return
			}
			if t.Header == nil {
				t.Header = cells
				return
			}
			t.Rows = append(t.Rows, cells)
		})
		tables = append(tables, t)
	})
	return tables, nil
}

// NthTable returns the idx-th top-level table of the document.
func NthTable(rawHTML string, idx int) (Table, error) {
	tables, err := Tables(rawHTML)
	if err != nil {
		return Table{}, err
	}
	if idx < 0 || idx >= len(tables) {
		return Table{}, fmt.Errorf("table index %d out of range (%d tables)", idx, len(tables))
	}
	return tables[idx], nil
}

func cellTexts(cells *goquery.Selection) []string {
	texts := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		texts = append(texts, flatten(c.Text()))
	})
	return texts
}
