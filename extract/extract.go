// Package extract turns a Detailed View HTML snapshot into an Entry record.
// It never talks to the browser: the session driver captures the rendered
// page once and everything here runs against that string, which keeps the
// locator logic testable without a live ICSD session.
package extract

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/icsd-tools/icsdcrawl/models"
	"github.com/icsd-tools/icsdcrawl/tags"
)

// Precompiled selectors for the hot paths.
var (
	titleSel    = cascadia.MustCompile(".title")
	tableRowSel = cascadia.MustCompile("table tbody tr")
)

// warningsBlockID anchors the Warnings & Comments panel.
const warningsBlockID = "ir_a_8_81a3e"

// Entry parses every known field of the current Detailed View page into an
// Entry record. Tags with no parser are reported in the second return value
// and logged, never fatal; a page whose collection code cannot be parsed is
// fatal because the code names the entry's output directory.
func Entry(rawHTML string) (models.Entry, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, nil, models.NewCrawlError(
			models.ErrCodeExtract, "failed to parse page HTML", err)
	}

	code, err := CollectionCode(doc)
	if err != nil {
		return nil, nil, err
	}

	entry := models.Entry{
		"collection_code": code,
		"crawler_version": models.CrawlerVersion,
	}

	var unparsed []string
	for name, tag := range tags.ParseTags {
		switch tag.Kind {
		case tags.KindCheckbox:
			entry[name] = checkboxEnabled(doc, tag.Marker)
		case tags.KindText:
			fn, ok := textParsers[name]
			if !ok {
				slog.Warn("parser not implemented", "tag", name)
				unparsed = append(unparsed, name)
				continue
			}
			entry[name] = fn(doc)
		default:
			slog.Warn("unknown extraction kind", "tag", name, "kind", tag.Kind)
			unparsed = append(unparsed, name)
		}
	}
	sort.Strings(unparsed)
	return entry, unparsed, nil
}

// textParsers maps text-field tags to their extraction functions. A tag in
// tags.ParseTags with no function here is skipped with a warning, mirroring
// how a site markup change degrades one field instead of killing the run.
var textParsers = map[string]func(*goquery.Document) any{
	"PDF_number":        func(d *goquery.Document) any { return PDFNumber(d) },
	"authors":           func(d *goquery.Document) any { return Authors(d) },
	"publication_title": func(d *goquery.Document) any { return textByID(d, "textfield13") },
	"reference":         func(d *goquery.Document) any { return textByID(d, "textfield12") },
	"doi":               func(d *goquery.Document) any { return DOI(d) },

	"chemical_formula":   func(d *goquery.Document) any { return valueByID(d, "textfieldChem1") },
	"structural_formula": func(d *goquery.Document) any { return textByID(d, "textfieldChem3") },
	"AB_formula":         func(d *goquery.Document) any { return valueByID(d, "textfieldChem6") },

	"cell_parameters": func(d *goquery.Document) any {
		cp, err := CellParameters(d)
		if err != nil {
			slog.Warn("cell parameters unreadable", "error", err)
			return nil
		}
		return cp
	},
	"volume": func(d *goquery.Document) any {
		v, err := strconv.ParseFloat(valueByID(d, "textfieldPub2"), 64)
		if err != nil {
			return nil
		}
		return v
	},
	"formula_units_per_cell": func(d *goquery.Document) any {
		n, err := strconv.Atoi(valueByID(d, "textfieldPub3"))
		if err != nil {
			return nil
		}
		return n
	},
	"space_group":          func(d *goquery.Document) any { return valueByID(d, "textfieldPub5") },
	"pearson":              func(d *goquery.Document) any { return valueByID(d, "textfieldPub6") },
	"crystal_system":       func(d *goquery.Document) any { return valueByID(d, "textfieldPub8") },
	"crystal_class":        func(d *goquery.Document) any { return valueByID(d, "textfieldPub9") },
	"wyckoff_sequence":     func(d *goquery.Document) any { return valueByID(d, "textfieldPub11") },
	"structural_prototype": func(d *goquery.Document) any { return valueByID(d, "textfieldPub12") },

	"reference_1": func(d *goquery.Document) any { return Reference(d, 0) },
	"reference_2": func(d *goquery.Document) any { return Reference(d, 1) },
	"reference_3": func(d *goquery.Document) any { return Reference(d, 2) },

	"warnings": func(d *goquery.Document) any { return Warnings(d) },
	"comments": func(d *goquery.Document) any { return Comments(d) },

	"temperature": func(d *goquery.Document) any { return experimentalInput(d, "Temperature", 0) },
	"pressure":    func(d *goquery.Document) any { return experimentalInput(d, "Pressure", 1) },
	"R_value": func(d *goquery.Document) any {
		v, ok := RValue(d)
		if !ok {
			return nil
		}
		return v
	},

	"ICSD_version": func(d *goquery.Document) any { return ICSDVersion(d) },
}

// CollectionCode parses the entry's numeric identifier from the Summary
// title ("Summary - ICSD 18975": last whitespace token).
func CollectionCode(doc *goquery.Document) (int, error) {
	var code int
	var found bool
	doc.FindMatcher(titleSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if !strings.Contains(text, "Summary") {
			return true
		}
		fields := strings.Fields(text)
		n, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil {
			return true
		}
		code, found = n, true
		return false
	})
	if !found {
		return 0, models.NewCrawlError(
			models.ErrCodeExtract, "failed to parse the ICSD Collection Code", nil)
	}
	return code, nil
}

// valueByID reads the value attribute of the element with the given id.
// JSF ids contain colons, so the lookup goes through an attribute selector
// rather than a #id one.
func valueByID(doc *goquery.Document, id string) string {
	v, _ := doc.Find(fmt.Sprintf("[id=%q]", id)).Attr("value")
	return strings.TrimSpace(v)
}

// textByID reads the element text, newlines flattened to spaces.
func textByID(doc *goquery.Document, id string) string {
	return flatten(doc.Find(fmt.Sprintf("[id=%q]", id)).Text())
}

// PDFNumber reads the Summary panel's PDF number cell. The cell sits right
// above the R-value row; when the field is empty the locator lands on the
// neighbor, so a cell reading "R-value" means no PDF number.
func PDFNumber(doc *goquery.Document) string {
	nodes := markerRowCells(doc, "PDF Number").Find("div")
	if nodes.Length() == 0 {
		return ""
	}
	text := strings.TrimSpace(nodes.First().Text())
	if strings.HasPrefix(text, "R-value") {
		return ""
	}
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line)
}

// Authors reads the author list from the cell next to the "Authors" label.
func Authors(doc *goquery.Document) string {
	cells := markerRowCells(doc, "Authors")
	if cells.Length() < 2 {
		return ""
	}
	return flatten(cells.Eq(1).Text())
}

// DOI reads the publication DOI from the Summary panel; entries predating
// DOI registration have an empty cell.
func DOI(doc *goquery.Document) string {
	nodes := markerRowCells(doc, "DOI").Find("div")
	if nodes.Length() == 0 {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(nodes.First().Text()), "\n")
	return strings.TrimSpace(line)
}

// Reference reads the n-th of the up-to-three bibliography references.
// Missing references come back as "" (later ICSD releases dropped the
// secondary references for most entries).
func Reference(doc *goquery.Document, n int) string {
	nodes := markerRowCells(doc, "Reference").Find("div")
	if n >= nodes.Length() {
		return ""
	}
	return cleanReference(nodes.Eq(n).Text())
}

// cleanReference strips the institutional proxy banner the library login
// injects into reference cells.
func cleanReference(r string) string {
	r = strings.ReplaceAll(r, "Northwestern University Library", "")
	return flatten(r)
}

// Warnings collects the non-empty rows of the Warnings table.
func Warnings(doc *goquery.Document) []string {
	warnings := []string{}
	block := doc.Find(fmt.Sprintf("[id=%q]", warningsBlockID))
	block.FindMatcher(tableRowSel).Each(func(_ int, s *goquery.Selection) {
		if text := flatten(s.Text()); text != "" {
			warnings = append(warnings, text)
		}
	})
	return warnings
}

// Comments collects the comment divs of the Warnings & Comments panel.
func Comments(doc *goquery.Document) []string {
	comments := []string{}
	block := doc.Find(fmt.Sprintf("[id=%q]", warningsBlockID))
	marker := block.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(ownText(s), "Comments")
	}).First()
	if marker.Length() == 0 {
		return comments
	}
	marker.Parent().Parent().
		ChildrenFiltered("div").
		ChildrenFiltered("div").
		ChildrenFiltered("div").
		Each(func(_ int, s *goquery.Selection) {
			if text := flatten(s.Text()); text != "" {
				comments = append(comments, text)
			}
		})
	return comments
}

// experimentalInput reads the idx-th input of the Experimental Conditions
// row labelled by marker. Temperature and pressure share one row; the
// temperature box comes first.
func experimentalInput(doc *goquery.Document, marker string, idx int) string {
	div := doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(ownText(s), marker)
	}).First()
	if div.Length() == 0 {
		return ""
	}
	inputs := div.Parent().Parent().ChildrenFiltered("td").ChildrenFiltered("input")
	if idx >= inputs.Length() {
		return ""
	}
	v, _ := inputs.Eq(idx).Attr("value")
	return strings.TrimSpace(v)
}

// RValue reads the refinement R-value. The second return value is false
// when the field is empty; an empty R-value is null in the record, not "".
func RValue(doc *goquery.Document) (float64, bool) {
	td := doc.Find("td").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(ownText(s), "R-value")
	}).First()
	if td.Length() == 0 {
		return 0, false
	}
	input := td.Parent().ChildrenFiltered("td").ChildrenFiltered(`input[type="text"]`).First()
	raw, _ := input.Attr("value")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	numeric, _, _ := strings.Cut(raw, "(")
	v, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CellParameters parses the six lattice constants from the Published
// Crystal Structure panel. Quantities carry uncertainties in parentheses
// ("5.406(2)") which are stripped before conversion.
func CellParameters(doc *goquery.Document) (*models.CellParameters, error) {
	raw := valueByID(doc, "textfieldPub1")
	fields := strings.Fields(raw)
	if len(fields) != 6 {
		return nil, fmt.Errorf("cell parameters %q: want 6 quantities, got %d", raw, len(fields))
	}
	vals := make([]float64, 6)
	for i, f := range fields {
		numeric, _, _ := strings.Cut(f, "(")
		numeric = strings.Trim(numeric, ".")
		v, err := strconv.ParseFloat(numeric, 64)
		if err != nil {
			return nil, fmt.Errorf("cell parameter %q: %w", f, err)
		}
		vals[i] = v
	}
	return &models.CellParameters{
		A: vals[0], B: vals[1], C: vals[2],
		Alpha: vals[3], Beta: vals[4], Gamma: vals[5],
	}, nil
}

// ICSDVersion reads the release banner ("ICSD Version 4.5.0 ...") so each
// record carries the database generation it was scraped from.
func ICSDVersion(doc *goquery.Document) string {
	var version string
	doc.Find("div, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := ownText(s)
		if strings.Contains(text, "Version") {
			version = flatten(text)
			return false
		}
		return true
	})
	return version
}

// checkboxEnabled reports whether the checkbox next to the element carrying
// the marker text is checked. In the rendered DOM a checked box carries the
// checked attribute; an unchecked one omits it.
func checkboxEnabled(doc *goquery.Document, marker string) bool {
	label := doc.Find("td, label, span, div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(ownText(s), marker)
	}).First()
	if label.Length() == 0 {
		return false
	}
	box := label.Parent().ChildrenFiltered(`input[type="checkbox"]`).First()
	if box.Length() == 0 {
		return false
	}
	_, checked := box.Attr("checked")
	return checked
}

// markerRowCells finds the td carrying the marker text and returns its
// sibling cells (the row the label belongs to).
func markerRowCells(doc *goquery.Document, marker string) *goquery.Selection {
	td := doc.Find("td").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(ownText(s), marker)
	}).First()
	if td.Length() == 0 {
		return td
	}
	return td.Parent().ChildrenFiltered("td")
}

// ownText returns only the selection's direct text nodes, excluding
// descendants. Marker matching must not see nested element text, or a
// panel container would match every label inside it.
func ownText(s *goquery.Selection) string {
	var sb strings.Builder
	for _, node := range s.Nodes {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
	}
	return sb.String()
}

// flatten trims a scraped string and collapses newlines into spaces.
func flatten(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}
