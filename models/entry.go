package models

import "encoding/json"

// CrawlerVersion is stamped into every meta_data.json so a corpus can be
// traced back to the scraper generation that produced it.
const CrawlerVersion = "2.0.0"

// CellParameters are the six lattice constants of the published structure.
// Lengths are in Angstrom, angles in degrees.
type CellParameters struct {
	A     float64 `json:"a"`
	B     float64 `json:"b"`
	C     float64 `json:"c"`
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// Entry is one database record scraped from the Detailed View: a mapping
// from field name to a scalar, a list, or a nested mapping (cell_parameters).
// It is built incrementally, one field per parse tag.
type Entry map[string]any

// CollectionCode returns the entry's numeric identifier, or 0 when the
// entry has not been anchored yet.
func (e Entry) CollectionCode() int {
	code, _ := e["collection_code"].(int)
	return code
}

// MarshalIndented renders the entry the way meta_data.json is written:
// two-space indent, keys sorted.
func (e Entry) MarshalIndented() ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}
