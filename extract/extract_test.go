package extract

import (
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/icsd-tools/icsdcrawl/models"
	"github.com/icsd-tools/icsdcrawl/tags"
)

// detailedView mimics the 2019 Detailed View markup closely enough to
// exercise every locator: id-addressed textfields, label/value table rows,
// the Warnings & Comments block, and the checkbox panels.
const detailedView = `<!DOCTYPE html>
<html><body>
<div class="title">Detailed View on 1 entries, entry 1 of 1</div>
<div class="title">Summary for 18975</div>

<table><tbody>
  <tr><td>PDF Number:</td><td><div>01-073-1234
additional line</div></td></tr>
  <tr><td>Authors:</td><td>Abrahams, S.C.;
Bernstein, J.L.</td></tr>
  <tr><td>DOI:</td><td><div>10.1107/S0567740869003night</div></td></tr>
</tbody></table>

<div id="textfield13">Crystal structure of lithium
tantalate</div>
<div id="textfield12">Journal of Physics and Chemistry of Solids (1967) 28, p1685-p1692</div>

<input id="textfieldChem1" value="Li1 Ta1 O3" />
<div id="textfieldChem3">Li (Ta O3)</div>
<input id="textfieldChem6" value="ABX3" />

<input id="textfieldPub1" value="5.154(2) 5.154(2) 13.781(4) 90. 90. 120." />
<input id="textfieldPub2" value="317.02" />
<input id="textfieldPub3" value="6" />
<input id="textfieldPub5" value="R 3 c H" />
<input id="textfieldPub6" value="hR30" />
<input id="textfieldPub8" value="trigonal" />
<input id="textfieldPub9" value="3m" />
<input id="textfieldPub11" value="b2 a" />
<input id="textfieldPub12" value="LiNbO3" />

<table><tbody>
  <tr><td>Reference 1-3:</td><td>
    <div>Journal of Physics and Chemistry of Solids (1967) 28, p1685-p1692
Northwestern University Library</div>
    <div>Acta Crystallographica B (1982) 38, p1x</div>
    <div></div>
  </td></tr>
</tbody></table>

<div id="ir_a_8_81a3e">
  <table><tbody>
    <tr><td>Stated temperature of measurement was 297 K</td></tr>
    <tr><td></td></tr>
  </tbody></table>
  <div>
    <div><div>Comments</div></div>
    <div><div><div>Structure refined from neutron data</div></div></div>
    <div><div><div>Cell from preceding paper</div></div></div>
  </div>
</div>

<table><tbody>
  <tr>
    <td><div>Temperature [K]</div></td><td><input value="293" /></td>
    <td><div>Pressure [MPa]</div></td><td><input value="0.101" /></td>
  </tr>
  <tr><td>R-value</td><td><input type="text" value="0.029(3)" /></td></tr>
</tbody></table>

<table><tbody><tr>
  <td><label>X-ray</label><input type="checkbox" checked="checked" /></td>
  <td><label>Electrons</label><input type="checkbox" /></td>
  <td><label>Neutrons</label><input type="checkbox" checked="checked" /></td>
  <td><label>Synchrotron</label><input type="checkbox" /></td>
  <td><label>Powder</label><input type="checkbox" /></td>
  <td><label>Single-Crystal</label><input type="checkbox" checked="checked" /></td>
  <td><label>Twinned Crystal Data</label><input type="checkbox" /></td>
  <td><label>Rietveld Refinement employed</label><input type="checkbox" /></td>
  <td><label>Absolute Configuration Determined</label><input type="checkbox" /></td>
  <td><label>Experimental PDF Number assigned</label><input type="checkbox" checked="checked" /></td>
  <td><label>Temperature Factors available</label><input type="checkbox" checked="checked" /></td>
  <td><label>Magnetic Structure Available</label><input type="checkbox" /></td>
  <td><label>Anharmonic temperature factors given</label><input type="checkbox" /></td>
  <td><label>Calculated PDF Number assigned</label><input type="checkbox" /></td>
  <td><label>NMR Data available</label><input type="checkbox" /></td>
  <td><label>Correction of Earlier Work</label><input type="checkbox" /></td>
  <td><label>Cell Constants without s.d.</label><input type="checkbox" /></td>
  <td><label>Only Cell and Structure Type Determined</label><input type="checkbox" /></td>
  <td><label>Polytype Structure</label><input type="checkbox" /></td>
  <td><label>Prototype Structure Type</label><input type="checkbox" checked="checked" /></td>
  <td><label>Order/Disorder Structure</label><input type="checkbox" /></td>
  <td><label>Modulated Structure</label><input type="checkbox" /></td>
  <td><label>Disordered Structure</label><input type="checkbox" /></td>
  <td><label>Mineral</label><input type="checkbox" /></td>
  <td><label>Structure Prototype</label><input type="checkbox" /></td>
  <td><label>Theoretical Calculation</label><input type="checkbox" /></td>
</tr></tbody></table>

<div>ICSD Version 4.2.0 (Release 2019.2)</div>
</body></html>`

func mustDoc(t *testing.T, rawHTML string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestCollectionCode(t *testing.T) {
	code, err := CollectionCode(mustDoc(t, detailedView))
	if err != nil {
		t.Fatalf("CollectionCode: %v", err)
	}
	if code != 18975 {
		t.Errorf("code = %d, want 18975", code)
	}
}

func TestCollectionCode_Missing(t *testing.T) {
	_, err := CollectionCode(mustDoc(t, `<div class="title">List View</div>`))
	if err == nil {
		t.Fatal("expected error when no Summary title is present")
	}
}

func TestTextFields(t *testing.T) {
	doc := mustDoc(t, detailedView)

	tests := []struct {
		name, want string
		got        string
	}{
		{"chemical_formula", "Li1 Ta1 O3", valueByID(doc, "textfieldChem1")},
		{"structural_formula", "Li (Ta O3)", textByID(doc, "textfieldChem3")},
		{"AB_formula", "ABX3", valueByID(doc, "textfieldChem6")},
		{"space_group", "R 3 c H", valueByID(doc, "textfieldPub5")},
		{"pearson", "hR30", valueByID(doc, "textfieldPub6")},
		{"crystal_system", "trigonal", valueByID(doc, "textfieldPub8")},
		{"crystal_class", "3m", valueByID(doc, "textfieldPub9")},
		{"wyckoff_sequence", "b2 a", valueByID(doc, "textfieldPub11")},
		{"structural_prototype", "LiNbO3", valueByID(doc, "textfieldPub12")},
		{"publication_title", "Crystal structure of lithium tantalate", textByID(doc, "textfield13")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestCellParameters(t *testing.T) {
	cp, err := CellParameters(mustDoc(t, detailedView))
	if err != nil {
		t.Fatalf("CellParameters: %v", err)
	}
	want := &models.CellParameters{A: 5.154, B: 5.154, C: 13.781, Alpha: 90, Beta: 90, Gamma: 120}
	if !reflect.DeepEqual(cp, want) {
		t.Errorf("cell parameters = %+v, want %+v", cp, want)
	}
}

func TestCellParameters_Malformed(t *testing.T) {
	doc := mustDoc(t, `<input id="textfieldPub1" value="5.1 5.1 13.7 90." />`)
	if _, err := CellParameters(doc); err == nil {
		t.Error("expected error for 4 quantities")
	}
}

func TestPDFNumber(t *testing.T) {
	got := PDFNumber(mustDoc(t, detailedView))
	if got != "01-073-1234" {
		t.Errorf("PDFNumber = %q, want 01-073-1234", got)
	}
}

func TestPDFNumber_EmptyFieldLandsOnRValueRow(t *testing.T) {
	doc := mustDoc(t, `<table><tbody>
		<tr><td>PDF Number:</td><td><div>R-value 0.032</div></td></tr>
	</tbody></table>`)
	if got := PDFNumber(doc); got != "" {
		t.Errorf("PDFNumber = %q, want empty for the R-value neighbor cell", got)
	}
}

func TestAuthors(t *testing.T) {
	got := Authors(mustDoc(t, detailedView))
	if got != "Abrahams, S.C.; Bernstein, J.L." {
		t.Errorf("Authors = %q", got)
	}
}

func TestDOI(t *testing.T) {
	got := DOI(mustDoc(t, detailedView))
	if got != "10.1107/S0567740869003night" {
		t.Errorf("DOI = %q", got)
	}
}

func TestReferences(t *testing.T) {
	doc := mustDoc(t, detailedView)

	if got := Reference(doc, 0); got != "Journal of Physics and Chemistry of Solids (1967) 28, p1685-p1692" {
		t.Errorf("reference_1 = %q (library banner not stripped?)", got)
	}
	if got := Reference(doc, 1); got != "Acta Crystallographica B (1982) 38, p1x" {
		t.Errorf("reference_2 = %q", got)
	}
	if got := Reference(doc, 2); got != "" {
		t.Errorf("reference_3 = %q, want empty", got)
	}
	// Index past the available reference cells is empty, not a panic.
	if got := Reference(doc, 7); got != "" {
		t.Errorf("reference_8 = %q, want empty", got)
	}
}

func TestWarningsAndComments(t *testing.T) {
	doc := mustDoc(t, detailedView)

	warnings := Warnings(doc)
	if !reflect.DeepEqual(warnings, []string{"Stated temperature of measurement was 297 K"}) {
		t.Errorf("warnings = %#v", warnings)
	}

	comments := Comments(doc)
	want := []string{"Structure refined from neutron data", "Cell from preceding paper"}
	if !reflect.DeepEqual(comments, want) {
		t.Errorf("comments = %#v, want %#v", comments, want)
	}
}

func TestWarnings_EmptyBlock(t *testing.T) {
	doc := mustDoc(t, `<div id="ir_a_8_81a3e"></div>`)
	if got := Warnings(doc); len(got) != 0 {
		t.Errorf("warnings = %#v, want empty", got)
	}
	if got := Comments(doc); len(got) != 0 {
		t.Errorf("comments = %#v, want empty", got)
	}
}

func TestExperimentalConditions(t *testing.T) {
	doc := mustDoc(t, detailedView)

	if got := experimentalInput(doc, "Temperature", 0); got != "293" {
		t.Errorf("temperature = %q, want 293", got)
	}
	if got := experimentalInput(doc, "Pressure", 1); got != "0.101" {
		t.Errorf("pressure = %q, want 0.101", got)
	}
}

func TestRValue(t *testing.T) {
	v, ok := RValue(mustDoc(t, detailedView))
	if !ok || v != 0.029 {
		t.Errorf("RValue = %v, %v; want 0.029, true", v, ok)
	}
}

func TestRValue_Empty(t *testing.T) {
	doc := mustDoc(t, `<table><tbody>
		<tr><td>R-value</td><td><input type="text" value="" /></td></tr>
	</tbody></table>`)
	if _, ok := RValue(doc); ok {
		t.Error("empty R-value should report ok=false")
	}
}

func TestCheckboxes(t *testing.T) {
	doc := mustDoc(t, detailedView)

	checked := []string{"X-ray", "Neutrons", "Single-Crystal",
		"Experimental PDF Number assigned", "Temperature Factors available",
		"Prototype Structure Type"}
	for _, marker := range checked {
		if !checkboxEnabled(doc, marker) {
			t.Errorf("checkbox %q should be enabled", marker)
		}
	}

	unchecked := []string{"Electrons", "Synchrotron", "Powder", "Mineral",
		"Modulated Structure", "Theoretical Calculation"}
	for _, marker := range unchecked {
		if checkboxEnabled(doc, marker) {
			t.Errorf("checkbox %q should be disabled", marker)
		}
	}

	if checkboxEnabled(doc, "No Such Panel Entry") {
		t.Error("missing marker should report false")
	}
}

func TestICSDVersion(t *testing.T) {
	got := ICSDVersion(mustDoc(t, detailedView))
	if !strings.Contains(got, "Version") {
		t.Errorf("ICSDVersion = %q, want a Version banner", got)
	}
}

func TestEntry_AllFields(t *testing.T) {
	entry, unparsed, err := Entry(detailedView)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if len(unparsed) != 0 {
		t.Errorf("unparsed tags: %v", unparsed)
	}

	if entry.CollectionCode() != 18975 {
		t.Errorf("collection_code = %v", entry["collection_code"])
	}
	if entry["crawler_version"] != models.CrawlerVersion {
		t.Errorf("crawler_version = %v", entry["crawler_version"])
	}
	if entry["volume"] != 317.02 {
		t.Errorf("volume = %v", entry["volume"])
	}
	if entry["formula_units_per_cell"] != 6 {
		t.Errorf("formula_units_per_cell = %v", entry["formula_units_per_cell"])
	}
	if entry["R_value"] != 0.029 {
		t.Errorf("R_value = %v", entry["R_value"])
	}
	if entry["x_ray"] != true || entry["powder"] != false {
		t.Errorf("radiation/sample flags wrong: x_ray=%v powder=%v",
			entry["x_ray"], entry["powder"])
	}
	cp, ok := entry["cell_parameters"].(*models.CellParameters)
	if !ok || cp.C != 13.781 {
		t.Errorf("cell_parameters = %#v", entry["cell_parameters"])
	}

	// Every parse tag must land in the record one way or another.
	for name := range tags.ParseTags {
		if _, ok := entry[name]; !ok {
			t.Errorf("tag %q missing from entry", name)
		}
	}
}

func TestEntry_UnimplementedTagIsSkipped(t *testing.T) {
	tags.ParseTags["phase_transition"] = tags.ParseTag{Kind: tags.KindText, Marker: "Phase Transition"}
	t.Cleanup(func() { delete(tags.ParseTags, "phase_transition") })

	entry, unparsed, err := Entry(detailedView)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if len(unparsed) != 1 || unparsed[0] != "phase_transition" {
		t.Errorf("unparsed = %v, want [phase_transition]", unparsed)
	}
	if _, ok := entry["phase_transition"]; ok {
		t.Error("unimplemented tag should not appear in the record")
	}
	// The rest of the entry still extracts.
	if entry.CollectionCode() != 18975 {
		t.Error("unimplemented tag must not poison the entry")
	}
}

func TestEntry_NoCollectionCode(t *testing.T) {
	_, _, err := Entry(`<html><body><div class="title">Detailed View</div></body></html>`)
	if err == nil {
		t.Fatal("entry without a Summary title must fail")
	}
}
