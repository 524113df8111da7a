// Package tags holds the locator tables that tie field names to the ICSD
// web interface's markup. Everything here is versioned against the 2019
// layout of the Detailed View; when FIZ Karlsruhe reshuffles the DOM, this
// package is where the fallout lands.
package tags

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind describes how a parse tag is read off the Detailed View.
type Kind string

const (
	// KindText is a free-text field (element text or input value).
	KindText Kind = "text"
	// KindCheckbox is a boolean read from a checkbox's checked attribute.
	KindCheckbox Kind = "checkbox"
)

// QueryTags maps recognized query field names to the element ids of the
// Basic Search & Retrieve form inputs.
var QueryTags = map[string]string{
	"composition":          "content_form:uiChemistrySearchSumForm:input:input",
	"number_of_elements":   "content_form:uiChemistrySearchElCount:input:input",
	"icsd_collection_code": "content_form:uiCodeCollection:input:input",
}

// ParseTag locates one field on the Detailed View. Exactly one of ID or
// Marker is set: ID fields are read straight off the element, Marker fields
// are found by the visible label text next to them.
type ParseTag struct {
	Kind   Kind   `yaml:"kind"`
	ID     string `yaml:"id,omitempty"`
	Marker string `yaml:"marker,omitempty"`
}

// ParseTags maps field names to their Detailed View locators.
var ParseTags = map[string]ParseTag{
	// panel: Summary
	"PDF_number":        {Kind: KindText, Marker: "PDF Number"},
	"authors":           {Kind: KindText, Marker: "Authors"},
	"publication_title": {Kind: KindText, ID: "textfield13"},
	"reference":         {Kind: KindText, ID: "textfield12"},
	"doi":               {Kind: KindText, Marker: "DOI"},

	// panel: Chemistry
	"chemical_formula":   {Kind: KindText, ID: "textfieldChem1"},
	"structural_formula": {Kind: KindText, ID: "textfieldChem3"},
	"AB_formula":         {Kind: KindText, ID: "textfieldChem6"},

	// panel: Published Crystal Structure Data
	"cell_parameters":        {Kind: KindText, ID: "textfieldPub1"},
	"volume":                 {Kind: KindText, ID: "textfieldPub2"},
	"formula_units_per_cell": {Kind: KindText, ID: "textfieldPub3"},
	"space_group":            {Kind: KindText, ID: "textfieldPub5"},
	"pearson":                {Kind: KindText, ID: "textfieldPub6"},
	"crystal_system":         {Kind: KindText, ID: "textfieldPub8"},
	"crystal_class":          {Kind: KindText, ID: "textfieldPub9"},
	"wyckoff_sequence":       {Kind: KindText, ID: "textfieldPub11"},
	"structural_prototype":   {Kind: KindText, ID: "textfieldPub12"},

	// panel: Bibliography
	"reference_1": {Kind: KindText, Marker: "Reference"},
	"reference_2": {Kind: KindText, Marker: "Reference"},
	"reference_3": {Kind: KindText, Marker: "Reference"},

	// panel: Warnings & Comments
	"warnings": {Kind: KindText, ID: "ir_a_8_81a3e"},
	"comments": {Kind: KindText, Marker: "Comments"},

	// panel: Experimental Conditions, text fields
	"temperature": {Kind: KindText, Marker: "Temperature"},
	"pressure":    {Kind: KindText, Marker: "Pressure"},
	"R_value":     {Kind: KindText, Marker: "R-value"},

	// subpanel: Radiation Type
	"x_ray":                {Kind: KindCheckbox, Marker: "X-ray"},
	"electron_diffraction": {Kind: KindCheckbox, Marker: "Electrons"},
	"neutron_diffraction":  {Kind: KindCheckbox, Marker: "Neutrons"},
	"synchrotron":          {Kind: KindCheckbox, Marker: "Synchrotron"},

	// subpanel: Sample Type
	"powder":         {Kind: KindCheckbox, Marker: "Powder"},
	"single_crystal": {Kind: KindCheckbox, Marker: "Single-Crystal"},

	// subpanel: Additional Information
	"twinned_crystal_data":                 {Kind: KindCheckbox, Marker: "Twinned Crystal Data"},
	"rietveld_employed":                    {Kind: KindCheckbox, Marker: "Rietveld Refinement employed"},
	"absolute_config_determined":           {Kind: KindCheckbox, Marker: "Absolute Configuration Determined"},
	"experimental_PDF_number":              {Kind: KindCheckbox, Marker: "Experimental PDF Number assigned"},
	"temperature_factors_available":        {Kind: KindCheckbox, Marker: "Temperature Factors available"},
	"magnetic_structure_available":         {Kind: KindCheckbox, Marker: "Magnetic Structure Available"},
	"anharmonic_temperature_factors_given": {Kind: KindCheckbox, Marker: "Anharmonic temperature factors given"},
	"calculated_PDF_number":                {Kind: KindCheckbox, Marker: "Calculated PDF Number assigned"},
	"NMR_data_available":                   {Kind: KindCheckbox, Marker: "NMR Data available"},
	"correction_of_previous":               {Kind: KindCheckbox, Marker: "Correction of Earlier Work"},
	"cell_constants_without_sd":            {Kind: KindCheckbox, Marker: "Cell Constants without s.d."},
	"only_cell_and_structure_type":         {Kind: KindCheckbox, Marker: "Only Cell and Structure Type Determined"},

	// subpanel: Properties of Structure
	"polytype":               {Kind: KindCheckbox, Marker: "Polytype Structure"},
	"is_prototype_structure": {Kind: KindCheckbox, Marker: "Prototype Structure Type"},
	"order_disorder":         {Kind: KindCheckbox, Marker: "Order/Disorder Structure"},
	"modulated_structure":    {Kind: KindCheckbox, Marker: "Modulated Structure"},
	"disordered":             {Kind: KindCheckbox, Marker: "Disordered Structure"},
	"mineral":                {Kind: KindCheckbox, Marker: "Mineral"},
	"is_structure_prototype": {Kind: KindCheckbox, Marker: "Structure Prototype"},

	// theory entries carry this flag since the 2019 release
	"theoretical_calculation": {Kind: KindCheckbox, Marker: "Theoretical Calculation"},
}

// overrideFile is the YAML shape accepted by LoadOverrides.
type overrideFile struct {
	QueryTags map[string]string   `yaml:"query_tags"`
	ParseTags map[string]ParseTag `yaml:"parse_tags"`
}

// LoadOverrides merges a YAML override file over the built-in tables.
// Only the fields present in the file are replaced; everything else keeps
// its default locator. This is the escape hatch for site markup changes
// that do not warrant a new release.
func LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tag overrides: %w", err)
	}

	var of overrideFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return fmt.Errorf("parse tag overrides %q: %w", path, err)
	}

	for name, id := range of.QueryTags {
		QueryTags[name] = id
	}
	for name, tag := range of.ParseTags {
		if tag.Kind == "" {
			if existing, ok := ParseTags[name]; ok {
				tag.Kind = existing.Kind
			} else {
				tag.Kind = KindText
			}
		}
		ParseTags[name] = tag
	}
	return nil
}
