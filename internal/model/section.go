package model

import "github.com/rotisserie/eris"

// Section identifies one independent analysis domain.
type Section string

const (
	SectionMeasurement Section = "measurement"
	SectionData        Section = "data"
	SectionCROUX       Section = "cro_ux"
	SectionSEO         Section = "seo"
	SectionGEO         Section = "geo"
)

// AllSections lists the five analysis sections in report order.
var AllSections = []Section{
	SectionMeasurement,
	SectionData,
	SectionCROUX,
	SectionSEO,
	SectionGEO,
}

// sectionTitles maps sections to their human-readable report headings.
var sectionTitles = map[Section]string{
	SectionMeasurement: "Measurement",
	SectionData:        "Data",
	SectionCROUX:       "CRO/UX",
	SectionSEO:         "SEO",
	SectionGEO:         "GEO",
}

// Title returns the display heading for a section, or the raw value for
// unknown sections.
func (s Section) Title() string {
	if t, ok := sectionTitles[s]; ok {
		return t
	}
	return string(s)
}

// ParseSection resolves a user-supplied section name, accepting both the
// wire value and the display heading.
func ParseSection(name string) (Section, error) {
	for s, title := range sectionTitles {
		if name == string(s) || name == title {
			return s, nil
		}
	}
	return "", eris.Errorf("unknown section %q", name)
}
