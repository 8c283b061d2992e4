// Package lawxml extracts statute documents from e-Gov law XML.
// It parses one XML file into a StatuteDocument: title and date metadata
// plus an ordered list of article fragments.
package lawxml

// Category values derived from title keyword matching.
const (
	CategoryTax      = "税法"
	CategoryCivil    = "民法"
	CategoryCriminal = "刑法"
	CategoryCommerce = "商法"
	CategoryLabor    = "労働法"
	CategoryOther    = "その他"
)

// Fragment is one addressable unit of statute text (an article or item).
// Fragments are immutable after construction: normalization and splitting
// build replacements rather than patching in place.
type Fragment struct {
	// LawID is the parent document identifier.
	LawID string

	// Number is the fragment number (e.g. "第1条"). After splitting it may
	// carry a synthetic suffix such as "第1条-2".
	Number string

	// Content is the fragment text. Never empty for a persisted fragment.
	Content string

	// Chapter, Section, Subsection are structural hints from the ancestor
	// path. Empty when the element has no such ancestor.
	Chapter    string
	Section    string
	Subsection string

	// EffectiveDate overrides the document effective date when set.
	EffectiveDate string

	// Metadata carries free-form extraction and processing context.
	Metadata map[string]any
}

// CloneMetadata returns a shallow copy of the fragment's metadata map,
// never nil. Used when deriving replacement fragments.
func (f *Fragment) CloneMetadata() map[string]any {
	m := make(map[string]any, len(f.Metadata)+2)
	for k, v := range f.Metadata {
		m[k] = v
	}
	return m
}

// StatuteDocument is one parsed statute. Constructed fresh per extraction
// pass; processing stages build processed copies.
type StatuteDocument struct {
	// LawID is the external-system identifier, derived from the source
	// filename stem (not from document content).
	LawID string

	// Name is the statute title.
	Name string

	// NameKana is the phonetic title, when present.
	NameKana string

	// Number is the official law number, when present.
	Number string

	// PromulgationDate and EffectiveDate are ISO date strings as they
	// appear in the source.
	PromulgationDate string
	EffectiveDate    string

	// Category is inferred from title keywords; CategoryOther when no
	// keyword matches.
	Category string

	// Description is a synthesized one-line summary.
	Description string

	// Fragments is the ordered list of extracted articles.
	Fragments []Fragment
}
