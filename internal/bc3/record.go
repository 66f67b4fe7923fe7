package bc3

import (
	"strings"
	"unicode"
)

// Kind is the one letter record type.
type Kind byte

// Record kinds understood by the parser. Anything else is discarded.
const (
	KindVersion       Kind = 'V'
	KindConcept       Kind = 'C'
	KindDecomposition Kind = 'D'
	KindText          Kind = 'T'
	KindHierarchy     Kind = 'L'
	KindMeasurement   Kind = 'M'
	KindCoefficients  Kind = 'K'
)

// IsKnown reports whether k is a record kind the parser keeps.
func (k Kind) IsKnown() bool {
	switch k {
	case KindVersion, KindConcept, KindDecomposition, KindText,
		KindHierarchy, KindMeasurement, KindCoefficients:
		return true
	default:
		return false
	}
}

// String returns the kind letter.
func (k Kind) String() string {
	return string(rune(k))
}

// Record is one parsed line. Fields never end with an empty field.
type Record struct {
	Kind   Kind
	Fields []string
}

// Field is a record field that may be absent.
type Field struct {
	Value   string
	Present bool
}

// Field returns the i-th field.
func (r Record) Field(i int) Field {
	if i < 0 || i >= len(r.Fields) {
		return Field{}
	}
	return Field{Value: r.Fields[i], Present: true}
}

// ConceptRecord is the typed view of a C record.
type ConceptRecord struct {
	Code    string
	Unit    Field
	Summary Field
	Price   Field
}

// AsConcept returns the typed view of a C record with at least a code field.
func (r Record) AsConcept() (ConceptRecord, bool) {
	if r.Kind != KindConcept || len(r.Fields) < 1 {
		return ConceptRecord{}, false
	}
	return ConceptRecord{
		Code:    r.Fields[0],
		Unit:    r.Field(1),
		Summary: r.Field(2),
		Price:   r.Field(3),
	}, true
}

// DecompositionRecord is the typed view of a D record.
type DecompositionRecord struct {
	Parent     string
	Components string
}

// AsDecomposition returns the typed view of a D record with parent and components.
func (r Record) AsDecomposition() (DecompositionRecord, bool) {
	if r.Kind != KindDecomposition || len(r.Fields) < 2 {
		return DecompositionRecord{}, false
	}
	return DecompositionRecord{Parent: r.Fields[0], Components: r.Fields[1]}, true
}

// TextRecord is the typed view of a T record.
type TextRecord struct {
	Code string
	Text string
}

// AsText returns the typed view of a T record with code and text.
func (r Record) AsText() (TextRecord, bool) {
	if r.Kind != KindText || len(r.Fields) < 2 {
		return TextRecord{}, false
	}
	return TextRecord{Code: r.Fields[0], Text: r.Fields[1]}, true
}

// HierarchyRecord is the typed view of an L record.
type HierarchyRecord struct {
	Parent   string
	Children string
}

// AsHierarchy returns the typed view of an L record with parent and children.
func (r Record) AsHierarchy() (HierarchyRecord, bool) {
	if r.Kind != KindHierarchy || len(r.Fields) < 2 {
		return HierarchyRecord{}, false
	}
	return HierarchyRecord{Parent: r.Fields[0], Children: r.Fields[1]}, true
}

// Parse splits decoded BC3 text into records.
// Line endings may be \n, \r\n or \r. Unknown record kinds and empty
// segments are skipped without error.
func Parse(text string) []Record {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	segments := strings.Split(text, "~")
	records := make([]Record, 0, len(segments))

	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		kind := Kind(unicode.ToUpper(rune(segment[0])))
		if segment[0] >= 0x80 || !kind.IsKnown() {
			continue
		}

		raw := strings.TrimSpace(segment[1:])
		raw = strings.TrimPrefix(raw, "|")

		fields := strings.Split(raw, "|")
		for len(fields) > 0 && strings.TrimSpace(fields[len(fields)-1]) == "" {
			fields = fields[:len(fields)-1]
		}

		records = append(records, Record{Kind: kind, Fields: fields})
	}

	return records
}

// stripHashes removes trailing chapter markers from a code.
func stripHashes(code string) string {
	return strings.TrimRight(strings.TrimSpace(code), "#")
}
