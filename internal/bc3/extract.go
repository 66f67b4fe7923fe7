package bc3

import (
	"strconv"
	"strings"
)

// Concept is a priced item or chapter.
type Concept struct {
	Code    string
	Unit    string
	Summary string
	Price   float64
}

// Component is one entry of a decomposition.
type Component struct {
	Code     string
	Factor   float64
	Quantity float64
}

// ExtractConcepts collects C records by hash-stripped code.
// A later record with the same code replaces an earlier one.
func ExtractConcepts(records []Record) map[string]Concept {
	concepts := make(map[string]Concept)

	for _, r := range records {
		c, ok := r.AsConcept()
		if !ok {
			continue
		}

		code := stripHashes(c.Code)
		if code == "" {
			continue
		}

		concepts[code] = Concept{
			Code:    code,
			Unit:    strings.TrimSpace(c.Unit.Value),
			Summary: strings.TrimSpace(c.Summary.Value),
			Price:   parsePrice(c.Price),
		}
	}

	return concepts
}

// parsePrice reads the first of several '\' separated prices.
func parsePrice(f Field) float64 {
	if !f.Present {
		return 0
	}
	first, _, _ := strings.Cut(strings.TrimSpace(f.Value), `\`)
	return parseNumber(first)
}

// parseNumber parses a decimal that may use a comma separator. Returns 0 on failure.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

// ExtractDecompositions collects D records as parent code to ordered components.
// Components come in groups of code, factor and quantity. Missing or invalid
// numbers read as 0. Parents left without components are omitted.
func ExtractDecompositions(records []Record) map[string][]Component {
	decompositions := make(map[string][]Component)

	for _, r := range records {
		d, ok := r.AsDecomposition()
		if !ok {
			continue
		}

		parent := stripHashes(d.Parent)
		children := strings.TrimSpace(d.Components)
		if children == "" {
			continue
		}

		parts := strings.Split(children, `\`)
		var components []Component
		for i := 0; i < len(parts); i += 3 {
			code := stripHashes(parts[i])
			if code == "" {
				continue
			}
			c := Component{Code: code}
			if i+1 < len(parts) {
				c.Factor = parseNumber(parts[i+1])
			}
			if i+2 < len(parts) {
				c.Quantity = parseNumber(parts[i+2])
			}
			components = append(components, c)
		}

		if len(components) > 0 {
			decompositions[parent] = components
		}
	}

	return decompositions
}

// ExtractTexts collects non-empty T records by hash-stripped code.
func ExtractTexts(records []Record) map[string]string {
	texts := make(map[string]string)

	for _, r := range records {
		t, ok := r.AsText()
		if !ok {
			continue
		}

		code := stripHashes(t.Code)
		text := strings.TrimSpace(t.Text)
		if code == "" || text == "" {
			continue
		}
		texts[code] = text
	}

	return texts
}

// ExtractHierarchy collects L records as parent code to child codes.
func ExtractHierarchy(records []Record) map[string][]string {
	hierarchy := make(map[string][]string)

	for _, r := range records {
		l, ok := r.AsHierarchy()
		if !ok {
			continue
		}

		parent := stripHashes(l.Parent)
		var children []string
		for _, child := range strings.Split(l.Children, `\`) {
			if child = stripHashes(child); child != "" {
				children = append(children, child)
			}
		}

		if len(children) > 0 {
			hierarchy[parent] = children
		}
	}

	return hierarchy
}
