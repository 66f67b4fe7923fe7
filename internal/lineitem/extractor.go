// Package lineitem turns retrieved text into priced budget items.
//
// Extraction is layered. Labeled fields written by the BC3 chunk renderer
// are read first; each later layer only fills what is still missing:
// summary from the first meaningful line, price from currency or amount
// patterns, unit from keyword patterns, and finally a generated code.
package lineitem

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/custodia-labs/obra/internal/bc3"
	"github.com/custodia-labs/obra/internal/core/domain"
)

// PlaceholderCode is used when no code can be derived from the summary.
const PlaceholderCode = "GEN001"

// MaxSummaryLength bounds summaries taken from free text.
const MaxSummaryLength = 200

// boundary wraps a pattern with letter/digit aware word boundaries.
// RE2's \b only understands ASCII, which breaks on "m²" and accented words.
func boundary(p string) string {
	return `(?:^|[^\p{L}\p{N}_])(?:` + p + `)(?:$|[^\p{L}\p{N}_])`
}

var (
	// Price patterns, tried in order. The first match wins even when the
	// text holds several amounts.
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+[.,]\d{2})\s*(?:EUR|€|euros?)`),
		regexp.MustCompile(`(?i)(?:precio|importe|coste)[:\s]*(\d+[.,]\d{2})`),
	}

	labeledNumber = regexp.MustCompile(`[\d.,]+`)

	unitPatterns = []struct {
		re   *regexp.Regexp
		unit string
	}{
		{regexp.MustCompile(`(?i)` + boundary(`m[²2]`) + `|` + boundary(`metros?\s*cuadrados?`)), "m2"},
		{regexp.MustCompile(`(?i)` + boundary(`ml`) + `|` + boundary(`metros?\s*lineal(?:es)?`)), "ml"},
		{regexp.MustCompile(`(?i)` + boundary(`m[³3]`) + `|` + boundary(`metros?\s*c[úu]bicos?`)), "m3"},
		{regexp.MustCompile(`(?i)` + boundary(`kg`) + `|` + boundary(`kilogramos?`)), "kg"},
		{regexp.MustCompile(`(?i)` + boundary(`pa`) + `|` + boundary(`partida\s*alzada`)), "pa"},
	}
)

// Extract builds a line item from chunk content. It returns false when no
// summary can be found, since an item without a description is useless.
func Extract(content string, score float64) (*domain.LineItem, bool) {
	item := &domain.LineItem{
		Unit:  domain.DefaultUnit,
		Score: score,
	}

	lines := strings.Split(strings.TrimSpace(content), "\n")

	readLabels(item, lines)

	if item.Summary == "" {
		item.Summary = firstContentLine(lines)
	}

	if item.Price == 0 {
		item.Price = findPrice(content)
	}

	if item.Unit == domain.DefaultUnit {
		if unit, ok := findUnit(content); ok {
			item.Unit = unit
		}
	}

	if item.Code == "" {
		item.Code = generateCode(item.Summary)
	}

	if item.Summary == "" {
		return nil, false
	}
	return item, true
}

func readLabels(item *domain.LineItem, lines []string) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, bc3.LabelCode):
			item.Code = labelValue(line)
		case strings.HasPrefix(line, bc3.LabelSummary):
			item.Summary = labelValue(line)
		case strings.HasPrefix(line, bc3.LabelUnit):
			item.Unit = labelValue(line)
		case strings.HasPrefix(line, bc3.LabelPrice):
			item.Price = parseLabeledPrice(labelValue(line))
		case strings.HasPrefix(line, bc3.LabelDescription):
			item.Description = labelValue(line)
		}
	}
}

func labelValue(line string) string {
	_, value, _ := strings.Cut(line, ":")
	return strings.TrimSpace(value)
}

// firstContentLine returns the first non-empty line that is not a chapter or
// decomposition header, truncated to MaxSummaryLength runes.
func firstContentLine(lines []string) string {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, bc3.LabelChapter) || strings.HasPrefix(line, bc3.LabelDecomposition) {
			continue
		}
		r := []rune(line)
		if len(r) > MaxSummaryLength {
			r = r[:MaxSummaryLength]
		}
		return string(r)
	}
	return ""
}

// ParsePrice reads the first amount in free text such as a model reply,
// accepting both "1.234,56" and "1,234.56". It returns 0 when none is found.
func ParsePrice(text string) float64 {
	return parseLabeledPrice(text)
}

// parseLabeledPrice reads the first number in a labeled price value.
// When both separators appear, the last one is the decimal separator.
func parseLabeledPrice(value string) float64 {
	num := labeledNumber.FindString(value)
	if num == "" {
		return 0
	}

	lastDot := strings.LastIndex(num, ".")
	lastComma := strings.LastIndex(num, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0 && lastComma > lastDot:
		num = strings.ReplaceAll(num, ".", "")
		num = strings.Replace(num, ",", ".", 1)
	case lastDot >= 0 && lastComma >= 0:
		num = strings.ReplaceAll(num, ",", "")
	default:
		num = strings.ReplaceAll(num, ",", ".")
	}

	v, err := strconv.ParseFloat(strings.Trim(num, "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func findPrice(content string) float64 {
	for _, re := range pricePatterns {
		m := re.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil {
			return v
		}
	}
	return 0
}

func findUnit(content string) (string, bool) {
	for _, p := range unitPatterns {
		if p.re.MatchString(content) {
			return p.unit, true
		}
	}
	return "", false
}

// generateCode derives GEN plus the first ten ASCII letters or digits of the summary.
func generateCode(summary string) string {
	var b strings.Builder
	for _, r := range []rune(summary) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() == 10 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return PlaceholderCode
	}
	return "GEN" + b.String()
}
