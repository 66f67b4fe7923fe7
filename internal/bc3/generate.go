package bc3

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// Fixed values written by Build.
const (
	FormatVersion       = "FIEBDC-3/2020"
	GeneratorName       = "RAG Presupuestos"
	RootCode            = "PROY"
	ChapterCode         = "CAP01"
	ChapterSummary      = "Partidas encontradas"
	EmptyChapterSummary = "Sin partidas encontradas"
	MaxSummaryLength    = 200

	// Coefficients carries default decimal places and the currency. Budget
	// tools reject files without it even when no markup applies.
	Coefficients = `~K|\2\2\3\2\2\2\2\EUR\|0\0\0\0\0|`

	lineEnd = "\r\n"
	factors = `\1.0\1.0\`
)

// Build serialises items as a BC3 file dated today.
func Build(items []domain.LineItem, projectName string) string {
	return BuildAt(items, projectName, time.Now())
}

// BuildAt serialises items as a BC3 file dated now.
// All items hang from a single chapter below the project root. An empty
// list still yields a valid file with a placeholder chapter.
func BuildAt(items []domain.LineItem, projectName string, now time.Time) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString(lineEnd)
	}

	line("~V|%s|%s|%s|", FormatVersion, GeneratorName, now.Format("02/01/2006"))
	line("%s", Coefficients)
	line("~C|%s##||%s||", RootCode, SanitizeText(projectName))

	if len(items) == 0 {
		line("~C|%s#||%s||", ChapterCode, EmptyChapterSummary)
		line("~D|%s##|%s#%s|", RootCode, ChapterCode, factors)
		return b.String()
	}

	line("~C|%s#||%s||", ChapterCode, ChapterSummary)

	codes := make([]string, len(items))
	for i, item := range items {
		codes[i] = SanitizeCode(item.Code)
	}

	for i, item := range items {
		price := ""
		if item.Price > 0 {
			price = fmt.Sprintf("%.2f", item.Price)
		}
		line("~C|%s|%s|%s|%s|", codes[i], SanitizeText(item.Unit), SanitizeText(truncate(item.Summary, MaxSummaryLength)), price)
	}

	for i, item := range items {
		if desc := SanitizeText(item.Description); desc != "" {
			line("~T|%s|%s|", codes[i], desc)
		}
	}

	for i := range items {
		line(`~M|%s\%s||1|`, ChapterCode, codes[i])
	}

	line("~D|%s##|%s#%s|", RootCode, ChapterCode, factors)

	var children strings.Builder
	for _, code := range codes {
		children.WriteString(code)
		children.WriteString(factors)
	}
	line("~D|%s#|%s|", ChapterCode, children.String())

	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
