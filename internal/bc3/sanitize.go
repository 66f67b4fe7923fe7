package bc3

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// PlaceholderCode replaces codes left empty by sanitising.
const PlaceholderCode = "X001"

// MaxCodeLength is the longest code written to a file.
const MaxCodeLength = 20

// SanitizeCode keeps ASCII letters, digits and underscores, truncated to
// MaxCodeLength. Empty results become PlaceholderCode.
func SanitizeCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r < utf8.RuneSelf && (r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			if b.Len() == MaxCodeLength {
				break
			}
		}
	}
	if b.Len() == 0 {
		return PlaceholderCode
	}
	return b.String()
}

var textReplacer = strings.NewReplacer(
	"|", " ",
	"~", " ",
	`\`, " ",
	"\r", " ",
	"\n", " ",
	"²", "2",
	"³", "3",
	"€", "EUR",
)

// SanitizeText makes free text safe for a BC3 field: no record, field or
// sub-field delimiters, no line breaks, single spaces only, trimmed and
// representable in Latin-1.
func SanitizeText(text string) string {
	text = textReplacer.Replace(text)
	text = toLatin1(text)
	return strings.Join(strings.Fields(text), " ")
}

// toLatin1 folds runes outside Latin-1 to their compatibility form when
// that form is Latin-1, and to a space otherwise.
func toLatin1(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r <= unicode.MaxLatin1 {
			b.WriteRune(r)
			continue
		}
		folded := norm.NFKC.String(string(r))
		if isLatin1(folded) {
			b.WriteString(textReplacer.Replace(folded))
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func isLatin1(s string) bool {
	for _, r := range s {
		if r > unicode.MaxLatin1 {
			return false
		}
	}
	return true
}
