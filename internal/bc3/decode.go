package bc3

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/custodia-labs/obra/internal/core/domain"
)

type candidate struct {
	name   string
	decode func([]byte) (string, error)
}

func fromCharmap(cm *charmap.Charmap) func([]byte) (string, error) {
	return func(b []byte) (string, error) {
		out, err := cm.NewDecoder().Bytes(b)
		return string(out), err
	}
}

func fromUTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("invalid utf-8")
	}
	return string(b), nil
}

// candidates are tried in order. Strict UTF-8 goes first: Latin-1 text
// with accented letters is almost never valid UTF-8, while UTF-8 read as
// Latin-1 turns every accent into two garbage letters.
var candidates = []candidate{
	{name: "utf-8", decode: fromUTF8},
	{name: "latin-1", decode: fromCharmap(charmap.ISO8859_1)},
	{name: "cp1252", decode: fromCharmap(charmap.Windows1252)},
}

// Encodings returns the candidate encoding names in the order Decode tries them.
func Encodings() []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}

// Decode converts raw BC3 bytes to text. The first candidate that decodes
// without replacement or C1 control characters wins; cp1252 is reached when
// the file uses its 0x80-0x9F range, such as 0x80 for the euro sign. Input
// no candidate decodes cleanly is read as Latin-1, which maps every byte.
func Decode(raw []byte) (string, error) {
	// The record marker is the same byte in every candidate.
	if !bytes.Contains(raw, []byte("~")) {
		return "", fmt.Errorf("%w: no record marker; tried %s", domain.ErrDecode, strings.Join(Encodings(), ", "))
	}
	for _, c := range candidates {
		text, err := c.decode(raw)
		if err == nil && clean(text) {
			return text, nil
		}
	}
	return fromCharmap(charmap.ISO8859_1)(raw)
}

func clean(text string) bool {
	for _, r := range text {
		if r == utf8.RuneError || (r >= 0x80 && r <= 0x9f) {
			return false
		}
	}
	return true
}

// Encode converts generated BC3 text to Latin-1. Runes outside Latin-1
// are replaced; Build never produces any.
func Encode(text string) ([]byte, error) {
	enc := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	out, err := enc.Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode latin-1: %w", err)
	}
	return out, nil
}
