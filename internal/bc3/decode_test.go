package bc3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/obra/internal/core/domain"
)

func TestDecode_Latin1(t *testing.T) {
	// "Excavación" with ó as the single Latin-1 byte 0xF3.
	raw := []byte("~C|A|m3|Excavaci\xf3n|")

	text, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "~C|A|m3|Excavación|", text)
}

func TestDecode_Candidates(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"utf-8", "~C|E01|m3|Excavación en zanjas|15.50|", "~C|E01|m3|Excavación en zanjas|15.50|"},
		{"ascii", "~C|E01|m3|Zanja|15.50|", "~C|E01|m3|Zanja|15.50|"},
		{"latin-1", "~C|E01|m3|Excavaci\xf3n en zanjas|", "~C|E01|m3|Excavación en zanjas|"},
		{"cp1252 euro", "~T|E01|Precio en \x80 y \x93comillas\x94|", "~T|E01|Precio en € y \u201ccomillas\u201d|"},
		{"undefined cp1252 byte", "~T|E01|caf\xe9 \x81|", "~T|E01|café \u0081|"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := Decode([]byte(tt.raw))

			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestDecode_UTF8FileParses(t *testing.T) {
	text, err := Decode([]byte("~C|E01|m3|Excavación en zanjas|15.50|\r\n"))
	require.NoError(t, err)

	records := Parse(text)

	require.Len(t, records, 1)
	assert.Equal(t, "Excavación en zanjas", records[0].Fields[2])
}

func TestDecode_NoRecordMarker(t *testing.T) {
	_, err := Decode([]byte("just some text"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDecode)
	assert.Contains(t, err.Error(), "utf-8, latin-1, cp1252")
}

func TestEncodings_Order(t *testing.T) {
	assert.Equal(t, []string{"utf-8", "latin-1", "cp1252"}, Encodings())
}

func TestEncode_Latin1(t *testing.T) {
	out, err := Encode("Peón m²\r\n")
	require.NoError(t, err)
	assert.Equal(t, []byte("Pe\xf3n m\xb2\r\n"), out)
}

func TestEncode_DecodeRoundTrip(t *testing.T) {
	text := "~C|A|m2|Pavimento de baldosa cerámica|12.00|\r\n"

	out, err := Encode(text)
	require.NoError(t, err)

	back, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, text, back)
}
