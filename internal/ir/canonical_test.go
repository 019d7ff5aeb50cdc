package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", Str("hello"), `"hello"`},
		{"empty string", Str(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"max int64", Int(9223372036854775807), "9223372036854775807"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"array", Array{Int(1), Str("two"), Bool(false)}, `[1,"two",false]`},
		{"go string", "hello", `"hello"`},
		{"go int", 7, "7"},
		{"go slice", []any{int64(1), "two", true}, `[1,"two",true]`},
		{"go map", map[string]any{"b": int64(1), "a": "x"}, `{"a":"x","b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := Object{
		"z": Object{"b": Int(1), "a": Int(2)},
		"a": Int(3),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as the surrogate pair D800 DC00, which sorts before
	// U+E000 in UTF-16 but after it in UTF-8.
	obj := Object{
		"\uE000":     Int(1),
		"\U00010000": Int(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(Str("<b>Smith & Sons</b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<b>Smith & Sons</b>"`, string(result))
	assert.NotContains(t, string(result), `\u003c`)
	assert.NotContains(t, string(result), `\u0026`)
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"line separator", "a\u2028b", "\"a\u2028b\""},
		{"paragraph separator", "a\u2029b", "\"a\u2029b\""},
		{"literal escape text", `see \u2028`, `"see \\u2028"`},
		{"literal and actual", "x \\u2029 y \u2029", "\"x \\\\u2029 y \u2029\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(Str(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"null", nil, "null"},
		{"float64", 3.14, "float"},
		{"float32", float32(1), "float"},
		{"nested float", map[string]any{"amount": 100.5}, "float"},
		{"nested null", []any{"a", nil}, "null"},
		{"struct", struct{}{}, "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	composed := "Jos\u00e9"
	decomposed := "Jose\u0301"

	r1, err := MarshalCanonical(Object{composed: Str(composed)})
	require.NoError(t, err)
	r2, err := MarshalCanonical(Object{decomposed: Str(decomposed)})
	require.NoError(t, err)

	assert.Equal(t, r1, r2, "NFC normalization applies to keys and values")
}

func TestCanonicalRecordIgnoresFieldOrder(t *testing.T) {
	// Semantically equal payloads decoded from differently ordered JSON
	// must hash identically.
	a, err := UnmarshalRecord([]byte(`{"id":"P1","recipientName":"A","amount":100,"status":"Active","lastUpdated":"2026-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	b, err := UnmarshalRecord([]byte(`{"status":"Active","lastUpdated":"2026-01-01T06:00:00+06:00","amount":"100.00","recipientName":"A","id":"P1"}`))
	require.NoError(t, err)

	assert.Equal(t, MustValueHash(a), MustValueHash(b))
	assert.Equal(t, katValueHash, MustValueHash(a))
}

func TestCanonicalRecordRoundTrip(t *testing.T) {
	r := Record{
		ID:            "PENSION_001",
		RecipientName: "Abul Kalam",
		Amount:        MustAmount("15000.50"),
		Status:        StatusActive,
		LastUpdated:   time.Date(2026, 3, 4, 5, 6, 7, 891, time.UTC),
	}

	data, err := MarshalCanonicalRecord(r)
	require.NoError(t, err)

	back, err := UnmarshalRecord(data)
	require.NoError(t, err)

	again, err := MarshalCanonicalRecord(back)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
	assert.True(t, r.LastUpdated.Equal(back.LastUpdated))
	assert.Equal(t, "15000.50", back.Amount.String())
}

// FuzzCanonicalRecordIdempotent checks decode(canonical) re-encodes to the
// same bytes for any record payload that decodes.
func FuzzCanonicalRecordIdempotent(f *testing.F) {
	f.Add("P1", "A", "100", "Active", int64(0))
	f.Add("PENSION_002", "Fatima Begum", "12500.00", "Retired", int64(1767225600123456789))
	f.Add("k", "<&>\u2028", "0.5", "Deceased", int64(-1))

	f.Fuzz(func(t *testing.T, id, name, amount, status string, nanos int64) {
		amt, err := ParseAmount(amount)
		if err != nil {
			t.Skip()
		}
		st, err := ParseStatus(status)
		if err != nil {
			t.Skip()
		}
		r := Record{ID: id, RecipientName: name, Amount: amt, Status: st, LastUpdated: time.Unix(0, nanos)}

		first, err := MarshalCanonicalRecord(r)
		require.NoError(t, err)

		decoded, err := UnmarshalRecord(first)
		require.NoError(t, err)

		second, err := MarshalCanonicalRecord(decoded)
		require.NoError(t, err)
		assert.Equal(t, first, second, "canonical marshaling must be idempotent")
	})
}
