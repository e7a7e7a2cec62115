package bookmark

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	b, err := New("Customer", "abc-123")
	require.NoError(t, err)

	assert.Equal(t, "Customer", b.LogicalType())
	assert.Equal(t, "abc-123", b.Identifier())
	assert.Equal(t, "Customer:abc-123", b.String())
}

func TestNewRejectsInvalidLogicalType(t *testing.T) {
	_, err := New("", "abc")
	assert.ErrorIs(t, err, ErrEmptyLogicalType)

	_, err = New("a:b", "abc")
	assert.ErrorIs(t, err, ErrSeparatorInLogicalType)
}

func TestNewAllowsEmptyIdentifier(t *testing.T) {
	b, err := New("Customer", "")
	require.NoError(t, err)
	assert.Equal(t, "Customer:", b.String())

	parsed, ok := Parse(b.String())
	require.True(t, ok)
	assert.Equal(t, b, parsed)
}

func TestNewNormalizesLogicalType(t *testing.T) {
	a := MustNew("Cafe\u0301", "1")
	b := MustNew("Caf\u00e9", "1")

	assert.True(t, a.Equal(b))
}

func TestParseRoundTrip(t *testing.T) {
	cases := []struct {
		logicalType string
		identifier  string
	}{
		{"Customer", "abc-123"},
		{"simple.SimpleObject", "42"},
		{"demo.Search", "djE7bmFtZT1BbGljZQ"},
		{"Order", "with:colons:inside"},
		{"Order", "spaces and\nnewlines"},
		{"Order", "%2F already-escaped?&="},
		{"Order", ""},
	}

	for _, tc := range cases {
		t.Run(tc.logicalType+"/"+tc.identifier, func(t *testing.T) {
			b := MustNew(tc.logicalType, tc.identifier)
			parsed, ok := Parse(b.String())
			require.True(t, ok)
			assert.Equal(t, b, parsed)
			assert.Equal(t, b.String(), parsed.String())
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"garbage-with-no-separator",
		":no-logical-type",
		"Cafe\u0301:1",
	} {
		t.Run(input, func(t *testing.T) {
			b, ok := Parse(input)
			assert.False(t, ok)
			assert.True(t, b.IsZero())
		})
	}
}

func TestEquality(t *testing.T) {
	a := MustNew("Customer", "1")

	assert.True(t, a.Equal(MustNew("Customer", "1")))
	assert.False(t, a.Equal(MustNew("Customer", "2")))
	assert.False(t, a.Equal(MustNew("Supplier", "1")))

	set := map[Bookmark]bool{a: true}
	assert.True(t, set[MustNew("Customer", "1")], "bookmarks are usable as map keys")
}

func TestZeroBookmark(t *testing.T) {
	var b Bookmark
	assert.True(t, b.IsZero())
	assert.Equal(t, "", b.String())
}

func TestJSONRoundTrip(t *testing.T) {
	type holder struct {
		Owner Bookmark `json:"owner"`
	}

	data, err := json.Marshal(holder{Owner: MustNew("Customer", "abc-123")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"Customer:abc-123"}`, string(data))

	var h holder
	require.NoError(t, json.Unmarshal(data, &h))
	assert.Equal(t, MustNew("Customer", "abc-123"), h.Owner)

	err = json.Unmarshal([]byte(`{"owner":"nonsense"}`), &h)
	require.Error(t, err)
}

func TestScanAndValue(t *testing.T) {
	var b Bookmark
	require.NoError(t, b.Scan("Customer:1"))
	assert.Equal(t, MustNew("Customer", "1"), b)

	require.NoError(t, b.Scan([]byte("Order:7")))
	assert.Equal(t, MustNew("Order", "7"), b)

	require.NoError(t, b.Scan(nil))
	assert.True(t, b.IsZero())

	assert.Error(t, b.Scan(42))

	v, err := MustNew("Customer", "1").Value()
	require.NoError(t, err)
	assert.Equal(t, "Customer:1", v)

	v, err = Bookmark{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
