package headers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaitan80/httpingest/internal/protocol"
)

// Test: Valid single header
func Test_Valid_Single_Header(t *testing.T) {
	h, err := Parse("HoSt: localhost:42069\r")
	require.NoError(t, err)
	assert.Equal(t, "localhost:42069", h.Get("host"))
	assert.Equal(t, "localhost:42069", h.Get("HOST"))
	assert.Equal(t, 1, h.Len())
	// Original spelling is kept for iteration
	assert.Equal(t, "HoSt", h.Fields()[0].Name)
}

// Test: Valid single header with extra whitespace around the value
func Test_Valid_Single_Header_With_Extra_Whitespace(t *testing.T) {
	h, err := Parse("hOsT:    localhost:42069   \r")
	require.NoError(t, err)
	assert.Equal(t, "localhost:42069", h.Get("Host"))
}

// Test: Several headers keep their order, LF and CRLF lines both work
func Test_Valid_Multiple_Headers_Ordered(t *testing.T) {
	h, err := Parse("Host: localhost\r\nUser-Agent: curl/7.81.0\nAccept: */*")
	require.NoError(t, err)
	require.Equal(t, 3, h.Len())
	fields := h.Fields()
	assert.Equal(t, Field{Name: "Host", Value: "localhost"}, fields[0])
	assert.Equal(t, Field{Name: "User-Agent", Value: "curl/7.81.0"}, fields[1])
	assert.Equal(t, Field{Name: "Accept", Value: "*/*"}, fields[2])
}

// Duplicate headers: last one wins, first position is kept
func Test_Duplicate_Headers_Last_Wins(t *testing.T) {
	h, err := Parse("Cookie: a=1\r\nHost: x\r\ncookie: b=2\r")
	require.NoError(t, err)
	assert.Equal(t, "b=2", h.Get("Cookie"))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, "cookie", h.Fields()[0].Name)
}

// Values may contain colons
func Test_Value_With_Colon(t *testing.T) {
	h, err := Parse("Referer: http://example.com:8080/x\r")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:8080/x", h.Get("referer"))
}

// Trivial blocks are empty, never an error
func Test_Trivial_Block_Is_Empty(t *testing.T) {
	for _, block := range []string{"", "\r", "\r\n", "abc", "\n\n\n"} {
		h, err := Parse(block)
		require.NoError(t, err, "%q", block)
		assert.Equal(t, 0, h.Len(), "%q", block)
	}
}

// Test: Invalid spacing header
func Test_Invalid_Spacing_Header(t *testing.T) {
	_, err := Parse("       Host : localhost:42069       \r")
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.ErrMalformedInput))
}

// Test: Invalid character in header key
func Test_Invalid_Character_In_Key(t *testing.T) {
	_, err := Parse("H©st: localhost:42069\r")
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.ErrMalformedInput))
}

// Test: Missing colon
func Test_Missing_Colon(t *testing.T) {
	_, err := Parse("Host localhost:42069\r")
	assert.True(t, errors.Is(err, protocol.ErrMalformedInput))
}

func Test_Parse_Is_Idempotent(t *testing.T) {
	block := "Host: a\r\nContent-Type: text/plain\r\nX-Id: 7\r"
	h1, err := Parse(block)
	require.NoError(t, err)
	h2, err := Parse(block)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func Test_Nil_Headers_Reads(t *testing.T) {
	var h *Headers
	assert.Equal(t, "", h.Get("Host"))
	assert.False(t, h.Has("Host"))
	assert.Equal(t, 0, h.Len())
	assert.Nil(t, h.Fields())
}

func Test_Add_Keeps_Repeated_Fields(t *testing.T) {
	h := NewHeaders()
	h.Add(SetCookie, "page_hits=2")
	h.Add(SetCookie, "first_visited_at=now")
	assert.Equal(t, "page_hits=2", h.Get("set-cookie"))
	assert.Equal(t, []Field{
		{Name: SetCookie, Value: "page_hits=2"},
		{Name: SetCookie, Value: "first_visited_at=now"},
	}, h.Fields())
}

func Test_Set_Replaces_Added_Fields(t *testing.T) {
	h := NewHeaders()
	h.Set(ContentType, "text/plain")
	h.Add(SetCookie, "a=1")
	h.Set("X-Id", "7")
	h.Add(SetCookie, "b=2")
	h.Set("set-cookie", "c=3")

	assert.Equal(t, []Field{
		{Name: ContentType, Value: "text/plain"},
		{Name: "set-cookie", Value: "c=3"},
		{Name: "X-Id", Value: "7"},
	}, h.Fields())
	assert.Equal(t, "7", h.Get("x-id"))
	assert.Equal(t, "c=3", h.Get(SetCookie))
	assert.Equal(t, 3, h.Len())

	h.Set("X-Id", "8")
	assert.Equal(t, "8", h.Get("X-Id"))
	assert.Len(t, h.Fields(), 3)
}
