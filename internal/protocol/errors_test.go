package protocol

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Error_Unwraps_To_Kind(t *testing.T) {
	err := fmt.Errorf("reading part: %w", Malformed("missing closing quote"))
	assert.True(t, errors.Is(err, ErrMalformedInput))
	assert.False(t, errors.Is(err, ErrURITooLong))
	assert.True(t, IsParseFailure(err))
	assert.Equal(t, "reading part: malformed input: missing closing quote", err.Error())
}

func Test_URITooLong_Carries_Excess(t *testing.T) {
	err := URITooLong(17)
	assert.True(t, errors.Is(err, ErrURITooLong))
	assert.Equal(t, 17, err.Excess)
	assert.Contains(t, err.Error(), "17")
}

func Test_Transport_Errors_Are_Not_Parse_Failures(t *testing.T) {
	assert.False(t, IsParseFailure(io.ErrUnexpectedEOF))
	assert.False(t, IsParseFailure(nil))
}

func Test_Method_Set(t *testing.T) {
	for _, m := range []string{"OPTIONS", "GET", "HEAD", "POST", "PUT", "DELETE", "TRACE", "CONNECT"} {
		assert.True(t, IsMethodValid(m), m)
	}
	assert.False(t, IsMethodValid("PATCH"))
	assert.False(t, IsMethodValid("get"))
	assert.Equal(t, 7, MaxMethodLength)
	assert.Equal(t, 2065, MaxStatusLineLength(DefaultMaxURILength))
}
