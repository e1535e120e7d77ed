package response

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Writer_Full_Response(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	assert.False(t, w.WroteAnything())

	require.NoError(t, w.WriteStatusLine(StatusOK))
	h := GetDefaultHeaders(5)
	h.Set("Set-Cookie", "page_hits=1")
	require.NoError(t, w.WriteHeaders(h))
	_, err := w.WriteBody([]byte("hello"))
	require.NoError(t, err)

	assert.True(t, w.WroteAnything())
	assert.Equal(t, "HTTP/1.1 200 OK\r\n"+
		"Content-Length: 5\r\n"+
		"Connection: close\r\n"+
		"Content-Type: text/plain\r\n"+
		"Set-Cookie: page_hits=1\r\n"+
		"\r\n"+
		"hello", buf.String())
}

func Test_Writer_Enforces_Order(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	assert.ErrorIs(t, w.WriteHeaders(GetDefaultHeaders(0)), ErrWriteOrder)
	_, err := w.WriteBody([]byte("x"))
	assert.ErrorIs(t, err, ErrWriteOrder)
	require.NoError(t, w.WriteStatusLine(StatusBadRequest))
	assert.ErrorIs(t, w.WriteStatusLine(StatusOK), ErrWriteOrder)
}

func Test_Status_Lines(t *testing.T) {
	tests := map[StatusCode]string{
		StatusURITooLong:           "HTTP/1.1 414 Request-URI Too Long\r\n",
		StatusNotImplemented:       "HTTP/1.1 501 Not Implemented\r\n",
		StatusHeaderFieldsTooLarge: "HTTP/1.1 431 Request Header Fields Too Large\r\n",
		StatusCode(418):            "HTTP/1.1 418\r\n",
	}
	for code, want := range tests {
		var buf bytes.Buffer
		require.NoError(t, WriteStatusLine(&buf, code))
		assert.Equal(t, want, buf.String())
	}
}
