package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaitan80/httpingest/internal/request"
	"github.com/xaitan80/httpingest/internal/response"
)

func serve(t *testing.T, raw string) (string, bool) {
	t.Helper()
	r, err := request.RequestFromReader(strings.NewReader(raw))
	require.NoError(t, err)
	var buf bytes.Buffer
	herr := route(r, response.NewWriter(&buf))
	if herr != nil {
		return string(herr.Body), false
	}
	return buf.String(), true
}

func Test_Cookies_Counts_Hits(t *testing.T) {
	out, ok := serve(t, "GET /cookies HTTP/1.1\r\nHost: localhost\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, out, "Set-Cookie: page_hits=1\r\n")
	assert.Contains(t, out, "Set-Cookie: first_visited_at=")
	assert.Contains(t, out, "<p>Cookie page hits: 1</p>")

	out, ok = serve(t, "GET /cookies HTTP/1.1\r\nCookie: page_hits=4; first_visited_at=Mon%2C+01+Jan\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, out, "Set-Cookie: page_hits=5\r\n")
	assert.NotContains(t, out, "first_visited_at=")
	assert.Contains(t, out, "<p>First visited at: Mon, 01 Jan</p>")
}

func Test_Cookies_Rejects_Bad_Counter(t *testing.T) {
	out, ok := serve(t, "GET /cookies HTTP/1.1\r\nCookie: page_hits=lots\r\n\r\n")
	assert.False(t, ok)
	assert.Contains(t, out, "400 Bad Request")
}

func Test_Echo_Describes_Request(t *testing.T) {
	out, ok := serve(t, "POST /form?b=2&a=1 HTTP/1.1\r\n"+
		"Content-Type: application/x-www-form-urlencoded\r\n"+
		"Content-Length: 9\r\n"+
		"\r\n"+
		"name=jane")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, out, "POST /form HTTP/1.1\n")
	assert.Contains(t, out, "get:\n  a=1\n  b=2\n")
	assert.Contains(t, out, "post:\n  name=jane\n")
}

func Test_Problem_Routes(t *testing.T) {
	out, ok := serve(t, "GET /yourproblem HTTP/1.1\r\n\r\n")
	assert.False(t, ok)
	assert.Contains(t, out, "Bad Request")

	out, ok = serve(t, "GET /myproblem HTTP/1.1\r\n\r\n")
	assert.False(t, ok)
	assert.Contains(t, out, "Internal Server Error")
}
