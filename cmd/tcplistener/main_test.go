package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaitan80/httpingest/internal/request"
)

func Test_Print_Request(t *testing.T) {
	r, err := request.RequestFromReader(strings.NewReader(
		"GET /coffee?size=large HTTP/1.1\r\nHost: localhost:42069\r\nAccept: */*\r\n\r\n"))
	require.NoError(t, err)

	var buf bytes.Buffer
	printRequest(&buf, r)
	assert.Equal(t, "Request line:\n"+
		"- Method: GET\n"+
		"- Target: /coffee\n"+
		"- Version: HTTP/1.1\n"+
		"Headers:\n"+
		"- Host: localhost:42069\n"+
		"- Accept: */*\n"+
		"Query:\n"+
		"- size: large\n", buf.String())
}
