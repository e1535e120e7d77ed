package request

import (
	"errors"
	"strings"

	"github.com/xaitan80/httpingest/internal/protocol"
)

// Status is the parsed request line.
type Status struct {
	Method      string
	URI         string
	QueryString string
	Protocol    string
}

// readStatusLine reads the request line, rejecting an unknown method as
// soon as its token ends and bounding the whole line by max bytes.
func (lr *lineReader) readStatusLine(max int) (string, error) {
	methodRead := false
	line, err := lr.readLine(max, func(line []byte) error {
		if methodRead {
			return nil
		}
		if line[len(line)-1] == ' ' {
			methodRead = true
			method := strings.ToUpper(string(line[:len(line)-1]))
			if !protocol.IsMethodValid(method) {
				return protocol.Errorf(protocol.ErrUnsupportedMethod, "method %s is not supported", method)
			}
		} else if len(line) > protocol.MaxMethodLength {
			return protocol.Errorf(protocol.ErrUnsupportedMethod, "method name is longer than expected")
		}
		return nil
	})
	if errors.Is(err, errLineTooLong) {
		return "", protocol.Errorf(protocol.ErrStatusLineTooLong, "exceeded max size of %d", max)
	}
	if err != nil {
		return "", err
	}
	return string(line), nil
}

// ParseStatusLine splits "METHOD SP URI[?QUERY] SP PROTOCOL" (a trailing
// CR is ignored). The method is upper-cased and must be recognized.
func ParseStatusLine(line string) (Status, error) {
	line = strings.TrimSuffix(line, "\r")
	method, rest, _ := strings.Cut(line, " ")
	method = strings.ToUpper(method)
	if !protocol.IsMethodValid(method) {
		return Status{}, protocol.Errorf(protocol.ErrUnsupportedMethod, "method %s is not supported", method)
	}
	target, proto, ok := strings.Cut(rest, " ")
	if !ok || target == "" || strings.Contains(proto, " ") {
		return Status{}, protocol.Malformed("invalid status line %q", line)
	}
	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return Status{}, protocol.Malformed("unsupported protocol %q", proto)
	}
	uri, query, _ := strings.Cut(target, "?")
	return Status{
		Method:      method,
		URI:         uri,
		QueryString: query,
		Protocol:    proto,
	}, nil
}
