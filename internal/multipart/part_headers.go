package multipart

import (
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/xaitan80/httpingest/internal/protocol"
)

// PartHeaders describes one part of a multipart/form-data body.
type PartHeaders struct {
	Name           string
	FileName       string
	HasFileName    bool
	ContentType    string
	HasContentType bool
}

// IsFile reports whether the part carried a filename parameter.
func (h PartHeaders) IsFile() bool { return h.HasFileName }

// ParsePartHeaders parses the small header block that opens a part, e.g.
//
//	Content-Disposition: form-data; name="avatar"; filename="me.jpg"
//	Content-Type: image/jpeg
//
// Header and parameter names are case-insensitive. A quoted parameter
// value without its closing quote is malformed input.
func ParsePartHeaders(block string) (PartHeaders, error) {
	var h PartHeaders
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return PartHeaders{}, protocol.Malformed("invalid part header %q: missing colon", line)
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "content-disposition":
			params, err := parseDispositionParams(value)
			if err != nil {
				return PartHeaders{}, err
			}
			if v, ok := params["name"]; ok {
				h.Name = v
			}
			if v, ok := params["filename"]; ok {
				h.FileName, h.HasFileName = v, true
			}
		case "content-type":
			h.ContentType, h.HasContentType = value, true
		}
	}
	return h, nil
}

// parseDispositionParams returns the lower-cased parameters following the
// disposition type: form-data; name="a"; filename="b".
func parseDispositionParams(v string) (map[string]string, error) {
	params := make(map[string]string)
	semi := strings.IndexByte(v, ';')
	if semi == -1 {
		return params, nil
	}
	rest := v[semi+1:]
	for {
		rest = strings.TrimLeft(rest, " \t;")
		if rest == "" {
			return params, nil
		}
		eq := strings.IndexByte(rest, '=')
		if eq == -1 {
			return nil, protocol.Malformed("parameter %q has no value", rest)
		}
		name := strings.TrimSpace(rest[:eq])
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, protocol.Malformed("invalid parameter name %q", name)
		}
		rest = strings.TrimLeft(rest[eq+1:], " \t")

		var value string
		if strings.HasPrefix(rest, `"`) {
			var n int
			var ok bool
			value, n, ok = readQuoted(rest)
			if !ok {
				return nil, protocol.Malformed("unterminated quoted value for parameter %q", name)
			}
			rest = rest[n:]
		} else {
			end := strings.IndexAny(rest, "; \t")
			if end == -1 {
				end = len(rest)
			}
			value, rest = rest[:end], rest[end:]
		}
		params[strings.ToLower(name)] = value
	}
}

// readQuoted reads a quoted-string at the start of s. It returns the
// unescaped value and the number of bytes consumed including both quotes.
func readQuoted(s string) (string, int, bool) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			return b.String(), i + 1, true
		case '\\':
			// only \" and \\ are escapes; browsers send raw backslashes in paths
			if i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
				i++
				b.WriteByte(s[i])
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, false
}
