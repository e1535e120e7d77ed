// Package form decodes url-encoded query strings and Cookie header values.
// Neither decoder fails: input that does not decode is kept as-is or skipped.
package form

import (
	"net/url"
	"strings"
)

// ParseQuery decodes an x-www-form-urlencoded string into a parameter map.
// A pair without '=' is a name with an empty value. Pairs with an empty
// name are dropped. Later duplicates overwrite earlier ones.
func ParseQuery(query string) map[string]string {
	params := make(map[string]string)
	if query == "" {
		return params
	}
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		name = unescape(name)
		if name == "" {
			continue
		}
		params[name] = unescape(value)
	}
	return params
}

// unescape percent-decodes s ('+' is a space), returning s untouched
// when it holds a broken escape.
func unescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	u, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return u
}
