package form

import "strings"

// Cookie is a single name/value pair sent by the client.
type Cookie struct {
	Name  string
	Value string
}

// ParseCookies decodes a Cookie header value. Entries without '=' or
// with an empty name are skipped.
func ParseCookies(header string) map[string]Cookie {
	cookies := make(map[string]Cookie)
	for _, entry := range strings.Split(header, ";") {
		entry = strings.TrimSpace(entry)
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		cookies[name] = Cookie{Name: name, Value: unescape(value)}
	}
	return cookies
}
