package headers

import (
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/xaitan80/httpingest/internal/protocol"
)

// Well-known header names.
const (
	Cookie        = "Cookie"
	ContentLength = "Content-Length"
	ContentType   = "Content-Type"
	Connection    = "Connection"
	SetCookie     = "Set-Cookie"
)

// Field is one header as it appeared on the wire.
type Field struct {
	Name  string
	Value string
}

// Headers is an ordered header map with case-insensitive lookup.
// Names are indexed by their lower-cased form; the original spelling
// is kept for iteration. Setting an existing name replaces its value
// in place (last one wins).
type Headers struct {
	index  map[string]int
	fields []Field
}

// NewHeaders creates an empty Headers map.
func NewHeaders() *Headers {
	return &Headers{index: make(map[string]int)}
}

// Parse parses a raw header block (terminator already stripped).
// Blocks of three bytes or fewer carry nothing and yield empty headers.
func Parse(block string) (*Headers, error) {
	h := NewHeaders()
	if err := h.Parse(block); err != nil {
		return nil, err
	}
	return h, nil
}

// Parse adds every "Name: value" line of block to h.
// Lines end in LF; a CR before it is ignored.
func (h *Headers) Parse(block string) error {
	if len(block) <= 3 {
		return nil
	}
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		// Split on the first ':' only (values can contain ':').
		colon := strings.IndexByte(line, ':')
		if colon == -1 {
			return protocol.Malformed("invalid header %q: missing colon", line)
		}
		name := line[:colon]
		if !httpguts.ValidHeaderFieldName(name) {
			return protocol.Malformed("invalid header name %q", name)
		}
		h.Set(name, strings.TrimSpace(line[colon+1:]))
	}
	return nil
}

// Set stores value under name, replacing any previous value. Fields
// appended with Add under the same name are dropped.
func (h *Headers) Set(name, value string) {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	key := strings.ToLower(name)
	if i, ok := h.index[key]; ok {
		h.fields[i] = Field{Name: name, Value: value}
		h.dropRepeats(key, i)
		return
	}
	h.index[key] = len(h.fields)
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// Add appends a field without replacing earlier ones. Responses use it
// for headers that may repeat, such as Set-Cookie. Lookups still see
// the first value.
func (h *Headers) Add(name, value string) {
	key := strings.ToLower(name)
	if _, ok := h.index[key]; !ok {
		h.Set(name, value)
		return
	}
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// dropRepeats removes the fields named key after position first.
func (h *Headers) dropRepeats(key string, first int) {
	kept := h.fields[:first+1]
	for _, f := range h.fields[first+1:] {
		if strings.ToLower(f.Name) != key {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(h.fields) {
		return
	}
	h.fields = kept
	clear(h.index)
	for i, f := range h.fields {
		k := strings.ToLower(f.Name)
		if _, ok := h.index[k]; !ok {
			h.index[k] = i
		}
	}
}

// Lookup returns the value stored under name, ignoring case.
func (h *Headers) Lookup(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	i, ok := h.index[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return h.fields[i].Value, true
}

// Get returns the value stored under name, or "" when absent.
func (h *Headers) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Has reports whether name is present.
func (h *Headers) Has(name string) bool {
	_, ok := h.Lookup(name)
	return ok
}

// Len returns the number of fields. For parsed headers that is the
// number of distinct names.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// Fields returns the headers in the order they were first seen.
func (h *Headers) Fields() []Field {
	if h == nil {
		return nil
	}
	out := make([]Field, len(h.fields))
	copy(out, h.fields)
	return out
}
