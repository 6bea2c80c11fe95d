package batch

import "strings"

// Headers is a header mapping with unique keys and preserved insertion
// order. Order is semantically significant: it is the byte order on the
// wire. Lookup is case-insensitive; the name as first set is the name
// emitted.
type Headers struct {
	entries []headerEntry
	index   map[string]int
}

type headerEntry struct {
	name  string
	value string
}

// NewHeaders creates an empty header mapping.
func NewHeaders() *Headers {
	return &Headers{index: make(map[string]int)}
}

// Set adds the header or, if a case-insensitive match exists, replaces its
// value in place without changing its position.
func (h *Headers) Set(name, value string) {
	key := strings.ToLower(name)
	if i, ok := h.index[key]; ok {
		h.entries[i].value = value
		return
	}
	h.index[key] = len(h.entries)
	h.entries = append(h.entries, headerEntry{name: name, value: value})
}

// Get returns the value for name, matching case-insensitively.
func (h *Headers) Get(name string) (string, bool) {
	i, ok := h.index[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return h.entries[i].value, true
}

// Len returns the number of headers.
func (h *Headers) Len() int {
	return len(h.entries)
}

// Each calls fn for every header in insertion order.
func (h *Headers) Each(fn func(name, value string)) {
	for _, e := range h.entries {
		fn(e.name, e.value)
	}
}
