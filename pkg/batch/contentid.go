package batch

import (
	"fmt"
	"net/url"
	"strings"
)

// ContentIDTable maps the Content-ID of each completed operation to its
// resolved URI. It is scoped to one batch, owned by the writer, and passed by
// reference into the URI-resolution hook. An entry is registered only after
// the owning operation's preamble is fully flushed, so the table can never
// contain the in-flight operation's own id.
type ContentIDTable struct {
	refs map[string]string
}

// NewContentIDTable creates an empty table.
func NewContentIDTable() *ContentIDTable {
	return &ContentIDTable{refs: make(map[string]string)}
}

// Register records id as resolving to uri. A later registration for the same
// id wins; ids are expected to be unique per batch.
func (t *ContentIDTable) Register(id, uri string) {
	t.refs[id] = uri
}

// Lookup returns the URI registered for id.
func (t *ContentIDTable) Lookup(id string) (string, bool) {
	uri, ok := t.refs[id]
	return uri, ok
}

// Contains reports whether id has been registered.
func (t *ContentIDTable) Contains(id string) bool {
	_, ok := t.refs[id]
	return ok
}

// Len returns the number of registered ids.
func (t *ContentIDTable) Len() int {
	return len(t.refs)
}

// PayloadURIOption selects how an operation URI is written on the wire.
type PayloadURIOption int

const (
	// AbsoluteURI resolves relative URIs against the configured base URI.
	AbsoluteURI PayloadURIOption = iota

	// AbsoluteURIUsingHostHeader leaves the URI as given; the authority is
	// supplied by the operation's Host header.
	AbsoluteURIUsingHostHeader

	// RelativeURI writes the URI relative to the configured base URI.
	RelativeURI
)

// URIResolver maps a possibly relative or Content-ID-referencing operation
// URI to the form written on the wire. The refs table holds the Content-IDs
// of every completed operation in the current batch.
type URIResolver interface {
	ResolveURI(uri string, option PayloadURIOption, refs *ContentIDTable) (string, error)
}

// baseResolver is the default URIResolver. A nil base leaves non-reference
// URIs untouched.
type baseResolver struct {
	base *url.URL
}

// NewBaseResolver creates a URIResolver resolving against base. An empty
// base returns URIs as given, after Content-ID substitution.
func NewBaseResolver(base string) (URIResolver, error) {
	if base == "" {
		return &baseResolver{}, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base uri: %w", err)
	}
	// The base is a service root: a trailing slash keeps its last path
	// segment when relative URIs resolve against it.
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &baseResolver{base: u}, nil
}

// ResolveURI substitutes $<id> references from the table, then applies the
// payload URI option.
func (r *baseResolver) ResolveURI(raw string, option PayloadURIOption, refs *ContentIDTable) (string, error) {
	if strings.HasPrefix(raw, "$") {
		id, tail := splitReference(raw[1:])
		target, ok := refs.Lookup(id)
		if !ok {
			return "", newError(ReasonMissingContentIDReference,
				"uri %q references Content-ID %q, but no completed operation registered it", raw, id)
		}
		return target + tail, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse operation uri %q: %w", raw, err)
	}

	switch option {
	case RelativeURI:
		if r.base == nil || !u.IsAbs() {
			return raw, nil
		}
		base := r.base.String()
		if rel, ok := strings.CutPrefix(raw, base); ok {
			return strings.TrimPrefix(rel, "/"), nil
		}
		return raw, nil

	case AbsoluteURIUsingHostHeader:
		return raw, nil

	default: // AbsoluteURI
		if u.IsAbs() || r.base == nil {
			return raw, nil
		}
		return r.base.ResolveReference(u).String(), nil
	}
}

// splitReference splits "1/Orders" into the id "1" and the tail "/Orders".
func splitReference(ref string) (id, tail string) {
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		return ref[:i], ref[i:]
	}
	return ref, ""
}
