package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// URI is a parsed tube address: namespace://database/collection[:id][?k=v]
type URI struct {
	Params     url.Values
	Namespace  string
	Database   string
	Collection string
	ID         string
}

// ParseURI parses a tube or object URI.
// The id of an object may be given as collection:id, collection/id or ?id=...
func ParseURI(raw string) (*URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURI, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q: namespace and database are required", ErrInvalidURI, raw)
	}

	parsed := &URI{
		Namespace: u.Scheme,
		Database:  u.Host,
		Params:    u.Query(),
	}

	path := strings.Trim(u.Path, "/")
	if path != "" {
		segments := strings.SplitN(path, "/", 2)
		parsed.Collection = segments[0]
		if len(segments) == 2 {
			parsed.ID = segments[1]
		}
		// thing notation: collection:id
		if i := strings.LastIndex(parsed.Collection, ":"); i >= 0 {
			parsed.ID = parsed.Collection[i+1:]
			parsed.Collection = parsed.Collection[:i]
		}
	}
	if parsed.ID == "" {
		parsed.ID = parsed.Params.Get(IDKey)
	}

	return parsed, nil
}

// Prefix returns namespace://database
func (u *URI) Prefix() string {
	return u.Namespace + "://" + u.Database
}

// Path returns namespace://database/collection without id or query
func (u *URI) Path() string {
	if u.Collection == "" {
		return u.Prefix()
	}
	return u.Prefix() + "/" + u.Collection
}

// Table returns the URI of another table in the same namespace and database
func (u *URI) Table(collection string) string {
	return u.Prefix() + "/" + collection
}

// TableURI derives the URI of table from any URI sharing its namespace and database
func TableURI(prefix, table string) (string, error) {
	u, err := ParseURI(prefix)
	if err != nil {
		return "", err
	}
	return u.Table(table), nil
}
