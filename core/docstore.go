package core

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDocNotFound is returned by GetDocument when no document exists
	// at the given path. Query misses return an empty list instead.
	ErrDocNotFound = errors.New("document not found")

	// ErrPermissionDenied is returned when the store's access rules
	// reject the operation (e.g. reading private records while signed out).
	ErrPermissionDenied = errors.New("permission denied")
)

type (
	// DocumentStore is the remote, schema-less document database the app
	// reads from and writes to. Collection paths are hierarchical, e.g.
	// "courses/<courseID>/lessons" or "users/<userID>/progress".
	// Writes become visible eventually; reads see the last acknowledged
	// state of the backing store.
	DocumentStore interface {
		GetDocument(ctx context.Context, path, id string) (Document, error)
		QueryCollection(ctx context.Context, path string, filters []Filter, order ...Ordering) ([]Document, error)
		AddDocument(ctx context.Context, path string, fields map[string]interface{}) (string, error)
		// SetDocument replaces the document, or merges `fields` into it
		// when merge is true (upsert either way).
		SetDocument(ctx context.Context, path, id string, fields map[string]interface{}, merge bool) error
		DeleteDocument(ctx context.Context, path, id string) error
	}

	Filter struct {
		Field string
		Op    string // "==", "<", "<=", ">", ">="
		Value interface{}
	}

	Ordering struct {
		Field     string
		Ascending bool
	}

	// Document is a raw record: an id plus loosely typed fields.
	Document struct {
		ID     string
		Fields map[string]interface{}
	}
)

func Where(field, op string, value interface{}) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

func OrderBy(field string, asc bool) Ordering {
	return Ordering{Field: field, Ascending: asc}
}

// field accessors; the store is schema-less so missing or mistyped
// fields read as zero values.

func (d Document) Str(key string) string {
	s, _ := d.Fields[key].(string)
	return s
}

func (d Document) Int(key string) int {
	switch v := d.Fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (d Document) Float(key string) float64 {
	switch v := d.Fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func (d Document) Bool(key string) bool {
	b, _ := d.Fields[key].(bool)
	return b
}

func (d Document) Time(key string) time.Time {
	switch v := d.Fields[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (d Document) Strings(key string) []string {
	switch v := d.Fields[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
