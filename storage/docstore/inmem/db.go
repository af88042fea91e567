package inmemdocs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
)

// DB is an in-memory core.DocumentStore for DEV and tests. Access rules
// and transport failures can be injected per collection path to exercise
// the degraded paths of the data layer.
type DB struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{} // path -> id -> fields
	denied      map[string]bool
	faults      map[string]error
}

var _ core.DocumentStore = (*DB)(nil)

func Open() *DB {
	return &DB{
		collections: make(map[string]map[string]map[string]interface{}),
		denied:      make(map[string]bool),
		faults:      make(map[string]error),
	}
}

// Deny makes every operation on the collection path fail with
// core.ErrPermissionDenied, as the real store does for unauthenticated
// reads of private records.
func (db *DB) Deny(path string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.denied[path] = true
}

func (db *DB) Allow(path string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.denied, path)
}

// Fail injects a transport error for the collection path until cleared
// with ClearFault.
func (db *DB) Fail(path string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.faults[path] = err
}

func (db *DB) ClearFault(path string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.faults, path)
}

// Put seeds a document directly, bypassing access checks.
func (db *DB) Put(path, id string, fields map[string]interface{}) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.putLocked(path, id, copyFields(fields))
}

func (db *DB) checkLocked(path string) error {
	if err := db.faults[path]; err != nil {
		return err
	}
	if db.denied[path] {
		return core.ErrPermissionDenied
	}
	return nil
}

func (db *DB) putLocked(path, id string, fields map[string]interface{}) {
	coll, ok := db.collections[path]
	if !ok {
		coll = make(map[string]map[string]interface{})
		db.collections[path] = coll
	}
	coll[id] = fields
}

func (db *DB) GetDocument(ctx context.Context, path, id string) (core.Document, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if err := db.checkLocked(path); err != nil {
		return core.Document{}, err
	}
	fields, ok := db.collections[path][id]
	if !ok {
		return core.Document{}, core.ErrDocNotFound
	}
	return core.Document{ID: id, Fields: copyFields(fields)}, nil
}

func (db *DB) QueryCollection(ctx context.Context, path string, filters []core.Filter, order ...core.Ordering) ([]core.Document, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if err := db.checkLocked(path); err != nil {
		return nil, err
	}
	docs := make([]core.Document, 0, len(db.collections[path]))
	for id, fields := range db.collections[path] {
		if matches(fields, filters) {
			docs = append(docs, core.Document{ID: id, Fields: copyFields(fields)})
		}
	}
	// stable base order so unordered queries stay deterministic
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	for k := len(order) - 1; k >= 0; k-- {
		ord := order[k]
		sort.SliceStable(docs, func(i, j int) bool {
			less := compare(docs[i].Fields[ord.Field], docs[j].Fields[ord.Field]) < 0
			if ord.Ascending {
				return less
			}
			return compare(docs[i].Fields[ord.Field], docs[j].Fields[ord.Field]) > 0
		})
	}
	return docs, nil
}

func (db *DB) AddDocument(ctx context.Context, path string, fields map[string]interface{}) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkLocked(path); err != nil {
		return "", err
	}
	id := uuid.New().String()
	db.putLocked(path, id, copyFields(fields))
	return id, nil
}

func (db *DB) SetDocument(ctx context.Context, path, id string, fields map[string]interface{}, merge bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkLocked(path); err != nil {
		return err
	}
	if merge {
		if existing, ok := db.collections[path][id]; ok {
			merged := copyFields(existing)
			for k, v := range fields {
				merged[k] = v
			}
			db.putLocked(path, id, merged)
			return nil
		}
	}
	db.putLocked(path, id, copyFields(fields))
	return nil
}

func (db *DB) DeleteDocument(ctx context.Context, path, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkLocked(path); err != nil {
		return err
	}
	if _, ok := db.collections[path][id]; !ok {
		return core.ErrDocNotFound
	}
	delete(db.collections[path], id)
	return nil
}

func matches(fields map[string]interface{}, filters []core.Filter) bool {
	for _, f := range filters {
		c := compare(fields[f.Field], f.Value)
		switch f.Op {
		case "==":
			if c != 0 {
				return false
			}
		case "<":
			if c >= 0 {
				return false
			}
		case "<=":
			if c > 0 {
				return false
			}
		case ">":
			if c <= 0 {
				return false
			}
		case ">=":
			if c < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compare orders two loosely typed field values: numerically when both
// are numbers, lexically otherwise.
func compare(a, b interface{}) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
