package store

import (
	"sync"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// labelDictionary interns label strings to LabelId values using the
// double-checked-lookup idiom spec.md §4.3 calls for: a read-locked lookup
// first, and only on a miss does the writer take the exclusive lock and
// re-check before inserting (another goroutine may have interned the same
// label while the first reader's lock was released). Ids are assigned as
// the dictionary's length at insertion time and are stable for the
// database's lifetime, per spec.md §3.
type labelDictionary struct {
	mu     sync.RWMutex
	byName map[string]value.LabelId
	byID   []string
}

func newLabelDictionary() *labelDictionary {
	return &labelDictionary{byName: make(map[string]value.LabelId)}
}

// Intern returns the LabelId for name, creating it if this is the first
// time name has been seen. Returns ErrTooManyLabels once 64 distinct labels
// have been interned, matching the label bitmap's width.
func (d *labelDictionary) Intern(name string) (value.LabelId, error) {
	d.mu.RLock()
	if id, ok := d.byName[name]; ok {
		d.mu.RUnlock()
		return id, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	// Retry under the write lock: another writer may have interned this
	// label while we were waiting.
	if id, ok := d.byName[name]; ok {
		return id, nil
	}
	if len(d.byID) >= value.MaxLabels {
		return 0, ErrTooManyLabels
	}
	id := value.LabelId(len(d.byID))
	d.byID = append(d.byID, name)
	d.byName[name] = id
	return id, nil
}

// Lookup returns the LabelId already assigned to name, if any, without
// interning it.
func (d *labelDictionary) Lookup(name string) (value.LabelId, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[name]
	return id, ok
}

// Name returns the label string for id.
func (d *labelDictionary) Name(id value.LabelId) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.byID) {
		return "", false
	}
	return d.byID[id], true
}

// edgeTypeDictionary interns edge-type strings to EdgeTypeId values using
// the same double-checked idiom as labelDictionary, but without a capacity
// cap (EdgeTypeId is 32 bits wide, per spec.md §3).
type edgeTypeDictionary struct {
	mu     sync.RWMutex
	byName map[string]value.EdgeTypeId
	byID   []string
}

func newEdgeTypeDictionary() *edgeTypeDictionary {
	return &edgeTypeDictionary{byName: make(map[string]value.EdgeTypeId)}
}

func (d *edgeTypeDictionary) Intern(name string) value.EdgeTypeId {
	d.mu.RLock()
	if id, ok := d.byName[name]; ok {
		d.mu.RUnlock()
		return id
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.byName[name]; ok {
		return id
	}
	id := value.EdgeTypeId(len(d.byID))
	d.byID = append(d.byID, name)
	d.byName[name] = id
	return id
}

func (d *edgeTypeDictionary) Lookup(name string) (value.EdgeTypeId, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[name]
	return id, ok
}

func (d *edgeTypeDictionary) Name(id value.EdgeTypeId) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.byID) {
		return "", false
	}
	return d.byID[id], true
}
