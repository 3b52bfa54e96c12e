package store

import (
	"sync"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// labelIndex maps a LabelId to the set of currently-live node ids carrying
// that label, giving NodesByLabel its O(|label set|) contract (spec.md
// §4.3).
type labelIndex struct {
	mu      sync.RWMutex
	members map[value.LabelId]map[value.NodeId]struct{}
}

func newLabelIndex() *labelIndex {
	return &labelIndex{members: make(map[value.LabelId]map[value.NodeId]struct{})}
}

func (idx *labelIndex) Add(label value.LabelId, node value.NodeId) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	set, ok := idx.members[label]
	if !ok {
		set = make(map[value.NodeId]struct{})
		idx.members[label] = set
	}
	set[node] = struct{}{}
}

func (idx *labelIndex) Remove(label value.LabelId, node value.NodeId) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if set, ok := idx.members[label]; ok {
		delete(set, node)
	}
}

// RemoveAll clears node from every label in labels, used when a node is
// deleted.
func (idx *labelIndex) RemoveAll(labels []value.LabelId, node value.NodeId) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, label := range labels {
		if set, ok := idx.members[label]; ok {
			delete(set, node)
		}
	}
}

func (idx *labelIndex) Nodes(label value.LabelId) []value.NodeId {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	set := idx.members[label]
	out := make([]value.NodeId, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (idx *labelIndex) Count(label value.LabelId) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.members[label])
}
