// Package store implements the labeled-property-graph store (component C5):
// node and edge records, the label and edge-type dictionaries, the label
// index, and forward/optional-backward adjacency.
//
// Generalized from the reference storage engine's `MemoryEngine`
// (Neo4j-style string labels, inline JSON properties) into the
// bitmap-label / dictionary-interned / columnar-property model spec.md §3
// requires, wiring together pkg/adjacency (C3) and pkg/propcol (C4).
package store

import (
	"errors"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// Common store errors.
var (
	ErrNodeNotFound     = errors.New("store: node not found")
	ErrEdgeNotFound     = errors.New("store: edge not found")
	ErrTooManyLabels    = errors.New("store: label dictionary is at its 64-label capacity")
	ErrEndpointNotFound = errors.New("store: edge endpoint node not found")
)

// Direction selects which adjacency to traverse from Neighbors/EdgesFrom.
type Direction uint8

const (
	Out Direction = iota
	In
	Both
)

// Node is the in-memory representation of a graph node, reconstructed by
// GetNode from the raw record plus the label dictionary and property
// columns. Properties are assembled on read, not stored inline (spec.md §3).
type Node struct {
	ID         value.NodeId
	Labels     []string
	Properties map[string]value.Value
	CreatedAt  value.EpochId
}

// Edge is the in-memory representation of a graph edge, reconstructed by
// GetEdge the same way Node is.
type Edge struct {
	ID         value.EdgeId
	Src        value.NodeId
	Dst        value.NodeId
	Type       string
	Properties map[string]value.Value
	CreatedAt  value.EpochId
}

// nodeRecord is the compact record actually stored for each node: a label
// bitmap (not label strings) and no inline properties, per spec.md §3.
type nodeRecord struct {
	id           value.NodeId
	epochCreated value.EpochId
	labelBitmap  uint64
	propsCount   int
	deleted      bool
}

// edgeRecord is the compact record actually stored for each edge.
type edgeRecord struct {
	id           value.EdgeId
	src          value.NodeId
	dst          value.NodeId
	typeID       value.EdgeTypeId
	epochCreated value.EpochId
	deleted      bool
}
