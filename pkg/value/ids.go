// Package value defines the tagged value variant and identifier types shared
// by every layer of the engine, from the property columns up through the
// executor's columnar chunks.
//
// Keeping these types in one leaf package (with no imports from the rest of
// the engine) means the storage layer, the plan IR, and the executor can all
// depend on them without creating import cycles.
package value

import "fmt"

// NodeId identifies a node for the lifetime of the database. Ids are
// assigned monotonically by the LPG store and are never reused, even after
// a node is deleted.
type NodeId uint64

// EdgeId identifies an edge for the lifetime of the database, with the same
// monotonic, never-reused allocation policy as NodeId.
type EdgeId uint64

// TxId identifies a transaction. Allocated monotonically by the transaction
// manager.
type TxId uint64

// EpochId marks a point in commit history. Readers pin an epoch at the
// start of a transaction for snapshot-isolated reads; writers bump the
// epoch on commit.
type EpochId uint64

// LabelId is the interned, dictionary-assigned identifier for a node label.
// It is 8 bits wide because the node record's label set is stored as a
// 64-bit bitmap: at most 64 distinct labels may ever be interned.
type LabelId uint8

// MaxLabels is the hard cap on distinct labels enforced at interning time,
// matching the 64-bit width of a node's label bitmap.
const MaxLabels = 64

// EdgeTypeId is the interned, dictionary-assigned identifier for an edge
// type.
type EdgeTypeId uint32

func (id NodeId) String() string     { return fmt.Sprintf("n%d", uint64(id)) }
func (id EdgeId) String() string     { return fmt.Sprintf("e%d", uint64(id)) }
func (id TxId) String() string       { return fmt.Sprintf("tx%d", uint64(id)) }
func (id EpochId) String() string    { return fmt.Sprintf("ep%d", uint64(id)) }
func (id LabelId) String() string    { return fmt.Sprintf("lbl%d", uint8(id)) }
func (id EdgeTypeId) String() string { return fmt.Sprintf("etype%d", uint32(id)) }
