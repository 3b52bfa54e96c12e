package spill

import (
	"fmt"
	"hash/fnv"
)

// DefaultPartitionCount is the fixed partition fan-out spec.md §4.10 item 3
// specifies for HashAggregate/HashJoin spilling.
const DefaultPartitionCount = 256

// PartitionedState hash-partitions rows on an aggregation/join key into a
// fixed number of spill files. The partition function is deterministic for
// a given key encoding, so independently partitioning the build and probe
// sides of a spilled hash join lines up matching keys in the same
// partition index on both sides.
type PartitionedState struct {
	dir   string
	n     int
	files []*SpillFile
}

// NewPartitionedState creates n partition spill files under dir (n<=0
// defaults to DefaultPartitionCount).
func NewPartitionedState(dir string, n int) (*PartitionedState, error) {
	if n <= 0 {
		n = DefaultPartitionCount
	}
	p := &PartitionedState{dir: dir, n: n, files: make([]*SpillFile, n)}
	for i := range p.files {
		f, err := Create(dir, fmt.Sprintf("part-%03d", i))
		if err != nil {
			p.closeOpened(i)
			return nil, err
		}
		p.files[i] = f
	}
	return p, nil
}

func (p *PartitionedState) closeOpened(upTo int) {
	for i := 0; i < upTo; i++ {
		_ = p.files[i].Close()
		_ = p.files[i].Remove()
	}
}

// PartitionOf returns the deterministic partition index for key.
func (p *PartitionedState) PartitionOf(key Row) (int, error) {
	payload, err := encodeRow(key)
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	_, _ = h.Write(payload)
	return int(h.Sum64() % uint64(p.n)), nil
}

// Add routes row into the partition its key hashes to.
func (p *PartitionedState) Add(key Row, row Row) error {
	idx, err := p.PartitionOf(key)
	if err != nil {
		return err
	}
	return p.files[idx].WriteRow(row)
}

// Count returns the number of partitions.
func (p *PartitionedState) Count() int { return p.n }

// PartitionReader closes every partition's writer and returns readers for
// each, for a caller to aggregate partition-by-partition (recursing into a
// fresh PartitionedState for any partition that is still oversized).
func (p *PartitionedState) PartitionReaders() ([]*Reader, error) {
	readers := make([]*Reader, p.n)
	for i, f := range p.files {
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("spill: close partition %d: %w", i, err)
		}
		r, err := OpenReader(f.Path())
		if err != nil {
			return nil, err
		}
		readers[i] = r
	}
	return readers, nil
}

// Close releases every partition file's resources and deletes its backing
// file (called once a partition's rows are fully consumed/aggregated).
func (p *PartitionedState) Close() error {
	var firstErr error
	for _, f := range p.files {
		if err := f.Remove(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
