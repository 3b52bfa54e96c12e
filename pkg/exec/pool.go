package exec

import (
	"sync"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// ChunkPool reuses DataChunks of a fixed schema, the way the reference
// engine's pkg/pool reuses row slices and string builders: acquiring from
// a sync.Pool instead of allocating, and resetting before reuse rather
// than freeing.
type ChunkPool struct {
	names    []string
	types    []value.LogicalType
	capacity int
	pool     sync.Pool
}

// NewChunkPool builds a pool of DataChunks sharing the given schema.
func NewChunkPool(names []string, types []value.LogicalType, capacity int) *ChunkPool {
	p := &ChunkPool{names: names, types: types, capacity: capacity}
	p.pool.New = func() any {
		return NewDataChunk(p.names, p.types, p.capacity)
	}
	return p
}

// Get returns a DataChunk from the pool, already Reset.
func (p *ChunkPool) Get() *DataChunk {
	chunk := p.pool.Get().(*DataChunk)
	chunk.Reset()
	return chunk
}

// Put returns chunk to the pool for reuse.
func (p *ChunkPool) Put(chunk *DataChunk) {
	p.pool.Put(chunk)
}
