package spill

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Less reports whether a sorts before b, the only comparison ExternalSort
// needs from its caller — operators supply this from their own sort-key
// expressions (pkg/exec/operator), keeping pkg/spill free of any
// dependency on the expression evaluator.
type Less func(a, b Row) bool

// ExternalSort partitions its input into runs that fit budget rows each,
// sorts every run in memory, spills it to its own SpillFile, and merges
// the sorted runs back into one ordered stream on Finish (spec.md §4.10
// item 2). A single run that never exceeds budget never touches disk at
// all — Finish returns it sorted in place.
type ExternalSort struct {
	dir    string
	budget int
	less   Less

	buffer []Row
	runs   []string // spilled run file paths
}

// NewExternalSort builds a sorter that spills to dir once buffer.Add has
// accumulated budget rows.
func NewExternalSort(dir string, budget int, less Less) *ExternalSort {
	if budget <= 0 {
		budget = 1
	}
	return &ExternalSort{dir: dir, budget: budget, less: less}
}

// Add buffers row, spilling the current buffer as a sorted run once budget
// is reached.
func (s *ExternalSort) Add(row Row) error {
	s.buffer = append(s.buffer, row)
	if len(s.buffer) >= s.budget {
		return s.spillRun()
	}
	return nil
}

func (s *ExternalSort) spillRun() error {
	if len(s.buffer) == 0 {
		return nil
	}
	sort.SliceStable(s.buffer, func(i, j int) bool { return s.less(s.buffer[i], s.buffer[j]) })

	f, err := Create(s.dir, "sort-run")
	if err != nil {
		return err
	}
	for _, row := range s.buffer {
		if err := f.WriteRow(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("spill: sort run write: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.runs = append(s.runs, f.Path())
	s.buffer = s.buffer[:0]
	return nil
}

// Finish sorts any remaining buffered rows and returns an iterator over
// every row in global sorted order, k-way merging spilled runs with a
// priority queue on the sort key (spec.md §4.10 item 2). If no run was
// ever spilled, the result is served straight from the in-memory buffer.
func (s *ExternalSort) Finish() (*MergeIterator, error) {
	if len(s.runs) == 0 {
		sort.SliceStable(s.buffer, func(i, j int) bool { return s.less(s.buffer[i], s.buffer[j]) })
		return &MergeIterator{memRows: s.buffer, less: s.less}, nil
	}
	if err := s.spillRun(); err != nil {
		return nil, err
	}
	readers := make([]*Reader, len(s.runs))
	for i, path := range s.runs {
		r, err := OpenReader(path)
		if err != nil {
			for _, opened := range readers[:i] {
				_ = opened.Close()
			}
			return nil, err
		}
		readers[i] = r
	}
	return newMergeIterator(readers, s.runs, s.less)
}

// mergeItem is one entry of the k-way merge heap: the next unread row from
// a given source, plus which source it came from.
type mergeItem struct {
	row    Row
	source int
}

type mergeHeap struct {
	items []mergeItem
	less  Less
}

func (h *mergeHeap) Len() int            { return len(h.items) }
func (h *mergeHeap) Less(i, j int) bool  { return h.less(h.items[i].row, h.items[j].row) }
func (h *mergeHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap) Push(x interface{})  { h.items = append(h.items, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// MergeIterator yields rows in sorted order across the in-memory buffer
// (no spilled run case) or across every spilled run (k-way merge case).
type MergeIterator struct {
	less Less

	// in-memory case
	memRows []Row
	memPos  int

	// k-way merge case
	readers []*Reader
	runPaths []string
	h        *mergeHeap
}

func newMergeIterator(readers []*Reader, runPaths []string, less Less) (*MergeIterator, error) {
	h := &mergeHeap{less: less}
	heap.Init(h)
	m := &MergeIterator{less: less, readers: readers, runPaths: runPaths, h: h}
	for i, r := range readers {
		row, err := r.ReadRow()
		if err != nil {
			if errors.Is(err, io.EOF) {
				continue
			}
			return nil, err
		}
		heap.Push(h, mergeItem{row: row, source: i})
	}
	return m, nil
}

// Next returns the next row in sorted order, or (nil, false, nil) once
// every source is exhausted.
func (m *MergeIterator) Next() (Row, bool, error) {
	if m.readers == nil {
		if m.memPos >= len(m.memRows) {
			return nil, false, nil
		}
		row := m.memRows[m.memPos]
		m.memPos++
		return row, true, nil
	}

	if m.h.Len() == 0 {
		return nil, false, nil
	}
	top := heap.Pop(m.h).(mergeItem)
	next, err := m.readers[top.source].ReadRow()
	if err == nil {
		heap.Push(m.h, mergeItem{row: next, source: top.source})
	} else if !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	return top.row, true, nil
}

// Close releases every spill reader and deletes the underlying run files.
func (m *MergeIterator) Close() error {
	var firstErr error
	for i, r := range m.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := RemoveAll(m.runPaths[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
