package operator

import (
	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
)

// limitOperator passes through up to Count rows then returns None (spec.md
// §4.9 Limit contract).
type limitOperator struct {
	phys    *physical.Operator
	input   Operator
	emitted uint64
}

func newLimit(phys *physical.Operator, input Operator) *limitOperator {
	return &limitOperator{phys: phys, input: input}
}

func (l *limitOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	limit := l.phys.Logical.Count
	if l.emitted >= limit {
		return nil, nil
	}
	chunk, err := l.input.Next(rt)
	if err != nil || chunk == nil {
		return nil, err
	}

	rows := chunk.SelectedIndices()
	remaining := limit - l.emitted
	if uint64(len(rows)) > remaining {
		rows = rows[:remaining]
		chunk.SetSelection(rows)
	}
	l.emitted += uint64(len(rows))
	return chunk, nil
}

func (l *limitOperator) Reset() error {
	l.emitted = 0
	return l.input.Reset()
}

func (l *limitOperator) Name() string { return "Limit" }

// skipOperator drops the first Count rows then passes through the rest
// (spec.md §4.9 Skip contract).
type skipOperator struct {
	phys    *physical.Operator
	input   Operator
	skipped uint64
}

func newSkip(phys *physical.Operator, input Operator) *skipOperator {
	return &skipOperator{phys: phys, input: input}
}

func (s *skipOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	toSkip := s.phys.Logical.Count
	for {
		chunk, err := s.input.Next(rt)
		if err != nil || chunk == nil {
			return nil, err
		}
		if s.skipped >= toSkip {
			return chunk, nil
		}

		rows := chunk.SelectedIndices()
		remaining := toSkip - s.skipped
		if uint64(len(rows)) <= remaining {
			s.skipped += uint64(len(rows))
			continue // entire chunk skipped; pull the next one
		}
		rows = rows[remaining:]
		s.skipped = toSkip
		chunk.SetSelection(rows)
		return chunk, nil
	}
}

func (s *skipOperator) Reset() error {
	s.skipped = 0
	return s.input.Reset()
}

func (s *skipOperator) Name() string { return "Skip" }
