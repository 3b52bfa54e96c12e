package operator

import (
	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/value"
)

// projectOperator writes a new chunk whose columns are the evaluated
// projection expressions, preserving input row count (spec.md §4.9
// Project contract). Used for both Project and Return logical kinds.
type projectOperator struct {
	phys    *physical.Operator
	input   Operator
	aliases []string
	exprs   []plan.Expression
}

func newProject(phys *physical.Operator, input Operator) *projectOperator {
	p := &projectOperator{phys: phys, input: input}
	for alias, expr := range phys.Logical.Projections {
		p.aliases = append(p.aliases, alias)
		p.exprs = append(p.exprs, expr)
	}
	return p
}

func (p *projectOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	in, err := p.input.Next(rt)
	if err != nil || in == nil {
		return nil, err
	}

	names := make([]string, len(p.phys.Schema))
	types := make([]value.LogicalType, len(p.phys.Schema))
	for i, c := range p.phys.Schema {
		names[i] = c.Name
		types[i] = c.Type
	}
	out := exec.NewDataChunk(names, types, exec.DefaultCapacity)

	rows := in.SelectedIndices()
	for _, row := range rows {
		for i, alias := range p.aliases {
			v, err := Eval(p.exprs[i], in, row, p.phys.Input.Vars, rt)
			if err != nil {
				return nil, err
			}
			col := p.phys.Vars[alias]
			if err := out.Columns[col].Append(v); err != nil {
				return nil, err
			}
		}
	}
	out.SetRowCount(len(rows))
	return out, nil
}

func (p *projectOperator) Reset() error { return p.input.Reset() }
func (p *projectOperator) Name() string { return "Project" }
