package wire

import "fmt"

// Structural validation. Encode and decode both walk the message tree so
// that a Plan holding two relation variants, or an Expression holding
// none, never crosses the byte boundary in either direction.

// Validate checks the plan envelope and every relation tree under it.
func (p *Plan) Validate() error {
	for i, rel := range p.Relations {
		if rel.Root == nil {
			return fmt.Errorf("relations[%d]: missing root", i)
		}
		if rel.Root.Input == nil {
			return fmt.Errorf("relations[%d]: root has no input", i)
		}
		if err := rel.Root.Input.Validate(); err != nil {
			return fmt.Errorf("relations[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks that exactly one relation variant is set and recurses
// into inputs and expressions.
func (r *Rel) Validate() error {
	n := 0
	if r.Read != nil {
		n++
	}
	if r.Filter != nil {
		n++
	}
	if r.Project != nil {
		n++
	}
	if r.Aggregate != nil {
		n++
	}
	if r.Sort != nil {
		n++
	}
	if r.Fetch != nil {
		n++
	}
	if r.Join != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("relation must set exactly one variant, got %d", n)
	}

	switch {
	case r.Read != nil:
		return r.Read.validate()
	case r.Filter != nil:
		if r.Filter.Input == nil || r.Filter.Condition == nil {
			return fmt.Errorf("filter: missing input or condition")
		}
		if err := r.Filter.Input.Validate(); err != nil {
			return err
		}
		return r.Filter.Condition.Validate()
	case r.Project != nil:
		if r.Project.Input == nil {
			return fmt.Errorf("project: missing input")
		}
		if len(r.Project.Names) != len(r.Project.Expressions) {
			return fmt.Errorf("project: %d names for %d expressions",
				len(r.Project.Names), len(r.Project.Expressions))
		}
		if err := r.Project.Input.Validate(); err != nil {
			return err
		}
		return validateExprs(r.Project.Expressions)
	case r.Aggregate != nil:
		if r.Aggregate.Input == nil {
			return fmt.Errorf("aggregate: missing input")
		}
		if err := r.Aggregate.Input.Validate(); err != nil {
			return err
		}
		if err := validateExprs(r.Aggregate.Groupings); err != nil {
			return err
		}
		for i := range r.Aggregate.Measures {
			if err := validateExprs(r.Aggregate.Measures[i].Function.Arguments); err != nil {
				return fmt.Errorf("measure[%d]: %w", i, err)
			}
		}
		return nil
	case r.Sort != nil:
		if r.Sort.Input == nil {
			return fmt.Errorf("sort: missing input")
		}
		if len(r.Sort.Sorts) == 0 {
			return fmt.Errorf("sort: no sort fields")
		}
		if err := r.Sort.Input.Validate(); err != nil {
			return err
		}
		for i := range r.Sort.Sorts {
			s := &r.Sort.Sorts[i]
			if s.Direction == SortUnspecified || s.Direction > SortDescNullsLast {
				return fmt.Errorf("sorts[%d]: bad direction %d", i, s.Direction)
			}
			if err := s.Expr.Validate(); err != nil {
				return fmt.Errorf("sorts[%d]: %w", i, err)
			}
		}
		return nil
	case r.Fetch != nil:
		if r.Fetch.Input == nil {
			return fmt.Errorf("fetch: missing input")
		}
		if r.Fetch.Offset < 0 || r.Fetch.Count < -1 {
			return fmt.Errorf("fetch: bad offset %d or count %d", r.Fetch.Offset, r.Fetch.Count)
		}
		return r.Fetch.Input.Validate()
	default:
		j := r.Join
		if j.Left == nil || j.Right == nil {
			return fmt.Errorf("join: missing input")
		}
		if j.Kind == JoinUnspecified || j.Kind > JoinCross {
			return fmt.Errorf("join: bad kind %d", j.Kind)
		}
		if j.Expression == nil && j.Kind != JoinCross {
			return fmt.Errorf("join: %s join requires a condition", j.Kind)
		}
		if err := j.Left.Validate(); err != nil {
			return err
		}
		if err := j.Right.Validate(); err != nil {
			return err
		}
		if j.Expression != nil {
			return j.Expression.Validate()
		}
		return nil
	}
}

func (r *ReadRel) validate() error {
	if len(r.BaseSchema.Names) != len(r.BaseSchema.Types) {
		return fmt.Errorf("read: %d schema names for %d types",
			len(r.BaseSchema.Names), len(r.BaseSchema.Types))
	}
	switch {
	case r.NamedTable != nil && r.VirtualTable != nil:
		return fmt.Errorf("read: both named and virtual table set")
	case r.NamedTable != nil:
		if len(r.NamedTable.Names) == 0 {
			return fmt.Errorf("read: named table has no name")
		}
	case r.VirtualTable != nil:
		for i, row := range r.VirtualTable.Rows {
			if len(row) != len(r.BaseSchema.Names) {
				return fmt.Errorf("read: row %d has %d values for %d columns",
					i, len(row), len(r.BaseSchema.Names))
			}
			for j := range row {
				if err := row[j].validate(); err != nil {
					return fmt.Errorf("read: row %d: %w", i, err)
				}
			}
		}
	default:
		return fmt.Errorf("read: neither named nor virtual table set")
	}
	return nil
}

// Validate checks that exactly one expression variant is set and
// recurses into arguments.
func (e *Expression) Validate() error {
	n := 0
	if e.Literal != nil {
		n++
	}
	if e.Selection != nil {
		n++
	}
	if e.ScalarFunction != nil {
		n++
	}
	if e.Cast != nil {
		n++
	}
	if e.IfThen != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("expression must set exactly one variant, got %d", n)
	}

	switch {
	case e.Literal != nil:
		return e.Literal.validate()
	case e.Selection != nil:
		if e.Selection.Field < 0 {
			return fmt.Errorf("selection: negative field %d", e.Selection.Field)
		}
		return nil
	case e.ScalarFunction != nil:
		return validateExprs(e.ScalarFunction.Arguments)
	case e.Cast != nil:
		if e.Cast.Input == nil {
			return fmt.Errorf("cast: missing input")
		}
		if e.Cast.Type.Kind == KindUnspecified {
			return fmt.Errorf("cast: missing target type")
		}
		return e.Cast.Input.Validate()
	default:
		if len(e.IfThen.Ifs) == 0 {
			return fmt.Errorf("if_then: no clauses")
		}
		for i := range e.IfThen.Ifs {
			c := &e.IfThen.Ifs[i]
			if err := c.If.Validate(); err != nil {
				return fmt.Errorf("if_then[%d]: %w", i, err)
			}
			if err := c.Then.Validate(); err != nil {
				return fmt.Errorf("if_then[%d]: %w", i, err)
			}
		}
		if e.IfThen.Else != nil {
			return e.IfThen.Else.Validate()
		}
		return nil
	}
}

func (l *Literal) validate() error {
	n := 0
	if l.Null != nil {
		n++
	}
	if l.Boolean != nil {
		n++
	}
	if l.I64 != nil {
		n++
	}
	if l.Fp64 != nil {
		n++
	}
	if l.Str != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("literal must set exactly one variant, got %d", n)
	}
	return nil
}

func validateExprs(exprs []Expression) error {
	for i := range exprs {
		if err := exprs[i].Validate(); err != nil {
			return fmt.Errorf("expression[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks the expression envelope.
func (x *ExtendedExpression) Validate() error {
	if len(x.BaseSchema.Names) != len(x.BaseSchema.Types) {
		return fmt.Errorf("base schema: %d names for %d types",
			len(x.BaseSchema.Names), len(x.BaseSchema.Types))
	}
	if len(x.Referred) == 0 {
		return fmt.Errorf("no referred expressions")
	}
	for i := range x.Referred {
		r := &x.Referred[i]
		if len(r.Names) == 0 {
			return fmt.Errorf("referred[%d]: missing output name", i)
		}
		if err := r.Expression.Validate(); err != nil {
			return fmt.Errorf("referred[%d]: %w", i, err)
		}
	}
	return nil
}
