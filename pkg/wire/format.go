package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Text rendering of decoded messages for inspection. Best-effort: the
// input is assumed validated, unknown anchors render as "fn#N".

// FormatPlan renders a plan as indented text.
func FormatPlan(p *Plan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "version: %d.%d.%d", p.Version.Major, p.Version.Minor, p.Version.Patch)
	if p.Version.Producer != "" {
		fmt.Fprintf(&sb, " (%s)", p.Version.Producer)
	}
	sb.WriteByte('\n')

	if len(p.Functions) > 0 {
		sb.WriteString("functions:\n")
		for _, f := range p.Functions {
			fmt.Fprintf(&sb, "  %d: %s\n", f.Anchor, f.Name)
		}
	}

	fns := functionNames(p.Functions)
	for i, rel := range p.Relations {
		fmt.Fprintf(&sb, "relation %d: [%s]\n", i, strings.Join(rel.Root.Names, ", "))
		writeRel(&sb, rel.Root.Input, fns, 1)
	}
	return sb.String()
}

// FormatExtendedExpression renders an expression envelope as text.
func FormatExtendedExpression(x *ExtendedExpression) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "version: %d.%d.%d", x.Version.Major, x.Version.Minor, x.Version.Patch)
	if x.Version.Producer != "" {
		fmt.Fprintf(&sb, " (%s)", x.Version.Producer)
	}
	sb.WriteByte('\n')

	fmt.Fprintf(&sb, "schema: %s\n", formatSchema(x.BaseSchema))
	fns := functionNames(x.Functions)
	for _, r := range x.Referred {
		fmt.Fprintf(&sb, "%s: %s\n", strings.Join(r.Names, ", "), FormatExpression(&r.Expression, fns))
	}
	return sb.String()
}

// FormatExpression renders an expression with function anchors resolved
// against the declaration table.
func FormatExpression(e *Expression, fns map[uint32]string) string {
	switch {
	case e.Literal != nil:
		return formatLiteral(e.Literal)
	case e.Selection != nil:
		return fmt.Sprintf("$%d", e.Selection.Field)
	case e.ScalarFunction != nil:
		f := e.ScalarFunction
		args := make([]string, len(f.Arguments))
		for i := range f.Arguments {
			args[i] = FormatExpression(&f.Arguments[i], fns)
		}
		return fmt.Sprintf("%s(%s)", functionName(fns, f.FunctionRef), strings.Join(args, ", "))
	case e.Cast != nil:
		return fmt.Sprintf("cast(%s as %s)", FormatExpression(e.Cast.Input, fns), e.Cast.Type)
	case e.IfThen != nil:
		var sb strings.Builder
		sb.WriteString("case")
		for i := range e.IfThen.Ifs {
			c := &e.IfThen.Ifs[i]
			fmt.Fprintf(&sb, " when %s then %s",
				FormatExpression(&c.If, fns), FormatExpression(&c.Then, fns))
		}
		if e.IfThen.Else != nil {
			fmt.Fprintf(&sb, " else %s", FormatExpression(e.IfThen.Else, fns))
		}
		sb.WriteString(" end")
		return sb.String()
	default:
		return "<empty>"
	}
}

func writeRel(sb *strings.Builder, r *Rel, fns map[uint32]string, depth int) {
	indent := strings.Repeat("  ", depth)

	switch {
	case r.Read != nil:
		read := r.Read
		if read.NamedTable != nil {
			fmt.Fprintf(sb, "%sRead: %s %s\n", indent,
				strings.Join(read.NamedTable.Names, "."), formatSchema(read.BaseSchema))
		} else {
			fmt.Fprintf(sb, "%sRead: values %d rows %s\n", indent,
				len(read.VirtualTable.Rows), formatSchema(read.BaseSchema))
		}
	case r.Filter != nil:
		fmt.Fprintf(sb, "%sFilter: %s\n", indent, FormatExpression(r.Filter.Condition, fns))
		writeRel(sb, r.Filter.Input, fns, depth+1)
	case r.Project != nil:
		exprs := make([]string, len(r.Project.Expressions))
		for i := range r.Project.Expressions {
			exprs[i] = FormatExpression(&r.Project.Expressions[i], fns)
		}
		fmt.Fprintf(sb, "%sProject: %s\n", indent, strings.Join(exprs, ", "))
		writeRel(sb, r.Project.Input, fns, depth+1)
	case r.Aggregate != nil:
		groups := make([]string, len(r.Aggregate.Groupings))
		for i := range r.Aggregate.Groupings {
			groups[i] = FormatExpression(&r.Aggregate.Groupings[i], fns)
		}
		measures := make([]string, len(r.Aggregate.Measures))
		for i := range r.Aggregate.Measures {
			f := &r.Aggregate.Measures[i].Function
			args := make([]string, len(f.Arguments))
			for j := range f.Arguments {
				args[j] = FormatExpression(&f.Arguments[j], fns)
			}
			measures[i] = fmt.Sprintf("%s(%s)", functionName(fns, f.FunctionRef), strings.Join(args, ", "))
		}
		fmt.Fprintf(sb, "%sAggregate: groups=[%s] measures=[%s]\n", indent,
			strings.Join(groups, ", "), strings.Join(measures, ", "))
		writeRel(sb, r.Aggregate.Input, fns, depth+1)
	case r.Sort != nil:
		keys := make([]string, len(r.Sort.Sorts))
		for i := range r.Sort.Sorts {
			s := &r.Sort.Sorts[i]
			dir := "asc"
			if s.Direction == SortDescNullsFirst || s.Direction == SortDescNullsLast {
				dir = "desc"
			}
			keys[i] = FormatExpression(&s.Expr, fns) + " " + dir
		}
		fmt.Fprintf(sb, "%sSort: %s\n", indent, strings.Join(keys, ", "))
		writeRel(sb, r.Sort.Input, fns, depth+1)
	case r.Fetch != nil:
		count := "all"
		if r.Fetch.Count >= 0 {
			count = strconv.FormatInt(r.Fetch.Count, 10)
		}
		fmt.Fprintf(sb, "%sFetch: offset=%d count=%s\n", indent, r.Fetch.Offset, count)
		writeRel(sb, r.Fetch.Input, fns, depth+1)
	case r.Join != nil:
		if r.Join.Expression != nil {
			fmt.Fprintf(sb, "%sJoin: %s on %s\n", indent, r.Join.Kind,
				FormatExpression(r.Join.Expression, fns))
		} else {
			fmt.Fprintf(sb, "%sJoin: %s\n", indent, r.Join.Kind)
		}
		writeRel(sb, r.Join.Left, fns, depth+1)
		writeRel(sb, r.Join.Right, fns, depth+1)
	}
}

func formatSchema(ns NamedStruct) string {
	cols := make([]string, len(ns.Names))
	for i, name := range ns.Names {
		cols[i] = name + " " + ns.Types[i].String()
	}
	return "(" + strings.Join(cols, ", ") + ")"
}

func formatLiteral(l *Literal) string {
	switch {
	case l.Null != nil:
		return "null"
	case l.Boolean != nil:
		return strconv.FormatBool(*l.Boolean)
	case l.I64 != nil:
		return strconv.FormatInt(*l.I64, 10)
	case l.Fp64 != nil:
		return strconv.FormatFloat(*l.Fp64, 'g', -1, 64)
	case l.Str != nil:
		return "'" + *l.Str + "'"
	default:
		return "<empty>"
	}
}

func functionNames(decls []FunctionDecl) map[uint32]string {
	m := make(map[uint32]string, len(decls))
	for _, d := range decls {
		m[d.Anchor] = d.Name
	}
	return m
}

func functionName(fns map[uint32]string, anchor uint32) string {
	if name, ok := fns[anchor]; ok {
		return name
	}
	return fmt.Sprintf("fn#%d", anchor)
}
