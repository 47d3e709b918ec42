package logical

import (
	"context"
	"fmt"
	"sync"

	"github.com/tidwall/btree"

	"github.com/leapstack-labs/planwire/pkg/parser"
)

// FunctionKind distinguishes scalar from aggregate functions.
type FunctionKind int

// FunctionKind constants.
const (
	FunctionScalar FunctionKind = iota
	FunctionAggregate
)

// Function describes a registered SQL function. Result computes the output
// type from the argument types; MaxArgs -1 means variadic.
type Function struct {
	Name    string
	Kind    FunctionKind
	MinArgs int
	MaxArgs int
	Result  func(args []Type) Type
}

// Table is a catalog entry: a named relation with a fixed schema.
type Table struct {
	Name   string
	Schema *Schema
}

// Session is the shared catalog and planning context. Tables and functions
// may be registered at any time; lookups are safe for concurrent use, so a
// single Session can serve many conversions at once.
type Session struct {
	mu        sync.RWMutex
	tables    btree.Map[string, *Table]
	functions map[string]*Function
}

// NewSession creates a session with the builtin function registry and an
// empty table catalog.
func NewSession() *Session {
	s := &Session{
		functions: make(map[string]*Function),
	}
	for _, f := range builtinFunctions {
		s.functions[f.Name] = f
	}
	return s
}

// RegisterTable adds a table to the catalog, replacing any previous entry
// with the same name.
func (s *Session) RegisterTable(name string, schema *Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables.Set(name, &Table{Name: name, Schema: schema})
}

// Table resolves a table by name. Catalog lookups honor context
// cancellation because resolution may reach backing metadata stores.
func (s *Session) Table(ctx context.Context, name string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables.Get(name); ok {
		return t, nil
	}
	return nil, &ResolutionError{Kind: "table", Name: name}
}

// Tables returns all catalog entries in name order.
func (s *Session) Tables() []*Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Table, 0, s.tables.Len())
	s.tables.Scan(func(_ string, t *Table) bool {
		out = append(out, t)
		return true
	})
	return out
}

// RegisterFunction adds a function to the registry, replacing any previous
// entry with the same name.
func (s *Session) RegisterFunction(f *Function) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.functions[f.Name] = f
}

// Function resolves a function by (lowercase) name.
func (s *Session) Function(name string) (*Function, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.functions[name]; ok {
		return f, nil
	}
	return nil, &ResolutionError{Kind: "function", Name: name}
}

// Plan parses and plans a SELECT statement against this session's catalog.
func (s *Session) Plan(ctx context.Context, sql string) (Plan, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	b := &planBuilder{sess: s, ctx: ctx}
	return b.buildSelect(stmt)
}

// PlanExpr parses a scalar expression and binds it to the given schema.
// Aggregate calls are rejected; a bare expression has no grouping context.
func (s *Session) PlanExpr(ctx context.Context, sql string, schema *Schema) (Expr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ast, err := parser.ParseExpr(sql)
	if err != nil {
		return nil, err
	}
	b := &planBuilder{sess: s, ctx: ctx}
	sc := scopeFromSchema("", schema)
	return b.bindExpr(ast, sc, false)
}

// ---------- Builtin Functions ----------

func fixedResult(t Type) func([]Type) Type {
	return func([]Type) Type { return t }
}

func firstArgResult(args []Type) Type {
	if len(args) == 0 {
		return Type{Kind: TypeUnknown}
	}
	t := args[0]
	t.Nullable = true
	return t
}

// builtinFunctions is the default registry shared by every session.
var builtinFunctions = []*Function{
	// Aggregates
	{Name: "count", Kind: FunctionAggregate, MinArgs: 0, MaxArgs: 1, Result: fixedResult(Type{Kind: TypeInt64})},
	{Name: "sum", Kind: FunctionAggregate, MinArgs: 1, MaxArgs: 1, Result: firstArgResult},
	{Name: "avg", Kind: FunctionAggregate, MinArgs: 1, MaxArgs: 1, Result: fixedResult(Type{Kind: TypeFloat64, Nullable: true})},
	{Name: "min", Kind: FunctionAggregate, MinArgs: 1, MaxArgs: 1, Result: firstArgResult},
	{Name: "max", Kind: FunctionAggregate, MinArgs: 1, MaxArgs: 1, Result: firstArgResult},

	// Scalars
	{Name: "abs", Kind: FunctionScalar, MinArgs: 1, MaxArgs: 1, Result: firstArgResult},
	{Name: "round", Kind: FunctionScalar, MinArgs: 1, MaxArgs: 2, Result: fixedResult(Type{Kind: TypeFloat64, Nullable: true})},
	{Name: "upper", Kind: FunctionScalar, MinArgs: 1, MaxArgs: 1, Result: fixedResult(Type{Kind: TypeString, Nullable: true})},
	{Name: "lower", Kind: FunctionScalar, MinArgs: 1, MaxArgs: 1, Result: fixedResult(Type{Kind: TypeString, Nullable: true})},
	{Name: "length", Kind: FunctionScalar, MinArgs: 1, MaxArgs: 1, Result: fixedResult(Type{Kind: TypeInt64, Nullable: true})},
	{Name: "concat", Kind: FunctionScalar, MinArgs: 1, MaxArgs: -1, Result: fixedResult(Type{Kind: TypeString, Nullable: true})},
	{Name: "coalesce", Kind: FunctionScalar, MinArgs: 1, MaxArgs: -1, Result: firstArgResult},
	{Name: "like", Kind: FunctionScalar, MinArgs: 2, MaxArgs: 2, Result: fixedResult(Type{Kind: TypeBool, Nullable: true})},
}

// builtinResult returns the result type of a builtin function, used for
// expression typing when no session is at hand.
func builtinResult(name string, args []Type) (Type, bool) {
	for _, f := range builtinFunctions {
		if f.Name == name {
			return f.Result(args), true
		}
	}
	return Type{Kind: TypeUnknown}, false
}

// checkArity validates the argument count for a function.
func checkArity(f *Function, n int) error {
	if n < f.MinArgs {
		return fmt.Errorf("function %q expects at least %d arguments, got %d", f.Name, f.MinArgs, n)
	}
	if f.MaxArgs >= 0 && n > f.MaxArgs {
		return fmt.Errorf("function %q expects at most %d arguments, got %d", f.Name, f.MaxArgs, n)
	}
	return nil
}
