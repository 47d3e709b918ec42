// Package logical provides the host engine side of the plan interchange
// bridge: a typed schema model, scalar expression nodes, logical plan
// nodes, and a Session that plans SQL text against a catalog.
package logical

import (
	"fmt"
	"strings"
)

// TypeKind identifies a scalar type.
type TypeKind int

// TypeKind constants for the scalar types the engine understands.
// TypeUnknown is the zero value and marks untyped NULL literals.
const (
	TypeUnknown TypeKind = iota
	TypeBool
	TypeInt64
	TypeFloat64
	TypeString
	TypeDate
	TypeTimestamp
)

// String returns the SQL-ish name of the type kind.
func (k TypeKind) String() string {
	switch k {
	case TypeBool:
		return "bool"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeString:
		return "string"
	case TypeDate:
		return "date"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// ParseTypeKind resolves a SQL type name (as written in CAST or a catalog
// definition) to a TypeKind. Common aliases are accepted.
func ParseTypeKind(name string) (TypeKind, bool) {
	switch strings.ToLower(name) {
	case "bool", "boolean":
		return TypeBool, true
	case "int", "integer", "bigint", "int64":
		return TypeInt64, true
	case "float", "double", "real", "float64":
		return TypeFloat64, true
	case "string", "varchar", "text":
		return TypeString, true
	case "date":
		return TypeDate, true
	case "timestamp", "datetime":
		return TypeTimestamp, true
	default:
		return TypeUnknown, false
	}
}

// Type is a scalar type with nullability.
type Type struct {
	Kind     TypeKind
	Nullable bool
}

// String returns the type as text, with a trailing "?" when nullable.
func (t Type) String() string {
	if t.Nullable {
		return t.Kind.String() + "?"
	}
	return t.Kind.String()
}

// Field is a named, typed schema entry.
type Field struct {
	Name string
	Type Type
}

// Schema is an ordered field list with name lookup. It is read-only after
// construction; every consumer shares it by reference.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema from the given fields, preserving order.
// On duplicate names the first occurrence wins for name lookup.
func NewSchema(fields ...Field) *Schema {
	s := &Schema{
		fields: fields,
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if _, ok := s.index[f.Name]; !ok {
			s.index[f.Name] = i
		}
	}
	return s
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Field returns the field at index i.
func (s *Schema) Field(i int) Field {
	return s.fields[i]
}

// Fields returns a copy of the field list.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// IndexOf returns the index of the named field, or -1 if absent.
func (s *Schema) IndexOf(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Equal reports whether two schemas have the same fields in the same order.
func (s *Schema) Equal(other *Schema) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i, f := range s.fields {
		if other.fields[i] != f {
			return false
		}
	}
	return true
}

// String returns the schema as "name type, name type, ...".
func (s *Schema) String() string {
	var b strings.Builder
	for i, f := range s.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", f.Name, f.Type)
	}
	return b.String()
}
