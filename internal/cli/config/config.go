// Package config loads catalog definitions for the planwire CLI.
//
// A catalog file is YAML describing the tables a session knows about:
//
//	tables:
//	  - name: orders
//	    columns:
//	      - name: id
//	        type: int64
//	      - name: amount
//	        type: float64
//	        nullable: true
package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/planwire/pkg/logical"
)

// Catalog holds the table definitions of a catalog file.
type Catalog struct {
	Tables []TableConfig `koanf:"tables"`
}

// TableConfig describes one table.
type TableConfig struct {
	Name    string         `koanf:"name"`
	Columns []ColumnConfig `koanf:"columns"`
}

// ColumnConfig describes one column.
type ColumnConfig struct {
	Name     string `koanf:"name"`
	Type     string `koanf:"type"`
	Nullable bool   `koanf:"nullable"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	var cat Catalog
	if err := k.Unmarshal("", &cat); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := cat.validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	for _, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("table with no name")
		}
		if len(t.Columns) == 0 {
			return fmt.Errorf("table %q has no columns", t.Name)
		}
		for _, col := range t.Columns {
			if col.Name == "" {
				return fmt.Errorf("table %q has a column with no name", t.Name)
			}
			if _, ok := logical.ParseTypeKind(col.Type); !ok {
				return fmt.Errorf("column %s.%s has unknown type %q", t.Name, col.Name, col.Type)
			}
		}
	}
	return nil
}

// Session builds a session with every catalog table registered.
func (c *Catalog) Session() *logical.Session {
	sess := logical.NewSession()
	for _, t := range c.Tables {
		fields := make([]logical.Field, len(t.Columns))
		for i, col := range t.Columns {
			kind, _ := logical.ParseTypeKind(col.Type)
			fields[i] = logical.Field{
				Name: col.Name,
				Type: logical.Type{Kind: kind, Nullable: col.Nullable},
			}
		}
		sess.RegisterTable(t.Name, logical.NewSchema(fields...))
	}
	return sess
}
