// Package schema holds the normalized schema document that every later
// stage of the pipeline operates on: introspection (C1), ID-column
// detection (C2), and the domain overlay (C5).
package schema

import (
	"context"
	"regexp"
	"strings"

	"nlsql/internal/adapter"
	"nlsql/internal/errs"
)

// Schema is an ordered sequence of Table records.
type Schema struct {
	Tables []*Table `json:"tables"`
}

// Table describes one base table. Description/KeyColumns mirror the
// only two curated-metadata fields the domain overlay (C5) keeps; every
// other field present in a curated file is dropped on merge.
type Table struct {
	TableName   string       `json:"table_name"`
	Columns     []Column     `json:"columns"`
	PrimaryKey  string       `json:"primary_key,omitempty"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
	Description string       `json:"description,omitempty"`
	KeyColumns  []string     `json:"key_columns,omitempty"`
}

// Column is one column definition, already canonicalized.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

// ForeignKey is one constrained-column/referenced-column pair.
type ForeignKey struct {
	FKColumn   string   `json:"fk_column"`
	PKTable    string   `json:"pk_table"`
	PKColumn   string   `json:"pk_column,omitempty"`
	Inferred   bool     `json:"inferred"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// TableByName finds a table by exact name, nil if absent.
func (s *Schema) TableByName(name string) *Table {
	for _, t := range s.Tables {
		if t.TableName == name {
			return t
		}
	}
	return nil
}

var collateRegex = regexp.MustCompile(`(?i)COLLATE\s+("[^"]*"|'[^']*'|[A-Za-z0-9_]+)`)
var whitespaceRegex = regexp.MustCompile(`\s+`)

// canonicalizeType strips COLLATE clauses and collapses whitespace, so
// repeated introspection of the same column always yields the same
// string (introspect(introspect(S)) == introspect(S)).
func canonicalizeType(dataType string) string {
	t := collateRegex.ReplaceAllString(dataType, "")
	t = whitespaceRegex.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Introspect produces a validated Schema from a live database handle.
func Introspect(ctx context.Context, db adapter.DBAdapter) (*Schema, error) {
	tableNames, err := db.ListTables(ctx)
	if err != nil {
		return nil, &errs.SchemaIntrospectionError{Reason: "list_tables failed", Err: err}
	}

	s := &Schema{Tables: make([]*Table, 0, len(tableNames))}

	for _, name := range tableNames {
		rawCols, err := db.GetColumns(ctx, name)
		if err != nil {
			return nil, &errs.SchemaIntrospectionError{Table: name, Reason: "get_columns failed", Err: err}
		}

		cols := make([]Column, 0, len(rawCols))
		for _, rc := range rawCols {
			cols = append(cols, Column{
				Name:     rc.Name,
				DataType: canonicalizeType(rc.DataType),
				Nullable: rc.IsNullable,
			})
		}

		pk, err := db.GetPrimaryKey(ctx, name)
		if err != nil {
			return nil, &errs.SchemaIntrospectionError{Table: name, Reason: "get_primary_key failed", Err: err}
		}

		rawFKs, err := db.GetForeignKeys(ctx, name)
		if err != nil {
			return nil, &errs.SchemaIntrospectionError{Table: name, Reason: "get_foreign_keys failed", Err: err}
		}

		fks := make([]ForeignKey, 0, len(rawFKs))
		for _, rfk := range rawFKs {
			fks = append(fks, ForeignKey{
				FKColumn: rfk.ColumnName,
				PKTable:  rfk.PKTable,
				PKColumn: rfk.PKColumn,
				Inferred: false,
			})
		}

		s.Tables = append(s.Tables, &Table{
			TableName:   name,
			Columns:     cols,
			PrimaryKey:  pk,
			ForeignKeys: fks,
		})
	}

	if err := validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// validate enforces the minimal shape every Table/Column/ForeignKey must have.
func validate(s *Schema) error {
	for _, t := range s.Tables {
		if t.TableName == "" {
			return &errs.SchemaIntrospectionError{Reason: "table missing table_name"}
		}
		if len(t.Columns) == 0 {
			return &errs.SchemaIntrospectionError{Table: t.TableName, Reason: "table has no columns"}
		}
		seen := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if c.Name == "" || c.DataType == "" {
				return &errs.SchemaIntrospectionError{Table: t.TableName, Reason: "column missing name or data_type"}
			}
			if seen[c.Name] {
				return &errs.SchemaIntrospectionError{Table: t.TableName, Reason: "duplicate column name: " + c.Name}
			}
			seen[c.Name] = true
		}
		for _, fk := range t.ForeignKeys {
			if fk.FKColumn == "" {
				return &errs.SchemaIntrospectionError{Table: t.TableName, Reason: "foreign key missing fk_column"}
			}
		}
	}
	return nil
}

// PKOf resolves the primary key of a table by name, following C4's
// pk_of() resolution order: declared primary_key, else a column
// literally named ID/Id/id, else <TableName>ID/<TableName>Id, else "".
func PKOf(t *Table) string {
	if t.PrimaryKey != "" {
		return t.PrimaryKey
	}
	for _, c := range t.Columns {
		if c.Name == "ID" || c.Name == "Id" || c.Name == "id" {
			return c.Name
		}
	}
	for _, suffix := range []string{"ID", "Id"} {
		candidate := t.TableName + suffix
		for _, c := range t.Columns {
			if c.Name == candidate {
				return c.Name
			}
		}
	}
	return ""
}
