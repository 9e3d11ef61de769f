package schema

import (
	"context"
	"testing"

	"nlsql/internal/adapter"
)

// fakeAdapter is an in-memory adapter.DBAdapter stand-in for table-driven tests.
type fakeAdapter struct {
	tables  []string
	columns map[string][]adapter.RawColumn
	pks     map[string]string
	fks     map[string][]adapter.RawForeignKey
}

func (f *fakeAdapter) Connect(ctx context.Context) error { return nil }
func (f *fakeAdapter) Close() error                      { return nil }
func (f *fakeAdapter) ExecuteQuery(ctx context.Context, query string) (*adapter.QueryResult, error) {
	return &adapter.QueryResult{}, nil
}
func (f *fakeAdapter) GetDatabaseType() string                       { return "fake" }
func (f *fakeAdapter) GetDatabaseVersion(ctx context.Context) (string, error) { return "1.0", nil }
func (f *fakeAdapter) DryRunSQL(ctx context.Context, sql string) error { return nil }
func (f *fakeAdapter) ListTables(ctx context.Context) ([]string, error) { return f.tables, nil }
func (f *fakeAdapter) GetColumns(ctx context.Context, table string) ([]adapter.RawColumn, error) {
	return f.columns[table], nil
}
func (f *fakeAdapter) GetPrimaryKey(ctx context.Context, table string) (string, error) {
	return f.pks[table], nil
}
func (f *fakeAdapter) GetForeignKeys(ctx context.Context, table string) ([]adapter.RawForeignKey, error) {
	return f.fks[table], nil
}

func TestIntrospectCanonicalizesTypesAndIsIdempotent(t *testing.T) {
	fa := &fakeAdapter{
		tables: []string{"tb_Company", "tb_User"},
		columns: map[string][]adapter.RawColumn{
			"tb_Company": {
				{Name: "ID", DataType: "int", IsNullable: false},
				{Name: "Name", DataType: "varchar(50)  COLLATE \"C\"", IsNullable: false},
			},
			"tb_User": {
				{Name: "ID", DataType: "int", IsNullable: false},
				{Name: "CompanyID", DataType: "int", IsNullable: true},
			},
		},
		pks: map[string]string{"tb_Company": "ID", "tb_User": "ID"},
		fks: map[string][]adapter.RawForeignKey{},
	}

	s, err := Introspect(context.Background(), fa)
	if err != nil {
		t.Fatalf("Introspect failed: %v", err)
	}

	company := s.TableByName("tb_Company")
	if company == nil {
		t.Fatalf("expected tb_Company in schema")
	}
	for _, c := range company.Columns {
		if c.Name == "Name" && c.DataType != "varchar(50)" {
			t.Errorf("expected COLLATE stripped and whitespace collapsed, got %q", c.DataType)
		}
	}

	again, err := Introspect(context.Background(), fa)
	if err != nil {
		t.Fatalf("second Introspect failed: %v", err)
	}
	if len(again.Tables) != len(s.Tables) {
		t.Fatalf("introspection is not idempotent across identical adapter calls")
	}
}

func TestIntrospectRejectsTableWithNoColumns(t *testing.T) {
	fa := &fakeAdapter{
		tables:  []string{"empty_table"},
		columns: map[string][]adapter.RawColumn{"empty_table": {}},
		pks:     map[string]string{},
		fks:     map[string][]adapter.RawForeignKey{},
	}
	if _, err := Introspect(context.Background(), fa); err == nil {
		t.Fatal("expected SchemaIntrospectionError for table with no columns")
	}
}

func TestDetectIDColumns(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		wantBase string
		wantHit  bool
	}{
		{"suffix ID", "CompanyID", "Company", true},
		{"suffix Id", "CompanyId", "Company", true},
		{"suffix _ID", "Company_ID", "Company_", true},
		{"suffix _id", "company_id", "company_", true},
		{"bare ID excluded", "ID", "", false},
		{"bare id excluded", "id", "", false},
		{"no match", "Name", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			table := &Table{TableName: "t", Columns: []Column{{Name: tc.column, DataType: "int"}}}
			found := DetectIDColumns(table)
			if tc.wantHit && len(found) != 1 {
				t.Fatalf("expected a match for %q, got %v", tc.column, found)
			}
			if !tc.wantHit && len(found) != 0 {
				t.Fatalf("expected no match for %q, got %v", tc.column, found)
			}
			if tc.wantHit && found[0].BaseName != tc.wantBase {
				t.Errorf("expected base name %q, got %q", tc.wantBase, found[0].BaseName)
			}
		})
	}
}

func TestPKOfResolutionOrder(t *testing.T) {
	t.Run("declared primary key wins", func(t *testing.T) {
		table := &Table{TableName: "tb_Company", PrimaryKey: "CompanyPK", Columns: []Column{{Name: "CompanyPK"}}}
		if got := PKOf(table); got != "CompanyPK" {
			t.Errorf("expected CompanyPK, got %q", got)
		}
	})

	t.Run("bare id column", func(t *testing.T) {
		table := &Table{TableName: "tb_Company", Columns: []Column{{Name: "ID"}}}
		if got := PKOf(table); got != "ID" {
			t.Errorf("expected ID, got %q", got)
		}
	})

	t.Run("tablename plus ID suffix", func(t *testing.T) {
		table := &Table{TableName: "Company", Columns: []Column{{Name: "CompanyID"}}}
		if got := PKOf(table); got != "CompanyID" {
			t.Errorf("expected CompanyID, got %q", got)
		}
	})

	t.Run("no resolution", func(t *testing.T) {
		table := &Table{TableName: "Company", Columns: []Column{{Name: "Name"}}}
		if got := PKOf(table); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}
