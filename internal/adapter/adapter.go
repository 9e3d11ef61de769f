// Package adapter provides dialect-specific database handles: connect,
// execute, and the schema-introspection primitives C1 builds on.
package adapter

import (
	"context"
)

// DatabaseType enumerates the supported dialects.
type DatabaseType string

const (
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgresql"
	SQLite     DatabaseType = "sqlite"
)

// DBAdapter is the lightweight per-dialect handle: connection lifecycle,
// query execution, and the schema-introspection primitives spec.md §6
// requires (list_tables, get_columns, get_primary_key, get_foreign_keys).
type DBAdapter interface {
	Connect(ctx context.Context) error
	Close() error

	// ExecuteQuery executes query
	// Returns unified QueryResult with columns, rows, execution time
	ExecuteQuery(ctx context.Context, query string) (*QueryResult, error)

	GetDatabaseType() string
	GetDatabaseVersion(ctx context.Context) (string, error)

	// DryRunSQL validates SQL syntax without materializing a full result set.
	DryRunSQL(ctx context.Context, sql string) error

	// ListTables returns every base table visible in the default namespace.
	ListTables(ctx context.Context) ([]string, error)
	// GetColumns returns a table's columns in ordinal order.
	GetColumns(ctx context.Context, table string) ([]RawColumn, error)
	// GetPrimaryKey returns the single-column PK name, or "" if composite/absent.
	GetPrimaryKey(ctx context.Context, table string) (string, error)
	// GetForeignKeys returns the table's FK constraints, already decomposed
	// into one RawForeignKey per constrained-column position.
	GetForeignKeys(ctx context.Context, table string) ([]RawForeignKey, error)
}

// RawColumn is the introspection-layer column shape, pre-canonicalization.
type RawColumn struct {
	Name       string
	DataType   string
	IsNullable bool
}

// RawForeignKey is one constrained-column/referenced-column pair. A
// multi-column constraint yields one RawForeignKey per position; if the
// referenced-column list is shorter than the constrained list, the
// corresponding positions carry an empty PKColumn.
type RawForeignKey struct {
	ConstraintName string
	ColumnName     string
	PKTable        string
	PKColumn       string
}

// QueryResult query result (unified structure)
type QueryResult struct {
	Columns       []string                 // Column name
	Rows          []map[string]interface{} // Data rows (unified map format)
	RowCount      int                      // Row count
	ExecutionTime int64                    // Execution time (ms)
	Error         string                   // Error message (if any)
}

// DBConfig database connection config (generic)
type DBConfig struct {
	Type     string `json:"type"` // Database type: "mysql", "postgresql", "sqlite"
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`

	FilePath string `json:"file_path"` // SQLite file path

	MaxOpenConns int `json:"max_open_conns"`
	MaxIdleConns int `json:"max_idle_conns"`
}

// NewAdapter factory: creates adapter based on config
func NewAdapter(config *DBConfig) (DBAdapter, error) {
	switch config.Type {
	case "mysql":
		return NewMySQLAdapter(&MySQLConfig{
			Host:     config.Host,
			Port:     config.Port,
			Database: config.Database,
			User:     config.User,
			Password: config.Password,
		}), nil
	case "postgresql":
		return NewPostgreSQLAdapter(&PostgreSQLConfig{
			Host:     config.Host,
			Port:     config.Port,
			Database: config.Database,
			User:     config.User,
			Password: config.Password,
		}), nil
	case "sqlite":
		return NewSQLiteAdapter(&SQLiteConfig{
			FilePath: config.FilePath,
		}), nil
	default:
		return nil, &UnsupportedDatabaseError{Type: config.Type}
	}
}

// UnsupportedDatabaseError unsupported database type error
type UnsupportedDatabaseError struct {
	Type string
}

func (e *UnsupportedDatabaseError) Error() string {
	return "unsupported database type: " + e.Type
}
