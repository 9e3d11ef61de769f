package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteAdapter SQLite adapter. Uses modernc.org/sqlite (pure Go, no cgo)
// per this module's go.mod — the teacher's own go.mod had already moved
// off mattn/go-sqlite3 even though this file had not caught up.
type SQLiteAdapter struct {
	db     *sql.DB
	config *SQLiteConfig
}

// SQLiteConfig SQLite connection config
type SQLiteConfig struct {
	FilePath string // DB file path, ":memory:" for in-memory
}

// NewSQLiteAdapter creates SQLite adapter
func NewSQLiteAdapter(config *SQLiteConfig) *SQLiteAdapter {
	return &SQLiteAdapter{
		config: config,
	}
}

// Connect connects to database
func (a *SQLiteAdapter) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite", a.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	return nil
}

// Close closes connection
func (a *SQLiteAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// ExecuteQuery executes query
func (a *SQLiteAdapter) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	start := time.Now()

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return &QueryResult{
			Error:         err.Error(),
			ExecutionTime: time.Since(start).Milliseconds(),
		}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = val
			}
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryResult{
		Columns:       columns,
		Rows:          result,
		RowCount:      len(result),
		ExecutionTime: time.Since(start).Milliseconds(),
	}, nil
}

// GetDatabaseType gets database type
func (a *SQLiteAdapter) GetDatabaseType() string {
	return "SQLite"
}

// GetDatabaseVersion gets database version
func (a *SQLiteAdapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	result, err := a.ExecuteQuery(ctx, "SELECT sqlite_version() as version")
	if err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf(result.Error)
	}
	if len(result.Rows) > 0 {
		if version, ok := result.Rows[0]["version"].(string); ok {
			return version, nil
		}
	}
	return "unknown", nil
}

// ListTables returns every base table, excluding sqlite's own bookkeeping tables.
func (a *SQLiteAdapter) ListTables(ctx context.Context) ([]string, error) {
	result, err := a.ExecuteQuery(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if name, ok := row["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// GetColumns returns a table's columns in ordinal order via PRAGMA table_info.
func (a *SQLiteAdapter) GetColumns(ctx context.Context, table string) ([]RawColumn, error) {
	result, err := a.ExecuteQuery(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteSQLiteIdent(table)))
	if err != nil {
		return nil, err
	}
	cols := make([]RawColumn, 0, len(result.Rows))
	for _, row := range result.Rows {
		name, _ := row["name"].(string)
		typ, _ := row["type"].(string)
		notNull := asInt64(row["notnull"])
		cols = append(cols, RawColumn{
			Name:       name,
			DataType:   typ,
			IsNullable: notNull == 0,
		})
	}
	return cols, nil
}

// GetPrimaryKey returns the single-column PK, or "" if composite/absent.
func (a *SQLiteAdapter) GetPrimaryKey(ctx context.Context, table string) (string, error) {
	result, err := a.ExecuteQuery(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteSQLiteIdent(table)))
	if err != nil {
		return "", err
	}
	var pkCols []string
	for _, row := range result.Rows {
		if asInt64(row["pk"]) > 0 {
			name, _ := row["name"].(string)
			pkCols = append(pkCols, name)
		}
	}
	if len(pkCols) != 1 {
		return "", nil
	}
	return pkCols[0], nil
}

// GetForeignKeys returns the table's FK constraints via PRAGMA foreign_key_list.
func (a *SQLiteAdapter) GetForeignKeys(ctx context.Context, table string) ([]RawForeignKey, error) {
	result, err := a.ExecuteQuery(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteSQLiteIdent(table)))
	if err != nil {
		return nil, err
	}
	fks := make([]RawForeignKey, 0, len(result.Rows))
	for _, row := range result.Rows {
		id := fmt.Sprintf("%v", row["id"])
		from, _ := row["from"].(string)
		toTable, _ := row["table"].(string)
		toCol, _ := row["to"].(string)
		fks = append(fks, RawForeignKey{
			ConstraintName: "fk_" + id,
			ColumnName:     from,
			PKTable:        toTable,
			PKColumn:       toCol,
		})
	}
	return fks, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		var n int64
		fmt.Sscanf(t, "%d", &n)
		return n
	default:
		return 0
	}
}

// quoteSQLiteIdent wraps a table name in double quotes for use inside a
// PRAGMA statement (which does not accept bound parameters). Table
// names here come from a prior ListTables() call, never end-user input.
func quoteSQLiteIdent(name string) string {
	out := make([]byte, 0, len(name)+2)
	out = append(out, '"')
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			out = append(out, '"', '"')
			continue
		}
		out = append(out, name[i])
	}
	out = append(out, '"')
	return string(out)
}
