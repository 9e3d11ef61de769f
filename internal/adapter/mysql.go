package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLAdapter MySQL adapter
type MySQLAdapter struct {
	db     *sql.DB
	config *MySQLConfig
}

// MySQLConfig MySQL connection config
type MySQLConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// NewMySQLAdapter creates MySQL adapter
func NewMySQLAdapter(config *MySQLConfig) *MySQLAdapter {
	return &MySQLAdapter{
		config: config,
	}
}

// Connect connects to database
func (a *MySQLAdapter) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		a.config.User,
		a.config.Password,
		a.config.Host,
		a.config.Port,
		a.config.Database,
	)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	return nil
}

// Close closes connection
func (a *MySQLAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// ExecuteQuery executes query
func (a *MySQLAdapter) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	start := time.Now()

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return &QueryResult{
			Error:         err.Error(),
			ExecutionTime: time.Since(start).Milliseconds(),
		}, err // Return error for caller to handle
	}
	defer rows.Close()

	// Get column names
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	// Read data
	var result []map[string]interface{}
	for rows.Next() {
		// Create scan targets
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		// Scan row
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		// Build map
		row := make(map[string]interface{})
		for i, col := range columns {
			val := values[i]
			// Handle []byte type
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
func (a *MySQLAdapter) GetDatabaseType() string {
	return "MySQL"
}

// GetDatabaseVersion gets database version
func (a *MySQLAdapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	result, err := a.ExecuteQuery(ctx, "SELECT VERSION() as version")
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

// ListTables returns every base table in the connected schema.
func (a *MySQLAdapter) ListTables(ctx context.Context) ([]string, error) {
	result, err := a.ExecuteQuery(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if name := stringField(row, "table_name", "TABLE_NAME"); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// GetColumns returns a table's columns in ordinal order.
func (a *MySQLAdapter) GetColumns(ctx context.Context, table string) ([]RawColumn, error) {
	result, err := a.ExecuteQuery(ctx, fmt.Sprintf(`
		SELECT column_name, column_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = '%s'
		ORDER BY ordinal_position`, escapeIdentLiteral(table)))
	if err != nil {
		return nil, err
	}
	cols := make([]RawColumn, 0, len(result.Rows))
	for _, row := range result.Rows {
		cols = append(cols, RawColumn{
			Name:       stringField(row, "column_name", "COLUMN_NAME"),
			DataType:   stringField(row, "column_type", "COLUMN_TYPE"),
			IsNullable: stringField(row, "is_nullable", "IS_NULLABLE") == "YES",
		})
	}
	return cols, nil
}

// GetPrimaryKey returns the single-column PK, or "" if composite/absent.
func (a *MySQLAdapter) GetPrimaryKey(ctx context.Context, table string) (string, error) {
	result, err := a.ExecuteQuery(ctx, fmt.Sprintf(`
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = '%s' AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position`, escapeIdentLiteral(table)))
	if err != nil {
		return "", err
	}
	if len(result.Rows) != 1 {
		return "", nil
	}
	return stringField(result.Rows[0], "column_name", "COLUMN_NAME"), nil
}

// GetForeignKeys returns the table's FK constraints, one row per
// constrained-column position.
func (a *MySQLAdapter) GetForeignKeys(ctx context.Context, table string) ([]RawForeignKey, error) {
	result, err := a.ExecuteQuery(ctx, fmt.Sprintf(`
		SELECT constraint_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = '%s' AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position`, escapeIdentLiteral(table)))
	if err != nil {
		return nil, err
	}
	fks := make([]RawForeignKey, 0, len(result.Rows))
	for _, row := range result.Rows {
		fks = append(fks, RawForeignKey{
			ConstraintName: stringField(row, "constraint_name", "CONSTRAINT_NAME"),
			ColumnName:     stringField(row, "column_name", "COLUMN_NAME"),
			PKTable:        stringField(row, "referenced_table_name", "REFERENCED_TABLE_NAME"),
			PKColumn:       stringField(row, "referenced_column_name", "REFERENCED_COLUMN_NAME"),
		})
	}
	return fks, nil
}

// stringField reads the first present key, tolerating drivers that
// return either lower- or upper-case column names for introspection
// queries run against information_schema.
func stringField(row map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// escapeIdentLiteral escapes a table name embedded in a single-quoted
// string literal within an information_schema filter. Table names here
// originate from a prior ListTables() call against the same connection,
// never from end-user input.
func escapeIdentLiteral(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
