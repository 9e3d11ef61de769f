package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgreSQLAdapter PostgreSQL adapter
type PostgreSQLAdapter struct {
	db     *sql.DB
	config *PostgreSQLConfig
}

// PostgreSQLConfig PostgreSQL connection config
type PostgreSQLConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string // disable, require, verify-ca, verify-full
}

// NewPostgreSQLAdapter creates PostgreSQL adapter
func NewPostgreSQLAdapter(config *PostgreSQLConfig) *PostgreSQLAdapter {
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}
	return &PostgreSQLAdapter{
		config: config,
	}
}

// Connect connects to database
func (a *PostgreSQLAdapter) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		a.config.Host,
		a.config.Port,
		a.config.User,
		a.config.Password,
		a.config.Database,
		a.config.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
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
func (a *PostgreSQLAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// ExecuteQuery executes query
func (a *PostgreSQLAdapter) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
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
func (a *PostgreSQLAdapter) GetDatabaseType() string {
	return "PostgreSQL"
}

// GetDatabaseVersion gets database version
func (a *PostgreSQLAdapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	result, err := a.ExecuteQuery(ctx, "SELECT version() as version")
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

// ListTables returns every base table in the "public" schema.
func (a *PostgreSQLAdapter) ListTables(ctx context.Context) ([]string, error) {
	result, err := a.ExecuteQuery(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if name, ok := row["table_name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// GetColumns returns a table's columns in ordinal order.
func (a *PostgreSQLAdapter) GetColumns(ctx context.Context, table string) ([]RawColumn, error) {
	result, err := a.ExecuteQuery(ctx, fmt.Sprintf(`
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = '%s'
		ORDER BY ordinal_position`, escapeIdentLiteral(table)))
	if err != nil {
		return nil, err
	}
	cols := make([]RawColumn, 0, len(result.Rows))
	for _, row := range result.Rows {
		name, _ := row["column_name"].(string)
		dt, _ := row["data_type"].(string)
		nullable, _ := row["is_nullable"].(string)
		cols = append(cols, RawColumn{
			Name:       name,
			DataType:   dt,
			IsNullable: nullable == "YES",
		})
	}
	return cols, nil
}

// GetPrimaryKey returns the single-column PK, or "" if composite/absent.
func (a *PostgreSQLAdapter) GetPrimaryKey(ctx context.Context, table string) (string, error) {
	result, err := a.ExecuteQuery(ctx, fmt.Sprintf(`
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = 'public' AND tc.table_name = '%s' AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`, escapeIdentLiteral(table)))
	if err != nil {
		return "", err
	}
	if len(result.Rows) != 1 {
		return "", nil
	}
	name, _ := result.Rows[0]["column_name"].(string)
	return name, nil
}

// GetForeignKeys returns the table's FK constraints, one row per
// constrained-column position.
func (a *PostgreSQLAdapter) GetForeignKeys(ctx context.Context, table string) ([]RawForeignKey, error) {
	result, err := a.ExecuteQuery(ctx, fmt.Sprintf(`
		SELECT
			tc.constraint_name,
			kcu.column_name,
			ccu.table_name  AS referenced_table_name,
			ccu.column_name AS referenced_column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.table_schema = 'public' AND tc.table_name = '%s' AND tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.constraint_name, kcu.ordinal_position`, escapeIdentLiteral(table)))
	if err != nil {
		return nil, err
	}
	fks := make([]RawForeignKey, 0, len(result.Rows))
	for _, row := range result.Rows {
		constraintName, _ := row["constraint_name"].(string)
		columnName, _ := row["column_name"].(string)
		pkTable, _ := row["referenced_table_name"].(string)
		pkColumn, _ := row["referenced_column_name"].(string)
		fks = append(fks, RawForeignKey{
			ConstraintName: constraintName,
			ColumnName:     columnName,
			PKTable:        pkTable,
			PKColumn:       pkColumn,
		})
	}
	return fks, nil
}
