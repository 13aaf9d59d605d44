package dump

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Column describes one table column as reported by INFORMATION_SCHEMA.
type Column struct {
	Name     string
	DataType string
	Nullable bool
}

// numericTypes and binaryTypes drive value rendering during dumps: numeric
// values are emitted unquoted, binary values as hex literals, everything
// else as escaped quoted strings.
var numericTypes = map[string]bool{
	"tinyint": true, "smallint": true, "mediumint": true, "int": true,
	"integer": true, "bigint": true, "decimal": true, "numeric": true,
	"float": true, "double": true, "real": true, "year": true,
}

var binaryTypes = map[string]bool{
	"binary": true, "varbinary": true, "tinyblob": true, "blob": true,
	"mediumblob": true, "longblob": true, "bit": true,
}

var textTypes = map[string]bool{
	"char": true, "varchar": true, "tinytext": true, "text": true,
	"mediumtext": true, "longtext": true, "enum": true, "set": true,
	"json": true,
}

// IsNumeric reports whether values of this column are emitted without quotes.
func (c Column) IsNumeric() bool { return numericTypes[strings.ToLower(c.DataType)] }

// IsBinary reports whether values of this column are emitted as hex literals.
func (c Column) IsBinary() bool { return binaryTypes[strings.ToLower(c.DataType)] }

// IsText reports whether the column holds character data that a
// search-and-replace pass can safely rewrite.
func (c Column) IsText() bool { return textTypes[strings.ToLower(c.DataType)] }

// Inspector reads table topology from INFORMATION_SCHEMA. It is shared by
// the dump writer and the search-and-replace engine.
type Inspector struct {
	db     *sql.DB
	schema string
}

// NewInspector creates an inspector bound to one database schema.
func NewInspector(db *sql.DB, schema string) *Inspector {
	return &Inspector{db: db, schema: schema}
}

// ListTables returns the base table names of the schema in name order.
// Views are excluded: they carry no row data and are recreated by the
// structure statements that reference them.
func (i *Inspector) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	rows, err := i.db.QueryContext(ctx, query, i.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables for %s: %w", i.schema, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}

// TableColumns returns the columns of a table in ordinal position order.
func (i *Inspector) TableColumns(ctx context.Context, table string) ([]Column, error) {
	query := `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	rows, err := i.db.QueryContext(ctx, query, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column for %s: %w", table, err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns for %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns or does not exist", table)
	}

	return columns, nil
}

// ShowCreateTable returns the server-rendered CREATE TABLE statement.
func (i *Inspector) ShowCreateTable(ctx context.Context, table string) (string, error) {
	var name, createSQL string
	query := fmt.Sprintf("SHOW CREATE TABLE %s", QuoteIdentifier(table))
	if err := i.db.QueryRowContext(ctx, query).Scan(&name, &createSQL); err != nil {
		return "", fmt.Errorf("failed to read create statement for %s: %w", table, err)
	}
	return createSQL, nil
}

// CountRows returns the exact row count of a table.
func (i *Inspector) CountRows(ctx context.Context, table string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", QuoteIdentifier(table))
	if err := i.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

// PrimaryKey returns the primary key column names of a table in key order.
// Tables without a primary key return an empty slice and no error.
func (i *Inspector) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	query := `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION`

	rows, err := i.db.QueryContext(ctx, query, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan key column for %s: %w", table, err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating key columns for %s: %w", table, err)
	}

	return columns, nil
}

// EstimateDataSize returns the server's estimate of the schema's total data
// bytes. The estimate feeds the pre-archive size ceiling check; it is
// approximate by nature and intentionally ignores index size.
func (i *Inspector) EstimateDataSize(ctx context.Context) (int64, error) {
	var size sql.NullInt64
	query := `
		SELECT COALESCE(SUM(DATA_LENGTH), 0)
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ?`
	if err := i.db.QueryRowContext(ctx, query, i.schema).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to estimate data size for %s: %w", i.schema, err)
	}
	return size.Int64, nil
}

// QuoteIdentifier wraps a MySQL identifier in backticks, doubling any
// embedded backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
