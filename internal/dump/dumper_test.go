package dump

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func expectTableList(mock sqlmock.Sqlmock, tables ...string) {
	rows := sqlmock.NewRows([]string{"TABLE_NAME"})
	for _, table := range tables {
		rows.AddRow(table)
	}
	mock.ExpectQuery("SELECT TABLE_NAME").WillReturnRows(rows)
}

func expectOptionsTable(mock sqlmock.Sqlmock, dataRows *sqlmock.Rows) {
	mock.ExpectQuery("SHOW CREATE TABLE `wp_options`").WillReturnRows(
		sqlmock.NewRows([]string{"Table", "Create Table"}).
			AddRow("wp_options", "CREATE TABLE `wp_options` (\n  `option_id` bigint unsigned NOT NULL\n)"))
	mock.ExpectQuery("SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE").WillReturnRows(
		sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE"}).
			AddRow("option_id", "bigint", "NO").
			AddRow("option_name", "varchar", "NO").
			AddRow("option_value", "longtext", "YES"))
	mock.ExpectQuery("SELECT `option_id`, `option_name`, `option_value` FROM `wp_options`").
		WillReturnRows(dataRows)
}

func TestDumperWritesHeaderAndStructure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	expectTableList(mock, "wp_options")
	expectOptionsTable(mock, sqlmock.NewRows([]string{"option_id", "option_name", "option_value"}).
		AddRow(1, "siteurl", "https://old.example").
		AddRow(2, "blogname", nil))

	dumper := NewDumper(db, "wordpress", "sitevault", "1.0.0", nil)
	var buf bytes.Buffer
	stats, err := dumper.Dump(context.Background(), &buf, Options{})
	if err != nil {
		t.Fatalf("Dump() returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`SET SQL_MODE = "NO_AUTO_VALUE_ON_ZERO";`,
		"SET NAMES utf8mb4;",
		`SET time_zone = "+00:00";`,
		"DROP TABLE IF EXISTS `wp_options`;",
		"CREATE TABLE `wp_options`",
		"INSERT INTO `wp_options` (`option_id`, `option_name`, `option_value`) VALUES",
		"(1, 'siteurl', 'https://old.example')",
		"(2, 'blogname', NULL)",
		"SET FOREIGN_KEY_CHECKS = 1;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump output missing %q\noutput:\n%s", want, out)
		}
	}

	if stats.Tables != 1 {
		t.Errorf("Expected 1 table dumped, got %d", stats.Tables)
	}
	if stats.Rows != 2 {
		t.Errorf("Expected 2 rows dumped, got %d", stats.Rows)
	}
	if stats.Bytes != int64(buf.Len()) {
		t.Errorf("Expected %d bytes reported, got %d", buf.Len(), stats.Bytes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestDumperEscapesStringValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	expectTableList(mock, "wp_options")
	expectOptionsTable(mock, sqlmock.NewRows([]string{"option_id", "option_name", "option_value"}).
		AddRow(1, "quote", `O'Brien said "hi"`).
		AddRow(2, "newline", "line1\nline2").
		AddRow(3, "backslash", `C:\path`))

	dumper := NewDumper(db, "wordpress", "sitevault", "1.0.0", nil)
	var buf bytes.Buffer
	if _, err := dumper.Dump(context.Background(), &buf, Options{}); err != nil {
		t.Fatalf("Dump() returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`'O\'Brien said \"hi\"'`,
		`'line1\nline2'`,
		`'C:\\path'`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump output missing escaped value %q\noutput:\n%s", want, out)
		}
	}
}

func TestDumperBatchesRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	expectTableList(mock, "wp_options")
	expectOptionsTable(mock, sqlmock.NewRows([]string{"option_id", "option_name", "option_value"}).
		AddRow(1, "a", "x").
		AddRow(2, "b", "y").
		AddRow(3, "c", "z"))

	dumper := NewDumper(db, "wordpress", "sitevault", "1.0.0", nil)
	var buf bytes.Buffer
	if _, err := dumper.Dump(context.Background(), &buf, Options{BatchSize: 2}); err != nil {
		t.Fatalf("Dump() returned error: %v", err)
	}

	inserts := strings.Count(buf.String(), "INSERT INTO `wp_options`")
	if inserts != 2 {
		t.Errorf("Expected 2 INSERT statements for 3 rows with batch size 2, got %d", inserts)
	}
}

func TestDumperExcludesTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	// Both tables are listed but only wp_options may be queried further.
	expectTableList(mock, "wp_options", "wp_sessions")
	expectOptionsTable(mock, sqlmock.NewRows([]string{"option_id", "option_name", "option_value"}))

	dumper := NewDumper(db, "wordpress", "sitevault", "1.0.0", nil)
	var buf bytes.Buffer
	var seen []string
	stats, err := dumper.Dump(context.Background(), &buf, Options{
		ExcludeTables: []string{"wp_sessions"},
		OnTable: func(table string, index, total int) {
			seen = append(seen, table)
			if total != 1 {
				t.Errorf("Expected total of 1 table, got %d", total)
			}
		},
	})
	if err != nil {
		t.Fatalf("Dump() returned error: %v", err)
	}

	if stats.Tables != 1 {
		t.Errorf("Expected 1 table dumped, got %d", stats.Tables)
	}
	if len(seen) != 1 || seen[0] != "wp_options" {
		t.Errorf("Expected progress callback for wp_options only, got %v", seen)
	}
	if strings.Contains(buf.String(), "wp_sessions") {
		t.Error("Excluded table leaked into dump output")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestDumperNoTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	expectTableList(mock)

	dumper := NewDumper(db, "wordpress", "sitevault", "1.0.0", nil)
	var buf bytes.Buffer
	stats, err := dumper.Dump(context.Background(), &buf, Options{})
	if err != nil {
		t.Fatalf("Dump() returned error: %v", err)
	}
	if stats.Tables != 0 || stats.Rows != 0 {
		t.Errorf("Expected empty stats, got %+v", stats)
	}
	if !strings.Contains(buf.String(), "SET NAMES utf8mb4;") {
		t.Error("Header pragmas missing from empty dump")
	}
}

func TestRenderValue(t *testing.T) {
	tests := []struct {
		name   string
		column Column
		value  sql.RawBytes
		want   string
	}{
		{"null", Column{Name: "c", DataType: "varchar"}, nil, "NULL"},
		{"numeric", Column{Name: "c", DataType: "bigint"}, sql.RawBytes("42"), "42"},
		{"negative numeric", Column{Name: "c", DataType: "int"}, sql.RawBytes("-7"), "-7"},
		{"string", Column{Name: "c", DataType: "varchar"}, sql.RawBytes("hello"), "'hello'"},
		{"string with quote", Column{Name: "c", DataType: "text"}, sql.RawBytes("it's"), `'it\'s'`},
		{"binary", Column{Name: "c", DataType: "blob"}, sql.RawBytes{0xde, 0xad}, "0xdead"},
		{"empty binary", Column{Name: "c", DataType: "blob"}, sql.RawBytes{}, "''"},
		{"bit as binary", Column{Name: "c", DataType: "bit"}, sql.RawBytes{0x01}, "0x01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderValue(tt.column, tt.value); got != tt.want {
				t.Errorf("renderValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestColumnTypeClassification(t *testing.T) {
	if !(Column{DataType: "INT"}).IsNumeric() {
		t.Error("INT should classify as numeric regardless of case")
	}
	if !(Column{DataType: "longblob"}).IsBinary() {
		t.Error("longblob should classify as binary")
	}
	if !(Column{DataType: "longtext"}).IsText() {
		t.Error("longtext should classify as text")
	}
	if (Column{DataType: "datetime"}).IsNumeric() || (Column{DataType: "datetime"}).IsBinary() {
		t.Error("datetime should fall through to quoted string rendering")
	}
}
