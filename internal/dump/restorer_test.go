package dump

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

const sampleDump = `-- sitevault SQL dump 1.0.0
-- Database: wordpress

SET NAMES utf8mb4;

DROP TABLE IF EXISTS ` + "`wp_options`" + `;
CREATE TABLE ` + "`wp_options`" + ` (
  ` + "`option_id`" + ` bigint unsigned NOT NULL
);

INSERT INTO ` + "`wp_options`" + ` (` + "`option_id`" + `) VALUES
(1),
(2);
`

func TestRestorerReplaysStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET NAMES utf8mb4").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").WillReturnResult(sqlmock.NewResult(0, 0))

	restorer := NewRestorer(db, nil)
	var progress []int
	stats, err := restorer.Restore(context.Background(), strings.NewReader(sampleDump), RestoreOptions{
		OnStatement: func(executed int) { progress = append(progress, executed) },
	})
	if err != nil {
		t.Fatalf("Restore() returned error: %v", err)
	}

	if stats.Executed != 4 {
		t.Errorf("Expected 4 executed statements, got %d", stats.Executed)
	}
	if stats.Failed != 0 {
		t.Errorf("Expected no failed statements, got %d", stats.Failed)
	}
	if stats.Skipped != 2 {
		t.Errorf("Expected 2 skipped comment lines, got %d", stats.Skipped)
	}
	if len(progress) != 4 || progress[3] != 4 {
		t.Errorf("Expected progress callbacks 1..4, got %v", progress)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRestorerLenientContinuesOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	dump := "CREATE TABLE a (id int);\nCREATE TABLE broken;\nCREATE TABLE b (id int);\n"

	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE broken").WillReturnError(errors.New("syntax error"))
	mock.ExpectExec("CREATE TABLE b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").WillReturnResult(sqlmock.NewResult(0, 0))

	restorer := NewRestorer(db, nil)
	stats, err := restorer.Restore(context.Background(), strings.NewReader(dump), RestoreOptions{Policy: ReplayLenient})
	if err != nil {
		t.Fatalf("Lenient restore should not return error, got: %v", err)
	}
	if stats.Executed != 2 {
		t.Errorf("Expected 2 executed statements, got %d", stats.Executed)
	}
	if stats.Failed != 1 {
		t.Errorf("Expected 1 failed statement, got %d", stats.Failed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRestorerStrictAbortsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	dump := "CREATE TABLE broken;\nCREATE TABLE never_reached (id int);\n"

	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE broken").WillReturnError(errors.New("syntax error"))
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").WillReturnResult(sqlmock.NewResult(0, 0))

	restorer := NewRestorer(db, nil)
	stats, err := restorer.Restore(context.Background(), strings.NewReader(dump), RestoreOptions{Policy: ReplayStrict})
	if err == nil {
		t.Fatal("Strict restore should return error on first failure")
	}
	if stats.Executed != 0 {
		t.Errorf("Expected 0 executed statements, got %d", stats.Executed)
	}
	if stats.Failed != 1 {
		t.Errorf("Expected 1 failed statement, got %d", stats.Failed)
	}
	// Foreign key checks must be restored even on abort.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRestorerExecutesTrailingStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	// Final statement has no terminating semicolon and no trailing newline.
	dump := "CREATE TABLE a (id int);\nUPDATE a SET id = 1"

	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE a SET id = 1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").WillReturnResult(sqlmock.NewResult(0, 0))

	restorer := NewRestorer(db, nil)
	stats, err := restorer.Restore(context.Background(), strings.NewReader(dump), RestoreOptions{})
	if err != nil {
		t.Fatalf("Restore() returned error: %v", err)
	}
	if stats.Executed != 2 {
		t.Errorf("Expected 2 executed statements, got %d", stats.Executed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRestorerHonorsCancellation(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	restorer := NewRestorer(db, nil)
	_, err = restorer.Restore(ctx, strings.NewReader("CREATE TABLE a (id int);\n"), RestoreOptions{})
	if err == nil {
		t.Fatal("Expected error when context is already canceled")
	}
}

func TestParseReplayPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    ReplayPolicy
		wantErr bool
	}{
		{"", ReplayLenient, false},
		{"lenient", ReplayLenient, false},
		{"STRICT", ReplayStrict, false},
		{"paranoid", "", true},
	}
	for _, tt := range tests {
		got, err := ParseReplayPolicy(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseReplayPolicy(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseReplayPolicy(%q) returned error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseReplayPolicy(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
