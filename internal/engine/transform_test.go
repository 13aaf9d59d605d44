package engine

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitevault/internal/archive"
	"sitevault/internal/errors"
	"sitevault/internal/job"
	"sitevault/internal/replace"
	"sitevault/internal/restore"
)

// buildFilesContainer makes a container holding one file payload with a
// single site file inside.
func buildFilesContainer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	zipPath := filepath.Join(dir, "files.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("wp-content/uploads/2026/note.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	containerPath := filepath.Join(dir, "fixture.zip")
	_, err = archive.NewBuilder(nil).Build(context.Background(), containerPath,
		[]archive.Payload{{Name: "files.zip", Path: zipPath}},
		archive.Manifest{Generator: "sitevault", GeneratorVersion: "1.0.0"})
	require.NoError(t, err)
	return containerPath
}

func TestRestoreRunsAsTrackedJob(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	container := buildFilesContainer(t)
	target := t.TempDir()

	finished, summary, err := svc.Restore(context.Background(), restore.Options{
		ContainerPath: container,
		Files:         true,
		TargetRoot:    target,
	})
	require.NoError(t, err)
	assert.Equal(t, job.KindRestore, finished.Kind)
	assert.Equal(t, job.StatusCompleted, finished.Status)
	require.NotNil(t, finished.Result)
	assert.Equal(t, container, finished.Result.OutputPath)

	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.FilesRestored)
	assert.FileExists(t, filepath.Join(target, "wp-content", "uploads", "2026", "note.txt"))
}

func TestRestoreDefaultsToConfiguredRoot(t *testing.T) {
	svc, cfg := newTestService(t, nil, nil)
	container := buildFilesContainer(t)

	_, summary, err := svc.Restore(context.Background(), restore.Options{
		ContainerPath: container,
		Files:         true,
	})
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.FilesRestored)
	assert.FileExists(t, filepath.Join(cfg.Site.RootDir, "wp-content", "uploads", "2026", "note.txt"))
}

func TestRestoreFailureMarksJobFailed(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	bogus := filepath.Join(t.TempDir(), "bogus.zip")
	require.NoError(t, os.WriteFile(bogus, []byte("not a zip"), 0o644))

	finished, summary, err := svc.Restore(context.Background(), restore.Options{
		ContainerPath: bogus,
		Files:         true,
		TargetRoot:    t.TempDir(),
	})
	require.Error(t, err)
	assert.Nil(t, summary)
	require.NotNil(t, finished)
	assert.Equal(t, job.StatusFailed, finished.Status)
	assert.NotEmpty(t, finished.Error)
}

func TestSearchReplaceRunsAsTrackedJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COLUMN_NAME\\s+FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE").
		WithArgs("wordpress", "wp_options").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("option_id"))
	mock.ExpectQuery("SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE").
		WithArgs("wordpress", "wp_options").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE"}).
			AddRow("option_id", "bigint", "NO").
			AddRow("option_value", "longtext", "YES"))
	// The configured batch size feeds the page query.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `option_id`, `option_value` FROM `wp_options` ORDER BY `option_id` LIMIT ? OFFSET ?")).
		WithArgs(1000, 0).
		WillReturnRows(sqlmock.NewRows([]string{"option_id", "option_value"}).
			AddRow(1, "https://old.example"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `wp_options` SET `option_value` = ? WHERE `option_id` = ?")).
		WithArgs("https://new.example", "1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc, _ := newTestService(t, db, nil)
	finished, report, err := svc.SearchReplace(context.Background(), replace.Options{
		Search:  "https://old.example",
		Replace: "https://new.example",
		Tables:  []string{"wp_options"},
	})
	require.NoError(t, err)
	assert.Equal(t, job.KindMigrate, finished.Kind)
	assert.Equal(t, job.StatusCompleted, finished.Status)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.TotalCells)
	require.Len(t, report.Tables, 1)
	assert.Equal(t, 1, report.Tables[0].RowsUpdated)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchReplaceDryRunPersistsNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COLUMN_NAME\\s+FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE").
		WithArgs("wordpress", "wp_options").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("option_id"))
	mock.ExpectQuery("SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE").
		WithArgs("wordpress", "wp_options").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE"}).
			AddRow("option_id", "bigint", "NO").
			AddRow("option_value", "longtext", "YES"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `option_id`, `option_value` FROM `wp_options` ORDER BY `option_id` LIMIT ? OFFSET ?")).
		WithArgs(1000, 0).
		WillReturnRows(sqlmock.NewRows([]string{"option_id", "option_value"}).
			AddRow(1, "https://old.example"))

	svc, _ := newTestService(t, db, nil)
	finished, report, err := svc.SearchReplace(context.Background(), replace.Options{
		Search:  "https://old.example",
		Replace: "https://new.example",
		Tables:  []string{"wp_options"},
		DryRun:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, finished.Status)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.TotalCells)
	require.Len(t, report.Previews, 1)
	assert.Equal(t, "https://old.example", report.Previews[0].Before)
	assert.Equal(t, "https://new.example", report.Previews[0].After)

	// No ExpectExec was declared: a met expectation set proves nothing was
	// persisted.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateURLRejectsIdenticalURLs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc, _ := newTestService(t, db, nil)
	finished, report, err := svc.MigrateURL(context.Background(), "https://same.example", "https://same.example", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identical")
	assert.Nil(t, report)
	require.NotNil(t, finished)
	assert.Equal(t, job.StatusFailed, finished.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchReplaceRequiresDatabase(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	finished, report, err := svc.SearchReplace(context.Background(), replace.Options{
		Search:  "a",
		Replace: "b",
	})
	require.Error(t, err)
	assert.Nil(t, finished)
	assert.Nil(t, report)
	var engineErr *errors.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, errors.ErrorTypeValidation, engineErr.Type)
}
