package replace

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sitevault/internal/dump"
	"sitevault/internal/errors"
	"sitevault/internal/logging"
)

// DefaultBatchSize is the page size for table scans.
const DefaultBatchSize = 1000

// DefaultPreviewLimit bounds dry-run preview collection when the caller
// does not set a limit.
const DefaultPreviewLimit = 50

// previewMax bounds how much of a cell a dry-run preview shows.
const previewMax = 120

// Options controls one search-and-replace pass.
type Options struct {
	Search       string
	Replace      string
	Tables       []string // scope; empty means every prefixed base table
	BatchSize    int
	DryRun       bool
	PreviewLimit int // max previews collected in dry-run mode
}

// TableReport is the per-table outcome of a pass.
type TableReport struct {
	Table        string `json:"table"`
	RowsScanned  int    `json:"rows_scanned"`
	CellsChanged int    `json:"cells_changed"`
	RowsUpdated  int    `json:"rows_updated"`
}

// Preview is one before/after sample collected during a dry run.
type Preview struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Report aggregates a pass across all scanned tables. In dry-run mode
// RowsUpdated counts rows that would have been persisted.
type Report struct {
	Tables     []TableReport `json:"tables"`
	TotalRows  int           `json:"total_rows"`
	TotalCells int           `json:"total_cells"`
	Previews   []Preview     `json:"previews,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Engine runs serialization-aware search-and-replace passes over the text
// columns of a schema.
type Engine struct {
	db        *sql.DB
	inspector *dump.Inspector
	prefix    string
	logger    *logging.Logger
}

// NewEngine wires an engine against an open connection. prefix scopes the
// default table set (pass "" to scan every base table in the schema).
func NewEngine(db *sql.DB, schema, prefix string, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Engine{
		db:        db,
		inspector: dump.NewInspector(db, schema),
		prefix:    prefix,
		logger:    logger,
	}
}

// Run executes one pass. Tables without a primary key are skipped with a
// warning: without a stable row identity there is no safe way to paginate
// and address individual rows for update.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Search == "" {
		return nil, errors.NewValidationError("search value must not be empty", nil)
	}
	if opts.Search == opts.Replace {
		return nil, errors.NewValidationError("search and replace values are identical", nil)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.DryRun && opts.PreviewLimit <= 0 {
		opts.PreviewLimit = DefaultPreviewLimit
	}

	tables, err := e.resolveTables(ctx, opts.Tables)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{}
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(errors.ErrorTypeInterruption, "search-and-replace canceled", err)
		}

		tr, err := e.replaceTable(ctx, table, opts, report)
		if err != nil {
			return nil, err
		}
		report.Tables = append(report.Tables, tr)
		report.TotalRows += tr.RowsScanned
		report.TotalCells += tr.CellsChanged
	}
	report.Duration = time.Since(start)

	e.logger.WithFields(map[string]interface{}{
		"operation":     "search_replace",
		"tables":        len(report.Tables),
		"rows_scanned":  report.TotalRows,
		"cells_changed": report.TotalCells,
		"dry_run":       opts.DryRun,
		"duration":      report.Duration.String(),
	}).Info("Search and replace completed")

	return report, nil
}

// RunURLMigration expands a URL change into its literal spellings (bare,
// slash-escaped, percent-encoded, protocol-relative, www toggles) and runs
// them as an ordered sequence of passes, merging the per-table counts.
func (e *Engine) RunURLMigration(ctx context.Context, oldURL, newURL string, opts Options) (*Report, error) {
	if oldURL == "" || newURL == "" {
		return nil, errors.NewValidationError("both the current and the new URL are required", nil)
	}
	variants := URLVariants(oldURL, newURL)
	if len(variants) == 0 {
		return nil, errors.NewValidationError("URLs are identical, nothing to migrate", nil)
	}

	e.logger.WithFields(map[string]interface{}{
		"operation": "url_migration",
		"from":      oldURL,
		"to":        newURL,
		"variants":  len(variants),
	}).Info("Starting URL migration")

	start := time.Now()
	combined := &Report{}
	var order []string
	byTable := make(map[string]*TableReport)

	for _, v := range variants {
		pass := opts
		pass.Search = v.Search
		pass.Replace = v.Replace
		r, err := e.Run(ctx, pass)
		if err != nil {
			return nil, err
		}
		for _, tr := range r.Tables {
			agg, ok := byTable[tr.Table]
			if !ok {
				agg = &TableReport{Table: tr.Table}
				byTable[tr.Table] = agg
				order = append(order, tr.Table)
			}
			agg.RowsScanned += tr.RowsScanned
			agg.CellsChanged += tr.CellsChanged
			agg.RowsUpdated += tr.RowsUpdated
		}
		combined.TotalRows += r.TotalRows
		combined.TotalCells += r.TotalCells
		combined.Previews = append(combined.Previews, r.Previews...)
	}

	for _, name := range order {
		combined.Tables = append(combined.Tables, *byTable[name])
	}
	if opts.PreviewLimit > 0 && len(combined.Previews) > opts.PreviewLimit {
		combined.Previews = combined.Previews[:opts.PreviewLimit]
	}
	combined.Duration = time.Since(start)
	return combined, nil
}

// DetectSiteURL reads the canonical site URL from the platform options
// table, for manifests whose configuration does not pin one.
func (e *Engine) DetectSiteURL(ctx context.Context) (string, error) {
	table := dump.QuoteIdentifier(e.prefix + "options")
	query := fmt.Sprintf("SELECT option_value FROM %s WHERE option_name = 'siteurl' LIMIT 1", table)

	var siteURL string
	err := e.db.QueryRowContext(ctx, query).Scan(&siteURL)
	if err == sql.ErrNoRows {
		return "", errors.NewNotFoundError("siteurl option not found", err)
	}
	if err != nil {
		return "", errors.NewDatabaseError("failed to read site URL", err)
	}
	return strings.TrimRight(siteURL, "/"), nil
}

// resolveTables applies the scope: an explicit list is taken as-is, the
// default is every base table carrying the configured prefix.
func (e *Engine) resolveTables(ctx context.Context, scoped []string) ([]string, error) {
	if len(scoped) > 0 {
		return scoped, nil
	}
	all, err := e.inspector.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	if e.prefix == "" {
		return all, nil
	}
	var tables []string
	for _, t := range all {
		if strings.HasPrefix(t, e.prefix) {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

// pendingUpdate is one row's rewrite, applied after its page is fully read.
type pendingUpdate struct {
	setCols []string
	args    []interface{}
}

func (e *Engine) replaceTable(ctx context.Context, table string, opts Options, report *Report) (TableReport, error) {
	tr := TableReport{Table: table}

	pk, err := e.inspector.PrimaryKey(ctx, table)
	if err != nil {
		return tr, err
	}
	if len(pk) == 0 {
		e.logger.WithField("table", table).Warn("Table has no primary key, skipping")
		return tr, nil
	}

	cols, err := e.inspector.TableColumns(ctx, table)
	if err != nil {
		return tr, err
	}

	pkSet := make(map[string]bool, len(pk))
	for _, c := range pk {
		pkSet[c] = true
	}
	// Key columns are never rewritten: row identity must survive the pass
	// so offset pagination stays stable while rows change underneath it.
	var textCols []string
	for _, c := range cols {
		if c.IsText() && !pkSet[c.Name] {
			textCols = append(textCols, c.Name)
		}
	}
	if len(textCols) == 0 {
		return tr, nil
	}

	selectCols := append(append([]string{}, pk...), textCols...)
	quoted := make([]string, len(selectCols))
	for i, c := range selectCols {
		quoted[i] = dump.QuoteIdentifier(c)
	}
	orderCols := make([]string, len(pk))
	for i, c := range pk {
		orderCols[i] = dump.QuoteIdentifier(c)
	}
	baseQuery := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT ? OFFSET ?",
		strings.Join(quoted, ", "), dump.QuoteIdentifier(table), strings.Join(orderCols, ", "))

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return tr, errors.New(errors.ErrorTypeInterruption, "search-and-replace canceled", err)
		}

		updates, pageRows, err := e.scanPage(ctx, baseQuery, table, pk, textCols, opts, offset, &tr, report)
		if err != nil {
			return tr, err
		}

		for _, u := range updates {
			if err := e.applyUpdate(ctx, table, pk, u); err != nil {
				return tr, err
			}
			tr.RowsUpdated++
		}

		if pageRows < opts.BatchSize {
			break
		}
		offset += opts.BatchSize
	}

	return tr, nil
}

// scanPage reads one page of rows and computes the rewrites it needs.
// Updates are returned rather than executed inline so the result set is
// fully drained before any writes are issued.
func (e *Engine) scanPage(ctx context.Context, query, table string, pk, textCols []string, opts Options, offset int, tr *TableReport, report *Report) ([]pendingUpdate, int, error) {
	rows, err := e.db.QueryContext(ctx, query, opts.BatchSize, offset)
	if err != nil {
		return nil, 0, errors.NewDatabaseError(fmt.Sprintf("failed to scan table %s", table), err)
	}
	defer rows.Close()

	nCols := len(pk) + len(textCols)
	var updates []pendingUpdate
	pageRows := 0

	for rows.Next() {
		vals := make([]sql.NullString, nCols)
		dest := make([]interface{}, nCols)
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, errors.NewDatabaseError(fmt.Sprintf("failed to read row from table %s", table), err)
		}
		pageRows++
		tr.RowsScanned++

		var setCols []string
		var setVals []interface{}
		rowChanged := false
		for i, col := range textCols {
			cell := vals[len(pk)+i]
			if !cell.Valid {
				continue
			}
			after, changed := rewriteValue(cell.String, opts.Search, opts.Replace)
			if !changed {
				continue
			}
			rowChanged = true
			tr.CellsChanged++

			if opts.DryRun {
				if len(report.Previews) < opts.PreviewLimit {
					report.Previews = append(report.Previews, Preview{
						Table:  table,
						Column: col,
						Before: truncatePreview(cell.String),
						After:  truncatePreview(after),
					})
				}
				continue
			}
			setCols = append(setCols, col)
			setVals = append(setVals, after)
		}

		if opts.DryRun {
			if rowChanged {
				tr.RowsUpdated++
			}
			continue
		}
		if len(setCols) == 0 {
			continue
		}

		args := setVals
		for i := range pk {
			if vals[i].Valid {
				args = append(args, vals[i].String)
			} else {
				args = append(args, nil)
			}
		}
		updates = append(updates, pendingUpdate{setCols: setCols, args: args})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewDatabaseError(fmt.Sprintf("failed to scan table %s", table), err)
	}
	return updates, pageRows, nil
}

func (e *Engine) applyUpdate(ctx context.Context, table string, pk []string, u pendingUpdate) error {
	assignments := make([]string, len(u.setCols))
	for i, c := range u.setCols {
		assignments[i] = dump.QuoteIdentifier(c) + " = ?"
	}
	conds := make([]string, len(pk))
	for i, c := range pk {
		conds[i] = dump.QuoteIdentifier(c) + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		dump.QuoteIdentifier(table),
		strings.Join(assignments, ", "),
		strings.Join(conds, " AND "))

	if _, err := e.db.ExecContext(ctx, query, u.args...); err != nil {
		return errors.NewDatabaseError(fmt.Sprintf("failed to update row in table %s", table), err)
	}
	return nil
}

// rewriteValue applies the serialization-aware substitution to one cell.
// Serialized payloads are decoded, rewritten at their string leaves, and
// re-encoded so declared lengths stay correct; anything that is not valid
// serialized data gets a plain substring replacement.
func rewriteValue(s, search, repl string) (string, bool) {
	if !strings.Contains(s, search) {
		return s, false
	}
	if LooksSerialized(s) {
		if v, err := Decode(s); err == nil {
			rewritten, changed := Rewrite(v, search, repl)
			if !changed {
				return s, false
			}
			return Encode(rewritten), true
		}
	}
	return strings.ReplaceAll(s, search, repl), true
}

func truncatePreview(s string) string {
	r := []rune(s)
	if len(r) <= previewMax {
		return s
	}
	return string(r[:previewMax]) + "…"
}
