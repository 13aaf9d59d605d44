package dump

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"sitevault/internal/errors"
	"sitevault/internal/logging"
)

// DefaultBatchSize is the number of rows grouped into one INSERT statement.
const DefaultBatchSize = 1000

// Options are per-dump knobs. Zero values select the defaults.
type Options struct {
	// ExcludeTables are table names skipped entirely (structure and data).
	ExcludeTables []string
	// BatchSize is the number of rows per INSERT statement.
	BatchSize int
	// OnTable, when set, is invoked before each table is dumped with the
	// 1-based index and total table count.
	OnTable func(table string, index, total int)
}

func (o *Options) normalize() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
}

// Stats summarizes a completed dump.
type Stats struct {
	Tables   int
	Rows     int64
	Bytes    int64
	Duration time.Duration
}

// Dumper writes a logical SQL dump of one schema: session pragmas, then per
// table a DROP/CREATE pair followed by batched multi-row INSERT statements.
type Dumper struct {
	db        *sql.DB
	inspector *Inspector
	schema    string
	generator string
	version   string
	logger    *logging.Logger
}

// NewDumper creates a dumper for the given schema. Generator and version
// are embedded in the dump header for provenance.
func NewDumper(db *sql.DB, schema, generator, version string, logger *logging.Logger) *Dumper {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Dumper{
		db:        db,
		inspector: NewInspector(db, schema),
		schema:    schema,
		generator: generator,
		version:   version,
		logger:    logger,
	}
}

// Inspector exposes the dumper's schema inspector.
func (d *Dumper) Inspector() *Inspector { return d.inspector }

// Dump streams the full dump to w. The write order is deterministic: header
// pragmas, tables in name order, footer. Cancellation is honored between
// tables and between row batches.
func (d *Dumper) Dump(ctx context.Context, w io.Writer, opts Options) (*Stats, error) {
	opts.normalize()
	start := time.Now()

	tables, err := d.inspector.ListTables(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to enumerate tables", err)
	}
	tables = filterTables(tables, opts.ExcludeTables)

	counter := &countingWriter{w: w}
	bw := bufio.NewWriterSize(counter, 256*1024)
	stats := &Stats{}

	d.writeHeader(bw)

	for idx, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(errors.ErrorTypeInterruption, "dump canceled", err)
		}
		if opts.OnTable != nil {
			opts.OnTable(table, idx+1, len(tables))
		}

		tableStart := time.Now()
		rows, err := d.dumpTable(ctx, bw, table, opts.BatchSize)
		d.logger.LogTableDump(table, rows, time.Since(tableStart), err)
		if err != nil {
			return nil, errors.NewDatabaseError(fmt.Sprintf("failed to dump table %s", table), err)
		}

		stats.Tables++
		stats.Rows += rows
	}

	d.writeFooter(bw)

	if err := bw.Flush(); err != nil {
		return nil, errors.NewIOError("failed to flush dump stream", err)
	}

	stats.Bytes = counter.n
	stats.Duration = time.Since(start)
	return stats, nil
}

// WriteFile dumps the schema to path, applying the compression implied by
// the caller. A partial file left by a failed dump is removed.
func (d *Dumper) WriteFile(ctx context.Context, path string, compression Compression, opts Options) (*Stats, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to create dump file %s", path), err)
	}

	cw, err := NewCompressedWriter(f, compression)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, errors.NewIOError("failed to initialize dump compression", err)
	}

	stats, dumpErr := d.Dump(ctx, cw, opts)

	if err := cw.Close(); err != nil && dumpErr == nil {
		dumpErr = errors.NewIOError("failed to finalize compressed dump", err)
	}
	if err := f.Close(); err != nil && dumpErr == nil {
		dumpErr = errors.NewIOError("failed to close dump file", err)
	}
	if dumpErr != nil {
		os.Remove(path)
		return nil, dumpErr
	}

	return stats, nil
}

// FileName returns the canonical dump file name for a compression choice,
// e.g. database.sql.gz for gzip.
func FileName(compression Compression) string {
	return "database.sql" + compression.Extension()
}

func (d *Dumper) writeHeader(w *bufio.Writer) {
	fmt.Fprintf(w, "-- %s SQL dump %s\n", d.generator, d.version)
	fmt.Fprintf(w, "-- Database: %s\n", d.schema)
	fmt.Fprintf(w, "-- Generation time: %s\n", time.Now().UTC().Format(time.RFC3339))
	w.WriteString("\n")
	w.WriteString("SET SQL_MODE = \"NO_AUTO_VALUE_ON_ZERO\";\n")
	w.WriteString("SET NAMES utf8mb4;\n")
	w.WriteString("SET time_zone = \"+00:00\";\n")
	w.WriteString("SET FOREIGN_KEY_CHECKS = 0;\n")
	w.WriteString("\n")
}

func (d *Dumper) writeFooter(w *bufio.Writer) {
	w.WriteString("SET FOREIGN_KEY_CHECKS = 1;\n")
}

// dumpTable writes the structure and data sections of one table and
// returns the number of rows written.
func (d *Dumper) dumpTable(ctx context.Context, w *bufio.Writer, table string, batchSize int) (int64, error) {
	createSQL, err := d.inspector.ShowCreateTable(ctx, table)
	if err != nil {
		return 0, err
	}

	columns, err := d.inspector.TableColumns(ctx, table)
	if err != nil {
		return 0, err
	}

	quoted := QuoteIdentifier(table)
	fmt.Fprintf(w, "-- Table structure for %s\n", quoted)
	fmt.Fprintf(w, "DROP TABLE IF EXISTS %s;\n", quoted)
	w.WriteString(createSQL)
	w.WriteString(";\n\n")

	columnNames := make([]string, len(columns))
	for i, col := range columns {
		columnNames[i] = QuoteIdentifier(col.Name)
	}
	selectSQL := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columnNames, ", "), quoted)

	rows, err := d.db.QueryContext(ctx, selectSQL)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	raw := make([]sql.RawBytes, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}

	insertPrefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES\n", quoted, strings.Join(columnNames, ", "))
	var written int64
	var inBatch int

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if err := rows.Scan(dest...); err != nil {
			return written, err
		}

		if inBatch == 0 {
			w.WriteString(insertPrefix)
		} else {
			w.WriteString(",\n")
		}

		w.WriteByte('(')
		for i, col := range columns {
			if i > 0 {
				w.WriteString(", ")
			}
			w.WriteString(renderValue(col, raw[i]))
		}
		w.WriteByte(')')

		written++
		inBatch++
		if inBatch >= batchSize {
			w.WriteString(";\n")
			inBatch = 0
		}
	}
	if err := rows.Err(); err != nil {
		return written, err
	}

	if inBatch > 0 {
		w.WriteString(";\n")
	}
	if written > 0 {
		w.WriteString("\n")
	}

	return written, nil
}

// renderValue formats one cell for an INSERT statement according to the
// column's type class.
func renderValue(col Column, value sql.RawBytes) string {
	if value == nil {
		return "NULL"
	}
	switch {
	case col.IsNumeric():
		if len(value) == 0 {
			return "''"
		}
		return string(value)
	case col.IsBinary():
		if len(value) == 0 {
			return "''"
		}
		return "0x" + hex.EncodeToString(value)
	default:
		return "'" + escapeString(value) + "'"
	}
}

// escapeString escapes a byte sequence for inclusion in a single-quoted
// MySQL string literal.
func escapeString(value []byte) string {
	var sb strings.Builder
	sb.Grow(len(value) + 8)
	for _, ch := range value {
		switch ch {
		case 0:
			sb.WriteString(`\0`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\'':
			sb.WriteString(`\'`)
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case 0x1a:
			sb.WriteString(`\Z`)
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}

func filterTables(tables, excluded []string) []string {
	if len(excluded) == 0 {
		return tables
	}
	skip := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		skip[strings.ToLower(name)] = true
	}
	kept := tables[:0]
	for _, table := range tables {
		if !skip[strings.ToLower(table)] {
			kept = append(kept, table)
		}
	}
	return kept
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
