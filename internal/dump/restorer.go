package dump

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"sitevault/internal/errors"
	"sitevault/internal/logging"
)

// ReplayPolicy controls how statement failures are handled during replay.
type ReplayPolicy string

const (
	// ReplayLenient logs failed statements and continues. This matches the
	// tolerant behavior site restores need when a dump was taken from a
	// slightly different server version.
	ReplayLenient ReplayPolicy = "lenient"
	// ReplayStrict aborts the replay on the first failed statement.
	ReplayStrict ReplayPolicy = "strict"
)

// ParseReplayPolicy normalizes a user-supplied policy name.
func ParseReplayPolicy(name string) (ReplayPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(ReplayLenient):
		return ReplayLenient, nil
	case string(ReplayStrict):
		return ReplayStrict, nil
	default:
		return "", fmt.Errorf("unknown replay policy: %s", name)
	}
}

// ReplayStats counts the outcome of a replay run.
type ReplayStats struct {
	Executed int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// RestoreOptions tune a single replay run.
type RestoreOptions struct {
	Policy ReplayPolicy
	// OnStatement, when set, is invoked after every executed statement with
	// the running executed count.
	OnStatement func(executed int)
}

// Restorer replays a SQL dump against a live database. The reader is
// consumed line by line: comment and empty lines are skipped, remaining
// lines accumulate until a statement terminator, and each completed
// statement is executed in arrival order.
type Restorer struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewRestorer creates a restorer bound to an open database handle.
func NewRestorer(db *sql.DB, logger *logging.Logger) *Restorer {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Restorer{db: db, logger: logger}
}

// Restore replays the dump from r. Foreign key checks are disabled for the
// session before the first statement and re-enabled afterwards, including
// on abort. Statements execute strictly in stream order on one connection.
func (r *Restorer) Restore(ctx context.Context, reader io.Reader, opts RestoreOptions) (*ReplayStats, error) {
	if opts.Policy == "" {
		opts.Policy = ReplayLenient
	}
	start := time.Now()
	stats := &ReplayStats{}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return stats, errors.NewDatabaseError("failed to acquire connection for replay", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return stats, errors.NewDatabaseError("failed to disable foreign key checks", err)
	}
	defer func() {
		// Re-enable on the same session even when the replay aborts. The
		// context may already be canceled, so fall back to a fresh one.
		if _, err := conn.ExecContext(context.Background(), "SET FOREIGN_KEY_CHECKS = 1"); err != nil {
			r.logger.WithError(err).Warn("Failed to re-enable foreign key checks")
		}
	}()

	br := bufio.NewReaderSize(reader, 256*1024)
	var stmt strings.Builder

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			stats.Duration = time.Since(start)
			return stats, errors.NewIOError("failed to read dump stream", readErr)
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" && stmt.Len() == 0:
			// blank line between statements
		case strings.HasPrefix(trimmed, "--"), strings.HasPrefix(trimmed, "#"):
			stats.Skipped++
		default:
			if stmt.Len() > 0 {
				stmt.WriteByte('\n')
			}
			stmt.WriteString(strings.TrimRight(line, "\r\n"))

			if strings.HasSuffix(trimmed, ";") {
				if err := ctx.Err(); err != nil {
					stats.Duration = time.Since(start)
					return stats, errors.New(errors.ErrorTypeInterruption, "replay canceled", err)
				}
				if err := r.execute(ctx, conn, stmt.String(), opts.Policy, stats); err != nil {
					stats.Duration = time.Since(start)
					return stats, err
				}
				stmt.Reset()
				if opts.OnStatement != nil {
					opts.OnStatement(stats.Executed)
				}
			}
		}

		if readErr == io.EOF {
			break
		}
	}

	// A trailing statement without a terminator is still executed; dumps
	// produced by hand sometimes omit the final semicolon.
	if strings.TrimSpace(stmt.String()) != "" {
		if err := r.execute(ctx, conn, stmt.String(), opts.Policy, stats); err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// RestoreFile replays a dump file, transparently decompressing based on the
// file extension.
func (r *Restorer) RestoreFile(ctx context.Context, path string, opts RestoreOptions) (*ReplayStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return &ReplayStats{}, errors.NewIOError(fmt.Sprintf("failed to open dump file %s", path), err)
	}
	defer f.Close()

	cr, err := NewCompressedReader(f, DetectCompression(path))
	if err != nil {
		return &ReplayStats{}, errors.NewIOError("failed to open dump decompressor", err)
	}
	defer cr.Close()

	return r.Restore(ctx, cr, opts)
}

func (r *Restorer) execute(ctx context.Context, conn *sql.Conn, statement string, policy ReplayPolicy, stats *ReplayStats) error {
	execStart := time.Now()
	_, err := conn.ExecContext(ctx, statement)
	r.logger.LogStatementReplay(statement, time.Since(execStart), err)

	if err == nil {
		stats.Executed++
		return nil
	}

	stats.Failed++
	if policy == ReplayStrict {
		return errors.NewReplayError(
			fmt.Sprintf("statement %d failed: %s", stats.Executed+stats.Failed, logging.SanitizeStatement(statement)), err)
	}
	return nil
}
