package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLExecutor is satisfied by *pgxpool.Pool and by SQLRunner itself.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

var (
	ErrSQLMarker  = errors.New("sql marker missing or invalid")
	errEmptyQuery = errors.New("empty query")
)

var markerRegexp = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)

// SQLRunner requires every inline query to open with a `--sql <uuid>` line.
// The line is stripped before execution and its id is logged with the
// statement's outcome and latency.
type SQLRunner struct {
	db     SQLExecutor
	logger Logger
	now    func() time.Time
}

func NewSQLRunner(db SQLExecutor, logger Logger) *SQLRunner {
	return &SQLRunner{db: db, logger: logger, now: time.Now}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	id, body, err := splitMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := r.now()
	tag, err := r.db.Exec(ctx, body, args...)
	elapsed := r.now().Sub(start)
	if err != nil {
		r.logger.Error().Err(err).Str("sql", id).Dur("elapsed", elapsed).Msg("sql: exec failed")
		return tag, err
	}
	r.logger.Debug().Str("sql", id).Int64("rows", tag.RowsAffected()).Dur("elapsed", elapsed).Msg("sql: exec")
	return tag, nil
}

// QueryRow defers marker errors to Scan, matching pgx.Row semantics.
func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	id, body, err := splitMarker(query)
	if err != nil {
		return errRow{err: err}
	}
	return &timedRow{
		row:    r.db.QueryRow(ctx, body, args...),
		id:     id,
		start:  r.now(),
		now:    r.now,
		logger: r.logger,
	}
}

// IsNoRows reports whether err signals an empty result set.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type timedRow struct {
	row    pgx.Row
	id     string
	start  time.Time
	now    func() time.Time
	logger Logger
}

func (t *timedRow) Scan(dest ...any) error {
	err := t.row.Scan(dest...)
	elapsed := t.now().Sub(t.start)
	switch {
	case err == nil:
		t.logger.Debug().Str("sql", t.id).Dur("elapsed", elapsed).Msg("sql: query_row")
	case IsNoRows(err):
		t.logger.Debug().Str("sql", t.id).Dur("elapsed", elapsed).Msg("sql: query_row empty")
	default:
		t.logger.Error().Err(err).Str("sql", t.id).Dur("elapsed", elapsed).Msg("sql: scan failed")
	}
	return err
}

type errRow struct{ err error }

func (e errRow) Scan(...any) error { return e.err }

// splitMarker returns the marker id and the statement that follows it.
func splitMarker(query string) (id, body string, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", "", errEmptyQuery
	}
	first, rest, _ := strings.Cut(query, "\n")
	m := markerRegexp.FindStringSubmatch(strings.TrimSpace(first))
	if m == nil {
		return "", "", ErrSQLMarker
	}
	return m[1], rest, nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
