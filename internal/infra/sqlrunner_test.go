package infra

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecutor struct {
	query string
	args  []any
}

func (r *recordingExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	r.query = query
	r.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *recordingExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	r.query = query
	r.args = args
	return noRow{}
}

type noRow struct{}

func (noRow) Scan(dest ...any) error { return pgx.ErrNoRows }

func TestSQLRunnerStripsMarker(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, NopLogger())

	query := "--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7\nselect 1;"
	if _, err := runner.Exec(context.Background(), query, "a"); err != nil {
		t.Fatalf("Exec returned error: %v", err)
	}
	if strings.Contains(exec.query, "--sql") {
		t.Fatalf("marker not stripped: %q", exec.query)
	}
	if strings.TrimSpace(exec.query) != "select 1;" {
		t.Fatalf("query = %q", exec.query)
	}
}

func TestSQLRunnerRejectsMissingMarker(t *testing.T) {
	runner := NewSQLRunner(&recordingExecutor{}, NopLogger())

	if _, err := runner.Exec(context.Background(), "select 1;"); !errors.Is(err, ErrSQLMarker) {
		t.Fatalf("expected ErrSQLMarker, got %v", err)
	}
	var dest string
	if err := runner.QueryRow(context.Background(), "select 1;").Scan(&dest); !errors.Is(err, ErrSQLMarker) {
		t.Fatalf("expected ErrSQLMarker from QueryRow, got %v", err)
	}
}

func TestSQLRunnerPassesNoRowsThrough(t *testing.T) {
	runner := NewSQLRunner(&recordingExecutor{}, NopLogger())

	var dest string
	err := runner.QueryRow(context.Background(), "--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7\nselect token;").Scan(&dest)
	if !IsNoRows(err) {
		t.Fatalf("expected no rows, got %v", err)
	}
}

func TestSplitMarker(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantID  string
		wantErr error
	}{
		{name: "valid", query: "\n  --sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7\nselect 1;", wantID: "8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7"},
		{name: "empty", query: "   ", wantErr: errEmptyQuery},
		{name: "uppercase id", query: "--sql 8A8E0D52-7F5D-4F21-8B7D-F7D4B821EED7\nselect 1;", wantErr: ErrSQLMarker},
		{name: "marker only", query: "--sql nope\nselect 1;", wantErr: ErrSQLMarker},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, body, err := splitMarker(tc.query)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("splitMarker error: %v", err)
			}
			if id != tc.wantID || strings.TrimSpace(body) != "select 1;" {
				t.Fatalf("splitMarker = %q, %q", id, body)
			}
		})
	}
}
