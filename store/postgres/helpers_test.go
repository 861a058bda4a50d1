package postgres

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestQueryBuild(t *testing.T) {
	wake := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		q        *query
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "no conditions",
			q:       newQuery("SELECT id FROM remind_runs"),
			wantSQL: "SELECT id FROM remind_runs",
		},
		{
			name: "conditions and page",
			q: newQuery("SELECT id FROM remind_runs").
				where("state = ?", "sleeping").
				where("wake_at < ?", wake).
				orderBy("created_at ASC").
				page(10, 20),
			wantSQL:  "SELECT id FROM remind_runs WHERE state = $1 AND wake_at < $2 ORDER BY created_at ASC LIMIT $3 OFFSET $4",
			wantArgs: []any{"sleeping", wake, 10, 20},
		},
		{
			name:     "offset only",
			q:        newQuery("SELECT id FROM remind_dlq").orderBy("failed_at DESC").page(0, 5),
			wantSQL:  "SELECT id FROM remind_dlq ORDER BY failed_at DESC OFFSET $1",
			wantArgs: []any{5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs := tt.q.build()
			if gotSQL != tt.wantSQL {
				t.Errorf("sql = %q, want %q", gotSQL, tt.wantSQL)
			}
			if len(gotArgs) != len(tt.wantArgs) || (len(tt.wantArgs) > 0 && !reflect.DeepEqual(gotArgs, tt.wantArgs)) {
				t.Errorf("args = %v, want %v", gotArgs, tt.wantArgs)
			}
		})
	}
}

func TestMigrationFilesSorted(t *testing.T) {
	names, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(names) < 2 {
		t.Fatalf("expected at least 2 migrations, got %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("migrations out of order: %v", names)
		}
	}
	for _, n := range names {
		if !strings.HasSuffix(n, ".sql") {
			t.Errorf("unexpected migration file %q", n)
		}
	}
}

func TestErrorClassifiers(t *testing.T) {
	if !isNoRows(fmt.Errorf("wrap: %w", pgx.ErrNoRows)) {
		t.Error("wrapped pgx.ErrNoRows not recognised")
	}
	if isNoRows(errors.New("boom")) {
		t.Error("plain error classified as no rows")
	}
	if !isDuplicateKey(&pgconn.PgError{Code: "23505"}) {
		t.Error("unique violation not recognised")
	}
	if isDuplicateKey(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign key violation classified as duplicate")
	}
}
