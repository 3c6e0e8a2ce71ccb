package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/angelmondragon/bizledger-backend/pkg/config"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return conn
}

func TestNewSQLite(t *testing.T) {
	cfg := config.DBConfig{SQLitePath: filepath.Join(t.TempDir(), "ledger.db"), MaxOpenConns: 1}
	client, err := New(context.Background(), cfg, true, logger.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if client.Dialect() != DialectSQLite {
		t.Fatalf("expected sqlite dialect, got %q", client.Dialect())
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestNewRequiresDSNForPostgres(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{}, false, nil); err == nil {
		t.Fatal("expected missing dsn to fail")
	}
}

func TestWrapReportsDialect(t *testing.T) {
	client := Wrap(newTestDB(t))
	if client.Dialect() != DialectSQLite {
		t.Fatalf("expected sqlite dialect, got %q", client.Dialect())
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error is not a violation")
	}
	if !IsUniqueViolation(errString(`duplicate key value violates unique constraint "orders_number_key"`), "orders_number_key") {
		t.Fatal("expected constraint match")
	}
	if !IsUniqueViolation(errString("UNIQUE constraint failed: orders.number"), "") {
		t.Fatal("expected sqlite unique failure to match")
	}
	if IsUniqueViolation(errString("UNIQUE constraint failed: orders.number"), "bills") {
		t.Fatal("constraint filter should narrow the match")
	}

	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "idx_bills_number"})
	if !IsUniqueViolation(pgErr, "") || !IsUniqueViolation(pgErr, "idx_bills_number") {
		t.Fatal("expected sqlstate 23505 to match")
	}
	if IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), "") {
		t.Fatal("foreign key violation is not a unique violation")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
