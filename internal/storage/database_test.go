package storage

import (
	"testing"

	"github.com/go-sql-driver/mysql"

	"fabricguide/internal/config"
)

func TestOpenAndMigrateSQLiteMemory(t *testing.T) {
	db, err := Open(config.StorageConfig{Driver: "sqlite3", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// idempotent
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	for _, table := range []string{"conversations", "messages", "snippets"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(config.StorageConfig{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if err := Migrate(nil, "oracle"); err == nil {
		t.Fatalf("expected migrate error for unknown driver")
	}
}

func TestMySQLDSN(t *testing.T) {
	dsn, err := mysqlDSN(config.StorageConfig{
		Driver:   "mysql",
		Host:     "db.internal",
		Username: "guide",
		Password: "p@ss",
		DBName:   "fabric",
		Params:   "sql_mode=ANSI",
	})
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("parse %q: %v", dsn, err)
	}
	if parsed.User != "guide" || parsed.Passwd != "p@ss" || parsed.DBName != "fabric" {
		t.Fatalf("unexpected credentials in %q", dsn)
	}
	if parsed.Addr != "db.internal:3306" {
		t.Fatalf("expected default port, got %q", parsed.Addr)
	}
	if !parsed.ParseTime {
		t.Fatalf("parseTime must be enabled")
	}
	if parsed.Params["sql_mode"] != "ANSI" {
		t.Fatalf("expected custom params kept, got %v", parsed.Params)
	}

	if _, err := mysqlDSN(config.StorageConfig{Params: "%zz"}); err == nil {
		t.Fatalf("expected invalid params to fail")
	}
}
