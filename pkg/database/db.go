package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type Config struct {
	Path     string
	ReadOnly bool // the API server only reads the catalog
}

func DefaultConfig() Config {
	// env override (docker compose, CI)
	if p := os.Getenv("MANGAGUIDE_DB_PATH"); p != "" {
		return Config{Path: p}
	}

	// local default: ~/.mangaguide/catalog.db
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return Config{
		Path: filepath.Join(home, ".mangaguide", "catalog.db"),
	}
}

func EnsureDataDir(cfg Config) error {
	return os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
}

func (c Config) dsn() string {
	if c.Path == ":memory:" {
		return "file::memory:?_foreign_keys=on"
	}
	if c.ReadOnly {
		return "file:" + c.Path + "?mode=ro&_foreign_keys=on"
	}
	return "file:" + c.Path + "?_foreign_keys=on"
}

// Open opens the SQLite catalog database, creating the data dir unless the
// config is read-only.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.Path != ":memory:" && !cfg.ReadOnly {
		if err := EnsureDataDir(cfg); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if cfg.Path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if !cfg.ReadOnly {
		if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma journal_mode: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}
