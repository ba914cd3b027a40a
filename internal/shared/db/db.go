package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func ConnectPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// ConnectSQLite abre o banco embarcado usado em dev local e nos testes.
// Uma única conexão serializa as transações, que é o que o SQLite suporta
// para escrita; busy_timeout cobre leitores externos (ex: sqlite3 CLI).
func ConnectSQLite(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

// Connect escolhe o driver conforme STORE_DRIVER.
func Connect(driver, postgresDSN, sqlitePath string) (*sql.DB, error) {
	switch driver {
	case "postgres", "":
		return ConnectPostgres(postgresDSN)
	case "sqlite":
		return ConnectSQLite(sqlitePath)
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}
