// Package store persiste carteiras, ledger, mercados, apostas e resultados.
//
// O mesmo SQL atende Postgres (produção) e SQLite (dev embarcado e testes);
// as diferenças ficam em dialect. Toda mutação composta roda dentro de
// WithTx e trava as linhas disputadas (carteira, resultado, apostas) antes
// de alterá-las.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/radieske/matka-settlement/internal/domain"
)

// querier é o subconjunto comum de *sql.DB e *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn carrega as operações que valem dentro e fora de transação.
type conn struct {
	q querier
	d dialect
}

// Store é o ponto de entrada do repositório.
type Store struct {
	conn
	db *sql.DB
}

// Tx é a unidade de trabalho; só ela expõe as leituras com trava.
type Tx struct {
	conn
	tx *sql.Tx
}

func NewPostgres(db *sql.DB) *Store { return &Store{conn: conn{q: db, d: postgres}, db: db} }

func NewSQLite(db *sql.DB) *Store { return &Store{conn: conn{q: db, d: sqlite}, db: db} }

// New escolhe o dialeto pelo nome do driver configurado.
func New(driver string, db *sql.DB) (*Store, error) {
	switch driver {
	case "postgres", "":
		return NewPostgres(db), nil
	case "sqlite":
		return NewSQLite(db), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate aplica o schema do dialeto; cada comando é idempotente.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.d.name, err)
		}
	}
	return nil
}

// WithTx executa fn numa transação; qualquer erro desfaz tudo.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{conn: conn{q: tx, d: s.d}, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// notFound traduz sql.ErrNoRows para o sentinela do domínio.
func notFound(err error, what string, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, key, domain.ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", what, key, err)
}

// placeholders gera "$start,...,$start+n-1".
func placeholders(start, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = "$" + strconv.Itoa(start+i)
	}
	return strings.Join(ps, ",")
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
