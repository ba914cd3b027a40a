package domain

import (
	"errors"
	"fmt"
)

// Erros sentinela do domínio. Os tipos abaixo carregam contexto e
// respondem a errors.Is com o sentinela correspondente.
var (
	ErrValidation        = errors.New("validation failed")
	ErrMarketClosed      = errors.New("market closed for betting")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyDeclared   = errors.New("result already declared")
	ErrNotDeclared       = errors.New("no declared session to revoke")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state transition")

	// débito genérico da carteira usa o mesmo sentinela da aposta
	ErrInsufficientBalance = ErrInsufficientFunds
)

// ValidationError indica entrada rejeitada antes de abrir qualquer transação.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid é um atalho para montar um ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// MarketClosedError indica que a janela de apostas da sessão está fechada.
type MarketClosedError struct {
	MarketID string
	Session  Session
}

func (e *MarketClosedError) Error() string {
	return fmt.Sprintf("market %s closed for %s session", e.MarketID, e.Session)
}

func (e *MarketClosedError) Is(target error) bool { return target == ErrMarketClosed }

// AlreadyDeclaredError é o resultado benigno de uma corrida entre o job de
// resultados e a declaração manual: a sessão já tem padrão definido.
type AlreadyDeclaredError struct {
	MarketID string
	Day      string
	Session  Session
}

func (e *AlreadyDeclaredError) Error() string {
	return fmt.Sprintf("result already declared for market %s on %s (%s)", e.MarketID, e.Day, e.Session)
}

func (e *AlreadyDeclaredError) Is(target error) bool { return target == ErrAlreadyDeclared }
