package domain

import "time"

// Draw é o que uma sessão declara: padrão de 3 dígitos e o dígito derivado.
type Draw struct {
	Pattern string `json:"pattern"`
	Digit   int    `json:"digit"`
}

// Result é a linha única por (mercado, dia).
type Result struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	Day       string    `json:"day"`
	Open      *Draw     `json:"open,omitempty"`
	Close     *Draw     `json:"close,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r Result) Draw(s Session) *Draw {
	if s == SessionClose {
		return r.Close
	}
	return r.Open
}

func (r Result) Declared(s Session) bool { return r.Draw(s) != nil }

// Complete indica que open e close estão declarados.
func (r Result) Complete() bool { return r.Open != nil && r.Close != nil }

func (r *Result) Set(s Session, d Draw) {
	if s == SessionClose {
		r.Close = &d
		return
	}
	r.Open = &d
}

func (r *Result) Clear(s Session) {
	if s == SessionClose {
		r.Close = nil
		return
	}
	r.Open = nil
}

// RevocableSession escolhe a sessão a limpar: close tem prioridade.
func (r Result) RevocableSession() (Session, bool) {
	switch {
	case r.Close != nil:
		return SessionClose, true
	case r.Open != nil:
		return SessionOpen, true
	}
	return "", false
}

// ValidatePattern exige exatamente três dígitos.
func ValidatePattern(p string) error {
	if !isDigits(p, 3) {
		return Invalid("pattern", "must be 3 digits, got %q", p)
	}
	return nil
}

// DeriveDigit é a convenção do domínio: soma dos dígitos módulo 10.
func DeriveDigit(p string) int {
	sum := 0
	for i := 0; i < len(p); i++ {
		sum += int(p[i] - '0')
	}
	return sum % 10
}

// NewDraw monta o Draw; quando digit é nil o dígito é derivado do padrão.
func NewDraw(pattern string, digit *int) (Draw, error) {
	if err := ValidatePattern(pattern); err != nil {
		return Draw{}, err
	}
	d := DeriveDigit(pattern)
	if digit != nil {
		if *digit < 0 || *digit > 9 {
			return Draw{}, Invalid("digit", "must be 0-9, got %d", *digit)
		}
		d = *digit
	}
	return Draw{Pattern: pattern, Digit: d}, nil
}
