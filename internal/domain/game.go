package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ComboSeparator separa padrão e dígito nas combinações half/full.
const ComboSeparator = "-"

// GameKind é uma das sete categorias de aposta.
type GameKind string

const (
	SingleDigit     GameKind = "single_digit"
	JodiDigit       GameKind = "jodi_digit"
	SinglePattern   GameKind = "single_pattern"
	DoublePattern   GameKind = "double_pattern"
	TriplePattern   GameKind = "triple_pattern"
	HalfCombination GameKind = "half_combination"
	FullCombination GameKind = "full_combination"
)

// GameKinds lista o catálogo fixo na ordem dos ids padrão (1..7).
var GameKinds = []GameKind{
	SingleDigit, JodiDigit, SinglePattern, DoublePattern, TriplePattern, HalfCombination, FullCombination,
}

// SingleSessionKinds são liquidados na declaração de cada sessão.
func SingleSessionKinds() []GameKind {
	return []GameKind{SingleDigit, SinglePattern, DoublePattern, TriplePattern}
}

// CrossSessionKinds exigem as duas sessões declaradas.
func CrossSessionKinds() []GameKind {
	return []GameKind{JodiDigit, HalfCombination, FullCombination}
}

func (k GameKind) Valid() bool {
	for _, g := range GameKinds {
		if g == k {
			return true
		}
	}
	return false
}

// CrossSession indica se a categoria depende de open e close.
func (k GameKind) CrossSession() bool {
	return k == JodiDigit || k == HalfCombination || k == FullCombination
}

// GameType é a linha do catálogo com o multiplicador de pagamento.
type GameType struct {
	ID               int64           `json:"id"`
	Kind             GameKind        `json:"kind"`
	Name             string          `json:"name"`
	PayoutMultiplier decimal.Decimal `json:"payout_multiplier"`
}

// Payout calcula stake × multiplicador.
func (g GameType) Payout(stake int64) decimal.Decimal {
	return decimal.NewFromInt(stake).Mul(g.PayoutMultiplier)
}

// ValidateSelection confere o formato da seleção para a categoria.
func (k GameKind) ValidateSelection(sel string) error {
	ok := false
	switch k {
	case SingleDigit:
		ok = isDigits(sel, 1)
	case JodiDigit:
		ok = isDigits(sel, 2)
	case SinglePattern:
		ok = PatternShape(sel) == 1
	case DoublePattern:
		ok = PatternShape(sel) == 2
	case TriplePattern:
		ok = PatternShape(sel) == 3
	case HalfCombination:
		a, b, found := strings.Cut(sel, ComboSeparator)
		ok = found && ((isDigits(a, 3) && isDigits(b, 1)) || (isDigits(a, 1) && isDigits(b, 3)))
	case FullCombination:
		a, b, found := strings.Cut(sel, ComboSeparator)
		ok = found && isDigits(a, 3) && isDigits(b, 3)
	default:
		return Invalid("game_type", "unknown game kind %q", k)
	}
	if !ok {
		return Invalid("selection", "%q is not a valid %s selection", sel, k)
	}
	return nil
}

// Winning devolve as seleções vencedoras da categoria dado o resultado.
// Para categorias de sessão única usa a sessão s; para as cruzadas exige o
// resultado completo e ignora s. Devolve nil se ainda não há o que comparar.
func (k GameKind) Winning(r Result, s Session) []string {
	if k.CrossSession() {
		if !r.Complete() {
			return nil
		}
		op, od := r.Open.Pattern, strconv.Itoa(r.Open.Digit)
		cp, cd := r.Close.Pattern, strconv.Itoa(r.Close.Digit)
		switch k {
		case JodiDigit:
			return []string{od + cd}
		case HalfCombination:
			return []string{op + ComboSeparator + cd, od + ComboSeparator + cp}
		case FullCombination:
			return []string{op + ComboSeparator + cp}
		}
		return nil
	}

	d := r.Draw(s)
	if d == nil {
		return nil
	}
	switch k {
	case SingleDigit:
		return []string{strconv.Itoa(d.Digit)}
	case SinglePattern, DoublePattern, TriplePattern:
		return []string{d.Pattern}
	}
	return nil
}

// Matches compara a seleção com as seleções vencedoras.
func (k GameKind) Matches(sel string, r Result, s Session) bool {
	for _, w := range k.Winning(r, s) {
		if w == sel {
			return true
		}
	}
	return false
}

// PatternShape devolve 1, 2 ou 3 conforme o padrão tenha três dígitos
// distintos, exatamente dois iguais ou três iguais; 0 se não for padrão.
func PatternShape(p string) int {
	if !isDigits(p, 3) {
		return 0
	}
	a, b, c := p[0], p[1], p[2]
	switch {
	case a == b && b == c:
		return 3
	case a == b || b == c || a == c:
		return 2
	}
	return 1
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
