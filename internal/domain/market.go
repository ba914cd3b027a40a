package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayLayout é o formato do "dia de mercado" usado em apostas e resultados.
const DayLayout = "2006-01-02"

// Session identifica um dos dois pontos de declaração diários.
type Session string

const (
	SessionOpen  Session = "open"
	SessionClose Session = "close"
)

// ParseSession valida a sessão recebida do chamador.
func ParseSession(s string) (Session, error) {
	switch Session(strings.ToLower(strings.TrimSpace(s))) {
	case SessionOpen:
		return SessionOpen, nil
	case SessionClose:
		return SessionClose, nil
	}
	return "", Invalid("session", "must be open or close, got %q", s)
}

// TimeOfDay é um horário do dia em segundos desde a meia-noite.
type TimeOfDay int

// ParseTimeOfDay aceita "HH:MM" ou "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("time of day %q: want HH:MM", s)
	}
	limits := []int{23, 59, 59}
	var total int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("time of day %q: bad component %q", s, p)
		}
		total = total*60 + n
	}
	if len(parts) == 2 {
		total *= 60
	}
	return TimeOfDay(total), nil
}

// MustTimeOfDay é usado em catálogos e testes com literais conhecidos.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ClockOf extrai o horário do dia de um instante, no fuso do próprio instante.
func ClockOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func (t TimeOfDay) String() string {
	s := int(t)
	if s%60 != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
	}
	return fmt.Sprintf("%02d:%02d", s/3600, (s/60)%60)
}

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Market é uma rodada diária com horário de abertura e fechamento.
type Market struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	OpenTime       TimeOfDay `json:"open_time"`
	CloseTime      TimeOfDay `json:"close_time"`
	Enabled        bool      `json:"enabled"`
	BettingEnabled bool      `json:"betting_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Overnight indica mercado que atravessa a meia-noite (open_time > close_time).
func (m Market) Overnight() bool { return m.OpenTime > m.CloseTime }

// IsSessionOpen informa se a sessão aceita apostas no instante now, que já
// deve estar no fuso do mercado.
//
// Mercados overnight usam a mesma fórmula para open e close; a ambiguidade
// está registrada no DESIGN.md e é preservada de propósito.
func (m Market) IsSessionOpen(s Session, now time.Time) bool {
	if !m.Enabled || !m.BettingEnabled {
		return false
	}
	clock := ClockOf(now)
	if m.Overnight() {
		return clock < m.CloseTime || clock >= m.OpenTime
	}
	switch s {
	case SessionOpen:
		return clock < m.OpenTime
	case SessionClose:
		return clock < m.CloseTime
	}
	return false
}

// MarketDay devolve o dia de mercado ao qual o instante pertence. Em mercados
// overnight tudo que acontece antes do open_time pertence ao dia anterior.
func (m Market) MarketDay(now time.Time) string {
	if m.Overnight() && ClockOf(now) < m.OpenTime {
		return now.AddDate(0, 0, -1).Format(DayLayout)
	}
	return now.Format(DayLayout)
}

// ValidateDay confere o formato YYYY-MM-DD.
func ValidateDay(day string) error {
	if _, err := time.Parse(DayLayout, day); err != nil {
		return Invalid("day", "must be YYYY-MM-DD, got %q", day)
	}
	return nil
}
