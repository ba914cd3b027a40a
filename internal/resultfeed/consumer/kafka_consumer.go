package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/settlement"
	sharedkafka "github.com/radieske/matka-settlement/internal/shared/kafka"
	"github.com/radieske/matka-settlement/pkg/contracts/events"
)

// MessageReader é o lado de leitura do *kafka.Reader com commit explícito.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Declarer é o que o worker usa do motor de liquidação.
type Declarer interface {
	DeclareResult(ctx context.Context, d settlement.Declaration) (settlement.Settlement, error)
	MarketByName(ctx context.Context, name string) (domain.Market, error)
}

// DeadLetter é o envelope gravado na DLQ.
type DeadLetter struct {
	Reason   string          `json:"reason"`
	Error    string          `json:"error"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Raw      string          `json:"raw,omitempty"`
	Attempts int             `json:"attempts"`
	FailedAt time.Time       `json:"failed_at"`
}

// Processor consome result_detected e transforma cada mensagem numa
// declaração. Declaração repetida é o caso normal (job e admin correndo) e
// não é erro. Mensagens inválidas vão para a DLQ; erros transitórios são
// tentados de novo e, esgotadas as tentativas, também vão para a DLQ.
type Processor struct {
	Log      *zap.Logger
	Reader   MessageReader
	Engine   Declarer
	DLQ      sharedkafka.MessageWriter
	Attempts int           // tentativas por mensagem; padrão 3
	Backoff  time.Duration // espera entre tentativas; padrão 500ms

	OnConsumed  func()       // métricas
	OnDeclared  func()       // métricas
	OnDuplicate func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run inicia o loop de consumo; termina quando o contexto é cancelado.
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.fail("read")
			if !sleep(ctx, p.backoff()) {
				return ctx.Err()
			}
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		// o commit de uma mensagem posterior avança o offset do grupo, então
		// a mesma mensagem é tentada até ser tratada ou o contexto acabar
		if err := p.handleUntilDone(ctx, m); err != nil {
			return err
		}
		if err := p.Reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.fail("commit")
		}
	}
}

func (p *Processor) handleUntilDone(ctx context.Context, m kafka.Message) error {
	for {
		err := p.Handle(ctx, m)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.Log.Error("result message not handled, retrying", zap.Int64("offset", m.Offset), zap.Error(err))
		p.fail("handle")
		if !sleep(ctx, p.backoff()) {
			return ctx.Err()
		}
	}
}

// Handle processa uma mensagem. Só devolve erro quando nem a DLQ aceitou a
// mensagem; nesse caso ela não deve ser confirmada.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	var ev events.ResultDetected
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid result message", zap.Error(err))
		p.fail("decode")
		return p.deadLetter(ctx, m, "decode", err, 0)
	}

	var err error
	attempts := p.attempts()
	for i := 1; i <= attempts; i++ {
		err = p.declare(ctx, ev)
		switch {
		case err == nil:
			if p.OnDeclared != nil {
				p.OnDeclared()
			}
			return nil
		case errors.Is(err, domain.ErrAlreadyDeclared):
			p.Log.Debug("result already declared",
				zap.String("market", marketRef(ev)),
				zap.String("session", ev.Session))
			if p.OnDuplicate != nil {
				p.OnDuplicate()
			}
			return nil
		case permanent(err):
			p.Log.Warn("result rejected", zap.String("market", marketRef(ev)), zap.Error(err))
			p.fail("rejected")
			return p.deadLetter(ctx, m, "rejected", err, i)
		}
		p.Log.Warn("declare failed, retrying",
			zap.String("market", marketRef(ev)),
			zap.Int("attempt", i),
			zap.Error(err))
		p.fail("declare")
		if i < attempts && !sleep(ctx, p.backoff()) {
			return ctx.Err()
		}
	}
	return p.deadLetter(ctx, m, "exhausted", err, attempts)
}

func (p *Processor) declare(ctx context.Context, ev events.ResultDetected) error {
	marketID := strings.TrimSpace(ev.MarketID)
	if marketID == "" {
		name := strings.TrimSpace(ev.MarketName)
		if name == "" {
			return domain.Invalid("market", "market_id or market_name is required")
		}
		m, err := p.Engine.MarketByName(ctx, name)
		if err != nil {
			return err
		}
		marketID = m.ID
	}
	_, err := p.Engine.DeclareResult(ctx, settlement.Declaration{
		MarketID: marketID,
		Session:  domain.Session(ev.Session),
		Pattern:  strings.TrimSpace(ev.Pattern),
		Digit:    ev.Digit,
		Day:      ev.Day,
	})
	return err
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, reason string, cause error, attempts int) error {
	dl := DeadLetter{
		Reason:   reason,
		Error:    cause.Error(),
		Attempts: attempts,
		FailedAt: time.Now().UTC(),
	}
	if json.Valid(m.Value) {
		dl.Payload = json.RawMessage(m.Value)
	} else {
		dl.Raw = string(m.Value)
	}
	if p.DLQ == nil {
		p.Log.Error("dropping result message without dlq", zap.String("reason", reason), zap.Error(cause))
		return nil
	}
	if err := sharedkafka.WriteJSON(ctx, p.DLQ, string(m.Key), dl); err != nil {
		p.fail("dlq")
		return err
	}
	return nil
}

// permanent separa erros que nenhuma nova tentativa resolve.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound)
}

func marketRef(ev events.ResultDetected) string {
	if ev.MarketID != "" {
		return ev.MarketID
	}
	return ev.MarketName
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func (p *Processor) attempts() int {
	if p.Attempts <= 0 {
		return 3
	}
	return p.Attempts
}

func (p *Processor) backoff() time.Duration {
	if p.Backoff <= 0 {
		return 500 * time.Millisecond
	}
	return p.Backoff
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
