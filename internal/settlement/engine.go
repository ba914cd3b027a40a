// Package settlement é o motor de apostas: colocação atômica, declaração e
// liquidação de resultados, revogação com estorno, reprocessamento e
// reembolso de mercado. Toda operação composta roda numa única transação
// do store; eventos só saem depois do commit.
package settlement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/store"
	"github.com/radieske/matka-settlement/pkg/contracts/events"
)

// EventSink recebe os eventos após o commit. Falha de publicação é só
// logada: a operação já está gravada.
type EventSink interface {
	BidsPlaced(ctx context.Context, e events.BidsPlaced) error
	ResultDeclared(ctx context.Context, e events.ResultDeclared) error
	ResultRevoked(ctx context.Context, e events.ResultRevoked) error
}

type Options struct {
	Location *time.Location   // fuso dos horários de mercado; padrão UTC
	MinStake int64            // padrão domain.DefaultMinStake
	MaxStake int64            // padrão domain.DefaultMaxStake
	Now      func() time.Time // relógio injetável nos testes
	Metrics  *Metrics
	Sinks    []EventSink
}

type Engine struct {
	store    *store.Store
	log      *zap.Logger
	loc      *time.Location
	minStake int64
	maxStake int64
	clock    func() time.Time
	metrics  *Metrics
	sinks    []EventSink
}

func New(s *store.Store, log *zap.Logger, opts Options) *Engine {
	e := &Engine{
		store:    s,
		log:      log,
		loc:      opts.Location,
		minStake: opts.MinStake,
		maxStake: opts.MaxStake,
		clock:    opts.Now,
		metrics:  opts.Metrics,
		sinks:    opts.Sinks,
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.minStake <= 0 {
		e.minStake = domain.DefaultMinStake
	}
	if e.maxStake <= 0 {
		e.maxStake = domain.DefaultMaxStake
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

// AddSink registra um destino de eventos; usado no main antes de servir.
func (e *Engine) AddSink(s EventSink) { e.sinks = append(e.sinks, s) }

// now devolve o instante atual no fuso do mercado.
func (e *Engine) now() time.Time { return e.clock().In(e.loc) }

func (e *Engine) MinStake() int64 { return e.minStake }

// withTx mede e executa fn numa transação do store.
func (e *Engine) withTx(ctx context.Context, op string, fn func(tx *store.Tx) error) error {
	defer e.metrics.observe(op, time.Now())
	return e.store.WithTx(ctx, fn)
}

func (e *Engine) publish(name string, fn func(EventSink) error) {
	for _, s := range e.sinks {
		if err := fn(s); err != nil {
			e.log.Warn("event publish failed", zap.String("event", name), zap.Error(err))
		}
	}
}

// gameTypes carrega o catálogo indexado por id.
func gameTypes(ctx context.Context, tx *store.Tx) (map[int64]domain.GameType, error) {
	list, err := tx.ListGameTypes(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]domain.GameType, len(list))
	for _, g := range list {
		out[g.ID] = g
	}
	return out, nil
}
