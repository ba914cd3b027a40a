package producer

import (
	"context"

	"github.com/radieske/matka-settlement/internal/shared/kafka"
	"github.com/radieske/matka-settlement/pkg/contracts/events"
)

// KafkaPublisher publica os eventos do motor, um writer por tópico. A chave
// é o mercado, então eventos do mesmo mercado mantêm a ordem na partição.
type KafkaPublisher struct {
	Placed   kafka.MessageWriter
	Declared kafka.MessageWriter
	Revoked  kafka.MessageWriter
}

func NewKafkaPublisher(placed, declared, revoked kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Placed: placed, Declared: declared, Revoked: revoked}
}

func (p *KafkaPublisher) BidsPlaced(ctx context.Context, e events.BidsPlaced) error {
	return kafka.WriteJSON(ctx, p.Placed, e.MarketID, e)
}

func (p *KafkaPublisher) ResultDeclared(ctx context.Context, e events.ResultDeclared) error {
	return kafka.WriteJSON(ctx, p.Declared, e.MarketID, e)
}

func (p *KafkaPublisher) ResultRevoked(ctx context.Context, e events.ResultRevoked) error {
	return kafka.WriteJSON(ctx, p.Revoked, e.MarketID, e)
}
