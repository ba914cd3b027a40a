package live

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/pkg/contracts/events"
)

// DefaultChannel é o canal Pub/Sub lido pelo WebSocket da API.
const DefaultChannel = "matka_results_broadcast"

type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Invalidator interface {
	Invalidate(ctx context.Context, marketID, day string) error
}

type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}

// Publisher é o sink de eventos do motor para o canal ao vivo. Cada
// declaração ou revogação invalida o cache do dia e é retransmitida.
type Publisher struct {
	Broadcaster Broadcaster
	Channel     string
	Cache       Invalidator // opcional
	Log         *zap.Logger
}

// BidsPlaced não é retransmitido: apostas são privadas do jogador.
func (p *Publisher) BidsPlaced(context.Context, events.BidsPlaced) error { return nil }

func (p *Publisher) ResultDeclared(ctx context.Context, e events.ResultDeclared) error {
	return p.send(ctx, UpdateDeclared, e.MarketID, e.Day, e)
}

func (p *Publisher) ResultRevoked(ctx context.Context, e events.ResultRevoked) error {
	return p.send(ctx, UpdateRevoked, e.MarketID, e.Day, e)
}

func (p *Publisher) send(ctx context.Context, kind, marketID, day string, payload any) error {
	if p.Cache != nil {
		if err := p.Cache.Invalidate(ctx, marketID, day); err != nil && p.Log != nil {
			p.Log.Warn("result cache invalidate failed", zap.String("market_id", marketID), zap.Error(err))
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	b, err := json.Marshal(Update{Type: kind, MarketID: marketID, Day: day, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	ch := p.Channel
	if ch == "" {
		ch = DefaultChannel
	}
	return p.Broadcaster.Publish(ctx, ch, b)
}
