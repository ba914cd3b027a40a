package live

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Subscribe escuta o canal Redis e repassa cada Update ao Hub até o contexto
// ser cancelado. Várias instâncias da API recebem o mesmo broadcast.
func Subscribe(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) error {
	sub := r.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	relay(ctx, sub.Channel(), hub, log)
	return nil
}

func relay(ctx context.Context, ch <-chan *redis.Message, hub *Hub, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg == nil {
				continue
			}
			var u Update
			if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
				log.Warn("ws subscriber unmarshal error", zap.Error(err))
				continue
			}
			hub.Broadcast(u)
		}
	}
}
