package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rishabhdvn/Secure-Collab/internal/app"
)

// BusMessage is one room event crossing instances. Except names a socket
// to skip (the original sender); Target narrows delivery to one socket.
type BusMessage struct {
	Origin  string `json:"origin"`
	RoomID  string `json:"roomId"`
	Except  string `json:"except,omitempty"`
	Target  string `json:"target,omitempty"`
	Payload []byte `json:"payload"`
}

// Bus fans room events out across server instances over redis pub/sub.
type Bus struct {
	rdb *redis.Client
	id  string // this instance, used to drop our own echoes
	log *slog.Logger
}

// NewBus connects to redis and verifies connectivity
func NewBus(ctx context.Context, cfg app.Config, log *slog.Logger) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Bus{rdb: rdb, id: uuid.NewString(), log: log}, nil
}

// Publish sends a message to the redis channel for a room
func (b *Bus) Publish(ctx context.Context, m BusMessage) error {
	m.Origin = b.id
	raw, _ := json.Marshal(m)
	return b.rdb.Publish(ctx, channel(m.RoomID), raw).Err()
}

// Subscribe listens to all room channels and invokes fn for each message
// published by another instance
func (b *Bus) Subscribe(ctx context.Context, fn func(BusMessage)) {
	pubsub := b.rdb.PSubscribe(ctx, channel("*"))
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg := <-ch:
			var bm BusMessage
			_ = json.Unmarshal([]byte(msg.Payload), &bm)
			if bm.RoomID == "" || bm.Origin == b.id {
				continue
			}
			fn(bm)
		}
	}
}

// Close shuts down the redis connection
func (b *Bus) Close() { _ = b.rdb.Close() }

// channel namespacing for room pub/sub
func channel(roomKey string) string { return "room:" + roomKey }
