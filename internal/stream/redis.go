package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/curioapp/curio/internal/logger"
	"github.com/curioapp/curio/internal/store"
)

const changeChannelPrefix = "curio:changes:"

// envelope is the wire form of an event crossing the Redis bridge. Origin
// lets an instance skip events it mirrored itself.
type envelope struct {
	Origin string       `json:"origin"`
	Owner  string       `json:"owner"`
	Change store.Change `json:"change"`
}

// RedisBridge relays change events between server instances over Redis
// pub/sub, so a mutation on one instance reaches boards connected to another.
// Without a bridge the hub is in-process only.
type RedisBridge struct {
	rdb      *redis.Client
	hub      *Hub
	instance string
	log      logger.Logger
}

// NewRedisBridge connects to Redis and verifies the connection with a ping.
func NewRedisBridge(ctx context.Context, hub *Hub, addr, password string, db int, log logger.Logger) (*RedisBridge, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	return &RedisBridge{
		rdb:      rdb,
		hub:      hub,
		instance: uuid.New().String(),
		log:      log,
	}, nil
}

// Mirror publishes a local event to the owner's Redis channel. Failures are
// logged and otherwise ignored: remote views catch up from their snapshots.
func (b *RedisBridge) Mirror(ownerID string, ch store.Change) {
	payload, err := json.Marshal(envelope{Origin: b.instance, Owner: ownerID, Change: ch})
	if err != nil {
		b.log.Error("marshal change envelope", logger.Error(err))
		return
	}
	if err := b.rdb.Publish(context.Background(), changeChannelPrefix+ownerID, payload).Err(); err != nil {
		b.log.Warn("mirror change to redis", logger.Error(err))
	}
}

// Run subscribes to all owners' change channels and injects remote events
// into the local hub. Blocks until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.rdb.PSubscribe(ctx, changeChannelPrefix+"*")
	defer func() { _ = sub.Close() }()

	b.log.Info("redis change bridge running", logger.String("instance", b.instance))
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("malformed change envelope", logger.Error(err))
				continue
			}
			if env.Origin == b.instance {
				continue
			}
			if !env.Change.Valid() {
				b.log.Warn("invalid remote change dropped",
					logger.String("kind", string(env.Change.Kind)),
					logger.String("table", string(env.Change.Table)))
				continue
			}
			b.hub.deliver(env.Owner, env.Change)
		}
	}
}

// Close releases the Redis connection.
func (b *RedisBridge) Close() error {
	return b.rdb.Close()
}
