// Package cachesync keeps the Redis status caches honest: it consumes
// lifecycle events and drops the cached status for any entity that moved, so
// the next read refills from Postgres. Events are advisory; correctness
// lives in the synchronous request path.
package cachesync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/farmlink/marketplace/internal/kafka"
	"github.com/farmlink/marketplace/internal/market"
	"github.com/farmlink/marketplace/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
	Log         *slog.Logger
}

// HandleOrderStatus is wired as the consumer handler for the order topic.
func (s *Service) HandleOrderStatus(ctx context.Context, m kafkago.Message) error {
	env, ok, err := s.decode(ctx, m)
	if err != nil || !ok {
		return err
	}
	p, err := kafkax.UnwrapPayload[market.OrderStatusPayload](env.Payload)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, p.OrderID)
	if err := s.Redis.Del(ctx, key).Err(); err != nil {
		s.Log.Warn("cache invalidate failed", "key", key, "err", err)
	}
	return nil
}

// HandleRentalStatus is wired as the consumer handler for the rental topic.
func (s *Service) HandleRentalStatus(ctx context.Context, m kafkago.Message) error {
	env, ok, err := s.decode(ctx, m)
	if err != nil || !ok {
		return err
	}
	p, err := kafkax.UnwrapPayload[market.RentalStatusPayload](env.Payload)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyRentalStatus, p.RentalID)
	if err := s.Redis.Del(ctx, key).Err(); err != nil {
		s.Log.Warn("cache invalidate failed", "key", key, "err", err)
	}
	return nil
}

// decode unmarshals the envelope and dedups by event id; ok=false means the
// event was already processed (or is not for us) and should just be
// committed.
func (s *Service) decode(ctx context.Context, m kafkago.Message) (market.Envelope, bool, error) {
	var env market.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, false, err
	}
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return env, false, nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return env, true, nil
}
