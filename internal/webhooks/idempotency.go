package webhooks

import (
	"context"
	"time"

	"github.com/playforge/payments-backend/pkg/logger"
	"github.com/playforge/payments-backend/pkg/redis"
)

const defaultEventTTL = 24 * time.Hour

// IdempotencyGuard drops webhook redeliveries that were already processed.
// It is best effort: if Redis is unreachable the event is processed anyway,
// because the ledger's absorbing states make reprocessing harmless.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	scope string
	ttl   time.Duration
	logg  *logger.Logger
}

// NewIdempotencyGuard builds a guard for one webhook source. A nil store
// disables deduplication entirely.
func NewIdempotencyGuard(store redis.IdempotencyStore, scope string, logg *logger.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{
		store: store,
		scope: scope,
		ttl:   defaultEventTTL,
		logg:  logg,
	}
}

// CheckAndMark reserves the event id. It returns true when the event is
// fresh and should be processed.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) bool {
	if g == nil || g.store == nil || eventID == "" {
		return true
	}
	fresh, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, eventID), 1, g.ttl)
	if err != nil {
		if g.logg != nil {
			g.logg.Warn(g.logg.WithField(ctx, "event_id", eventID), "webhook dedup unavailable, processing anyway")
		}
		return true
	}
	return fresh
}

// Release frees the reservation so a failed event can be redelivered.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) {
	if g == nil || g.store == nil || eventID == "" {
		return
	}
	if err := g.store.Del(ctx, g.store.IdempotencyKey(g.scope, eventID)); err != nil && g.logg != nil {
		g.logg.Warn(g.logg.WithField(ctx, "event_id", eventID), "failed to release webhook dedup key")
	}
}
