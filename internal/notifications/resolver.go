package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/allopieces/push-dispatch/internal/logger"
	"github.com/allopieces/push-dispatch/internal/metrics"
)

// Resolver turns application-level identifiers into OneSignal player IDs.
//
// Store lookup failures degrade delivery breadth instead of aborting the
// dispatch: a batch whose lookup errors contributes zero tokens. The failure
// is still logged and counted so "store broken" stays distinguishable from
// "no tokens" in operations, even though both dispatch the same way.
type Resolver struct {
	store         TokenStore
	logger        *logger.Logger
	lookupTimeout time.Duration
}

// NewResolver creates a resolver over the given token store.
func NewResolver(store TokenStore, lookupTimeout time.Duration, logger *logger.Logger) *Resolver {
	return &Resolver{
		store:         store,
		logger:        logger,
		lookupTimeout: lookupTimeout,
	}
}

// Resolve returns the union of raw player IDs and every token registered for
// the given user and device IDs, deduplicated in first-seen order. Raw player
// IDs pass through unconditionally.
func (r *Resolver) Resolve(ctx context.Context, playerIDs, userIDs, deviceIDs []string) []string {
	log := r.logger.WithContext(ctx).WithComponent("resolver")

	set := newTokenSet()
	set.add(playerIDs...)

	if len(userIDs) > 0 {
		tokens := r.lookup(ctx, "user_ids", func(ctx context.Context) ([]string, error) {
			return r.store.TokensForUsers(ctx, userIDs)
		})
		set.add(tokens...)
	}

	if len(deviceIDs) > 0 {
		tokens := r.lookup(ctx, "device_ids", func(ctx context.Context) ([]string, error) {
			return r.store.TokensForDevices(ctx, deviceIDs)
		})
		set.add(tokens...)
	}

	log.Info("recipients resolved",
		slog.Int("raw_player_ids", len(playerIDs)),
		slog.Int("user_ids", len(userIDs)),
		slog.Int("device_ids", len(deviceIDs)),
		slog.Int("resolved_targets", set.len()))

	return set.values()
}

// ResolveRecipient returns the single token registered for one user, for the
// message path. Both "no token registered" and "store failed" yield ok=false;
// only the latter is logged as a failure.
func (r *Resolver) ResolveRecipient(ctx context.Context, recipientID string) (string, bool) {
	log := r.logger.WithContext(ctx).WithComponent("resolver")

	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	token, found, err := r.store.TokenForRecipient(lookupCtx, recipientID)
	if err != nil {
		metrics.IncLookupFailure()
		log.Error("recipient token lookup failed",
			slog.String("recipient_id", recipientID),
			slog.String("error", err.Error()))
		return "", false
	}
	if !found {
		log.Info("recipient has no registered token",
			slog.String("recipient_id", recipientID))
		return "", false
	}

	return token, true
}

func (r *Resolver) lookup(ctx context.Context, kind string, fn func(context.Context) ([]string, error)) []string {
	log := r.logger.WithContext(ctx).WithComponent("resolver")

	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	tokens, err := fn(lookupCtx)
	if err != nil {
		// Degrade to an empty batch; the dispatch proceeds with what resolved.
		metrics.IncLookupFailure()
		log.Error("token lookup failed, continuing without this batch",
			slog.String("identifier_kind", kind),
			slog.String("error", err.Error()))
		return nil
	}

	log.Debug("token lookup succeeded",
		slog.String("identifier_kind", kind),
		slog.Int("token_count", len(tokens)))

	return tokens
}

// tokenSet is an insertion-ordered string set.
type tokenSet struct {
	seen  map[string]struct{}
	order []string
}

func newTokenSet() *tokenSet {
	return &tokenSet{seen: make(map[string]struct{})}
}

func (s *tokenSet) add(tokens ...string) {
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := s.seen[t]; ok {
			continue
		}
		s.seen[t] = struct{}{}
		s.order = append(s.order, t)
	}
}

func (s *tokenSet) len() int { return len(s.order) }

func (s *tokenSet) values() []string { return s.order }
