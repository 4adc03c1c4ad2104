package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/allopieces/push-dispatch/internal/logger"
	"github.com/allopieces/push-dispatch/internal/metrics"
)

// ErrNoRecipients is returned by the generic path when no identifier
// resolved to a delivery target; no gateway call is made.
var ErrNoRecipients = errors.New("no recipients")

// Gateway submits one built payload to the push provider.
type Gateway interface {
	Submit(ctx context.Context, payload *Payload) (*DispatchResult, error)
}

// Service is the dispatch core shared by both entry points: resolve
// recipients, build a payload, submit it. What counts as success versus
// rejection per path lives here; transport concerns live in the handlers.
type Service struct {
	resolver *Resolver
	builder  *PayloadBuilder
	gateway  Gateway
	logger   *logger.Logger
	now      func() time.Time
}

// NewService composes the dispatch core.
func NewService(resolver *Resolver, builder *PayloadBuilder, gateway Gateway, logger *logger.Logger) *Service {
	return &Service{
		resolver: resolver,
		builder:  builder,
		gateway:  gateway,
		logger:   logger,
		now:      time.Now,
	}
}

// DispatchGeneric resolves the request's identifiers, deduplicates, and
// sends one notification to every resolved target. Zero resolved targets
// is a rejection: the caller explicitly asked for delivery and supplied
// the identifiers themselves.
func (s *Service) DispatchGeneric(ctx context.Context, req *NotificationRequest) (*DispatchResult, error) {
	log := s.logger.WithContext(ctx).WithComponent("dispatch")

	req.Normalize()

	targets := s.resolver.Resolve(ctx, req.PlayerIDs, req.UserIDs, req.DeviceIDs)
	metrics.ObserveResolvedTargets(len(targets))

	if len(targets) == 0 {
		metrics.IncDispatch("generic", "no_recipients")
		log.Warn("no resolvable recipients, rejecting dispatch")
		return nil, ErrNoRecipients
	}

	payload := s.builder.BuildGeneric(req, targets, s.now())

	result, err := s.gateway.Submit(ctx, payload)
	if err != nil {
		metrics.IncDispatch("generic", "error")
		log.Error("gateway submission failed",
			slog.Int("targets", len(targets)),
			slog.String("error", err.Error()))
		return nil, err
	}

	metrics.IncDispatch("generic", "sent")
	log.Info("notification dispatched",
		slog.String("notification_id", result.NotificationID),
		slog.String("category", string(req.Type)),
		slog.Int("targets", len(targets)))

	// The response reports how many targets we asked the gateway to
	// reach, not the gateway's own delivery accounting.
	return &DispatchResult{
		NotificationID: result.NotificationID,
		Recipients:     len(targets),
	}, nil
}

// DispatchMessage sends a message-shaped notification to exactly one
// recipient. A recipient without a registered token is accepted as a
// silent no-op and returns (nil, nil): the message itself was stored
// upstream and remains readable even when push delivery is impossible.
func (s *Service) DispatchMessage(ctx context.Context, event *MessageEvent) (*DispatchResult, error) {
	log := s.logger.WithContext(ctx).WithComponent("dispatch")

	event.Normalize()

	target, ok := s.resolver.ResolveRecipient(ctx, event.RecipientID)
	if !ok {
		metrics.IncDispatch("message", "skipped")
		log.Info("recipient not reachable, accepting event without delivery",
			slog.String("recipient_id", event.RecipientID))
		return nil, nil
	}

	payload := s.builder.BuildMessage(event, target)

	result, err := s.gateway.Submit(ctx, payload)
	if err != nil {
		metrics.IncDispatch("message", "error")
		log.Error("gateway submission failed",
			slog.String("recipient_id", event.RecipientID),
			slog.String("error", err.Error()))
		return nil, err
	}

	metrics.IncDispatch("message", "sent")
	log.Info("message notification dispatched",
		slog.String("notification_id", result.NotificationID),
		slog.String("recipient_id", event.RecipientID))

	return result, nil
}
