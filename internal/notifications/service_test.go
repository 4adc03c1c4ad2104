package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/allopieces/push-dispatch/internal/config"
	"github.com/allopieces/push-dispatch/internal/logger"
)

// fakeGateway implements Gateway and records every submitted payload.
type fakeGateway struct {
	submitted []*Payload
	result    *DispatchResult
	err       error
}

func (f *fakeGateway) Submit(ctx context.Context, payload *Payload) (*DispatchResult, error) {
	f.submitted = append(f.submitted, payload)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &DispatchResult{NotificationID: "notif-1", Recipients: len(payload.IncludePlayerIDs)}, nil
}

func newTestService(store TokenStore, gateway Gateway) *Service {
	log := logger.New(logger.Config{})
	resolver := NewResolver(store, time.Second, log)
	builder := NewPayloadBuilder("test-app-id", config.DefaultDelivery())
	svc := NewService(resolver, builder, gateway, log)
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestDispatchGeneric(t *testing.T) {
	store := &fakeTokenStore{
		userTokens: map[string][]string{"user-1": {"tok-u1"}},
	}
	gateway := &fakeGateway{}
	svc := newTestService(store, gateway)

	req := &NotificationRequest{
		PlayerIDs: []string{"tok-raw"},
		UserIDs:   []string{"user-1"},
		Title:     "title",
		Message:   "message",
	}

	result, err := svc.DispatchGeneric(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(gateway.submitted) != 1 {
		t.Fatalf("expected exactly one gateway call, got %d", len(gateway.submitted))
	}
	if result.Recipients != 2 {
		t.Errorf("expected 2 recipients, got %d", result.Recipients)
	}
	if result.NotificationID != "notif-1" {
		t.Errorf("expected notification id from gateway, got %q", result.NotificationID)
	}

	// Category defaulted to message.
	payload := gateway.submitted[0]
	if payload.Data["type"] != "message" {
		t.Errorf("expected defaulted category in data bag, got %v", payload.Data["type"])
	}
}

func TestDispatchGenericNoRecipients(t *testing.T) {
	store := &fakeTokenStore{}
	gateway := &fakeGateway{}
	svc := newTestService(store, gateway)

	req := &NotificationRequest{
		UserIDs: []string{"user-without-tokens"},
		Title:   "title",
		Message: "message",
	}

	// Rejection is idempotent: two calls, two rejections, zero gateway calls.
	for i := 0; i < 2; i++ {
		_, err := svc.DispatchGeneric(context.Background(), req)
		if err != ErrNoRecipients {
			t.Fatalf("call %d: expected ErrNoRecipients, got %v", i+1, err)
		}
	}

	if len(gateway.submitted) != 0 {
		t.Errorf("expected no gateway calls, got %d", len(gateway.submitted))
	}
}

func TestDispatchGenericGatewayError(t *testing.T) {
	store := &fakeTokenStore{}
	gateway := &fakeGateway{err: &GatewayError{StatusCode: 500, Body: "server error"}}
	svc := newTestService(store, gateway)

	req := &NotificationRequest{
		PlayerIDs: []string{"tok-1"},
		Title:     "title",
		Message:   "message",
	}

	result, err := svc.DispatchGeneric(context.Background(), req)
	if result != nil {
		t.Errorf("expected no partial success, got %+v", result)
	}
	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
}

func TestDispatchMessage(t *testing.T) {
	store := &fakeTokenStore{recipient: map[string]string{"user-1": "tok-1"}}
	gateway := &fakeGateway{result: &DispatchResult{NotificationID: "notif-9", Recipients: 1}}
	svc := newTestService(store, gateway)

	event := &MessageEvent{
		MessageID:   "msg-1",
		SenderID:    "user-2",
		RecipientID: "user-1",
		Content:     strings.Repeat("x", 150),
		SenderName:  "Marie",
	}

	result, err := svc.DispatchMessage(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.NotificationID != "notif-9" {
		t.Fatalf("expected gateway result, got %+v", result)
	}

	if len(gateway.submitted) != 1 {
		t.Fatalf("expected exactly one gateway call, got %d", len(gateway.submitted))
	}

	payload := gateway.submitted[0]
	if !strings.Contains(payload.Headings["en"], "Marie") {
		t.Errorf("heading must contain sender name, got %q", payload.Headings["en"])
	}
	body := payload.Contents["en"]
	if len([]rune(body)) > 100 {
		t.Errorf("body exceeds 100 characters: %d", len([]rune(body)))
	}
	if !strings.HasSuffix(body, "...") {
		t.Errorf("expected ellipsis marker, got %q", body)
	}
}

func TestDispatchMessageRecipientUnavailable(t *testing.T) {
	store := &fakeTokenStore{recipient: map[string]string{}}
	gateway := &fakeGateway{}
	svc := newTestService(store, gateway)

	event := &MessageEvent{
		MessageID:   "msg-1",
		SenderID:    "user-2",
		RecipientID: "user-without-device",
		Content:     "hello",
	}

	result, err := svc.DispatchMessage(context.Background(), event)
	if err != nil {
		t.Fatalf("recipient without token must not be an error, got %v", err)
	}
	if result != nil {
		t.Errorf("expected no dispatch result for a no-op, got %+v", result)
	}
	if len(gateway.submitted) != 0 {
		t.Errorf("expected no gateway calls, got %d", len(gateway.submitted))
	}
}

func TestDispatchMessageDefaultsSenderName(t *testing.T) {
	store := &fakeTokenStore{recipient: map[string]string{"user-1": "tok-1"}}
	gateway := &fakeGateway{}
	svc := newTestService(store, gateway)

	event := &MessageEvent{
		MessageID:   "msg-1",
		SenderID:    "user-2",
		RecipientID: "user-1",
		Content:     "hello",
	}

	if _, err := svc.DispatchMessage(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	heading := gateway.submitted[0].Headings["en"]
	if !strings.Contains(heading, "Quelqu'un") {
		t.Errorf("expected placeholder sender name, got %q", heading)
	}
}
