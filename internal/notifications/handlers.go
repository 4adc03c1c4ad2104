package notifications

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/allopieces/push-dispatch/internal/errors"
	"github.com/allopieces/push-dispatch/internal/logger"
	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for notification dispatch.
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// SendNotification handles POST /notifications/send
// Dispatches a generic notification to a heterogeneous set of recipients.
func (h *Handler) SendNotification(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("notification-handler")

	var req NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", slog.String("error", err.Error()))
		apierrors.AbortWithBadRequest(c, "invalid request body", map[string]interface{}{"details": err.Error()})
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		log.Error("request validation failed", slog.String("error", err.Error()))
		apierrors.AbortWithBadRequest(c, err.Error(), nil)
		return
	}

	log.Info("dispatch requested",
		slog.String("category", string(req.Type)),
		slog.Int("player_ids", len(req.PlayerIDs)),
		slog.Int("user_ids", len(req.UserIDs)),
		slog.Int("device_ids", len(req.DeviceIDs)))

	result, err := h.service.DispatchGeneric(c.Request.Context(), &req)
	if err != nil {
		h.abortWithDispatchError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success:        true,
		NotificationID: result.NotificationID,
		Recipients:     result.Recipients,
	})
}

// SendMessageNotification handles POST /notifications/message
// Fired when a new direct message is created; notifies its single recipient.
func (h *Handler) SendMessageNotification(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("notification-handler")

	var event MessageEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		log.Error("failed to bind message event", slog.String("error", err.Error()))
		apierrors.AbortWithBadRequest(c, "invalid request body", map[string]interface{}{"details": err.Error()})
		return
	}

	ctx := logger.WithMessageID(c.Request.Context(), event.MessageID)
	ctx = logger.WithUserID(ctx, event.RecipientID)
	c.Request = c.Request.WithContext(ctx)
	log = h.logger.WithContext(ctx).WithComponent("notification-handler")

	log.Info("message event received", slog.String("sender_id", event.SenderID))

	result, err := h.service.DispatchMessage(ctx, &event)
	if err != nil {
		h.abortWithDispatchError(c, err)
		return
	}

	// Recipient without a registered device: the message still exists and
	// can be read in-app, so the event is a success without delivery.
	if result == nil {
		c.JSON(http.StatusOK, MessageResponse{
			Success:   true,
			Delivered: false,
			Reason:    "recipient has no registered device",
		})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{
		Success:        true,
		Delivered:      true,
		NotificationID: result.NotificationID,
		Recipients:     result.Recipients,
	})
}

// abortWithDispatchError maps dispatch core errors onto HTTP responses.
func (h *Handler) abortWithDispatchError(c *gin.Context, err error) {
	var gatewayErr *GatewayError

	switch {
	case errors.Is(err, ErrNoRecipients):
		apierrors.AbortWithBadRequest(c, "no recipients", nil)
	case errors.Is(err, ErrNotConfigured):
		apierrors.AbortWithInternal(c, "push gateway not configured", nil)
	case errors.As(err, &gatewayErr):
		apierrors.AbortWithBadGateway(c, "push gateway rejected the notification", map[string]interface{}{
			"provider_status": gatewayErr.StatusCode,
			"provider_body":   gatewayErr.Body,
		})
	default:
		apierrors.AbortWithInternal(c, "failed to dispatch notification", map[string]interface{}{"details": err.Error()})
	}
}
