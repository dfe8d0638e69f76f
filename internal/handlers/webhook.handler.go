package handlers

import (
	"context"

	"github.com/fasthttp/router"

	xhttp "github.com/afrisend/comms-gateway/pkg/http"
)

type DeliveryService interface {
	Apply(ctx context.Context, messageID int64, status, providerCode, errorMessage string) error
}

// WebhookHandler receives delivery callbacks from upstream providers.
// Providers retry on non-2xx, so a duplicate callback answers 409 and
// they stop.
type WebhookHandler struct {
	svc DeliveryService
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/delivery", h.DeliveryCallback)
}

func NewWebhookHandler(deliveryService DeliveryService) *WebhookHandler {
	return &WebhookHandler{
		svc: deliveryService,
	}
}

type deliveryCallbackRequest struct {
	MessageID    int64  `json:"message_id"`
	Status       string `json:"status"`
	ProviderCode string `json:"provider_code"`
	ErrorMessage string `json:"error_message"`
}

func (h *WebhookHandler) DeliveryCallback(ctx *xhttp.RequestCtx) {
	var req deliveryCallbackRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.MessageID == 0 {
		writeError(ctx, 400, "message_id is required")
		return
	}

	if err := h.svc.Apply(ctx, req.MessageID, req.Status, req.ProviderCode, req.ErrorMessage); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "accepted"})
}
