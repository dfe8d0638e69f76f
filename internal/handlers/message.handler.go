package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"

	"github.com/afrisend/comms-gateway/internal/model"
	xhttp "github.com/afrisend/comms-gateway/pkg/http"
)

type DispatchService interface {
	SendSingle(ctx context.Context, accountID int64, req model.SendRequest) (*model.Message, error)
	SendBulk(ctx context.Context, accountID int64, req model.BulkSendRequest) (*model.BulkSendResult, error)
	Cancel(ctx context.Context, accountID, messageID int64) error
	Get(ctx context.Context, accountID, messageID int64) (*model.Message, error)
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
	GetMessagesWithDeliveryReports(ctx context.Context, f model.MessageFilter) ([]*model.MessageWithDeliveryReports, int64, error)
}

type MessageHandler struct {
	svc DispatchService
}

func RegisterMessageRoutes(e *router.Group, h *MessageHandler) {
	e.POST("/messages", h.SendMessage)
	e.POST("/messages/bulk", h.SendBulk)
	e.POST("/messages/{id}/cancel", h.CancelMessage)
	e.GET("/messages/{id}", h.GetMessage)
	e.GET("/messages", h.ListMessages)
	e.GET("/messages/delivery-reports", h.ListMessagesWithDeliveryReports)
}

func NewMessageHandler(dispatchService DispatchService) *MessageHandler {
	return &MessageHandler{
		svc: dispatchService,
	}
}

type sendMessageRequest struct {
	AccountID   int64             `json:"account_id"`
	Recipient   string            `json:"recipient"`
	Content     string            `json:"content"`
	Sender      string            `json:"sender"`
	Priority    string            `json:"priority"`
	ScheduledAt *time.Time        `json:"scheduled_at"`
	Metadata    map[string]string `json:"metadata"`
	Tags        []string          `json:"tags"`
}

type sendBulkRequest struct {
	AccountID   int64             `json:"account_id"`
	Recipients  []string          `json:"recipients"`
	Content     string            `json:"content"`
	Sender      string            `json:"sender"`
	Priority    string            `json:"priority"`
	ScheduledAt *time.Time        `json:"scheduled_at"`
	Metadata    map[string]string `json:"metadata"`
	Tags        []string          `json:"tags"`
}

type listResponse struct {
	Items []*model.Message `json:"items"`
	Total int64            `json:"total"`
}

type listWithReportResponse struct {
	Items []*model.MessageWithDeliveryReports `json:"items"`
	Total int64                               `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *MessageHandler) SendMessage(ctx *xhttp.RequestCtx) {
	var req sendMessageRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.AccountID == 0 {
		writeError(ctx, 400, "account_id is required")
		return
	}

	msg, err := h.svc.SendSingle(ctx, req.AccountID, model.SendRequest{
		Recipient:   req.Recipient,
		Content:     req.Content,
		Sender:      req.Sender,
		Priority:    req.Priority,
		ScheduledAt: req.ScheduledAt,
		Metadata:    req.Metadata,
		Tags:        req.Tags,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, msg)
}

func (h *MessageHandler) SendBulk(ctx *xhttp.RequestCtx) {
	var req sendBulkRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.AccountID == 0 {
		writeError(ctx, 400, "account_id is required")
		return
	}

	result, err := h.svc.SendBulk(ctx, req.AccountID, model.BulkSendRequest{
		Recipients:  req.Recipients,
		Content:     req.Content,
		Sender:      req.Sender,
		Priority:    req.Priority,
		ScheduledAt: req.ScheduledAt,
		Metadata:    req.Metadata,
		Tags:        req.Tags,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	// Partial failure is a normal outcome for bulk; the per-recipient
	// verdicts are in the body.
	writeJSON(ctx, 200, result)
}

func (h *MessageHandler) CancelMessage(ctx *xhttp.RequestCtx) {
	messageID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid message id")
		return
	}

	var req struct {
		AccountID int64 `json:"account_id"`
	}
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.AccountID == 0 {
		writeError(ctx, 400, "account_id is required")
		return
	}

	if err := h.svc.Cancel(ctx, req.AccountID, messageID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "cancelled"})
}

func (h *MessageHandler) GetMessage(ctx *xhttp.RequestCtx) {
	messageID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid message id")
		return
	}
	accountID, err := paramInt64(ctx, "account_id")
	if err != nil {
		writeError(ctx, 400, "account_id is required")
		return
	}

	msg, err := h.svc.Get(ctx, accountID, messageID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, msg)
}

func (h *MessageHandler) ListMessages(ctx *xhttp.RequestCtx) {
	f := parseMessageFilter(ctx)
	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, listResponse{Items: items, Total: total})
}

func (h *MessageHandler) ListMessagesWithDeliveryReports(ctx *xhttp.RequestCtx) {
	f := parseMessageFilter(ctx)
	items, total, err := h.svc.GetMessagesWithDeliveryReports(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, listWithReportResponse{Items: items, Total: total})
}

func parseMessageFilter(ctx *xhttp.RequestCtx) model.MessageFilter {
	var f model.MessageFilter

	if v := query(ctx, "account_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.AccountID = &id
		}
	}
	if v := query(ctx, "batch_id"); v != "" {
		f.BatchID = &v
	}
	if v := query(ctx, "recipient"); v != "" {
		f.Recipient = &v
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.MessageStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}
	return f
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func paramInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	idStr := ctx.QueryArgs().Peek(name)
	return strconv.ParseInt(string(idStr), 10, 64)
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
