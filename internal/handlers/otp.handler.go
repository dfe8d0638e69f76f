package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"

	"github.com/afrisend/comms-gateway/internal/model"
	xhttp "github.com/afrisend/comms-gateway/pkg/http"
)

type OTPService interface {
	Request(ctx context.Context, accountID int64, req model.OTPRequest) (*model.OTPRecord, error)
	Verify(ctx context.Context, accountID int64, recipient, code string) (*model.OTPVerifyResult, error)
	Resend(ctx context.Context, accountID int64, recipient string) (*model.OTPRecord, error)
}

type OTPHandler struct {
	svc OTPService
}

func RegisterOTPRoutes(e *router.Group, h *OTPHandler) {
	e.POST("/otp", h.RequestOTP)
	e.POST("/otp/verify", h.VerifyOTP)
	e.POST("/otp/resend", h.ResendOTP)
}

func NewOTPHandler(otpService OTPService) *OTPHandler {
	return &OTPHandler{
		svc: otpService,
	}
}

type requestOTPRequest struct {
	AccountID     int64             `json:"account_id"`
	Recipient     string            `json:"recipient"`
	CodeLength    int               `json:"code_length"`
	PinType       string            `json:"pin_type"`
	ExpirySeconds int               `json:"expiry_seconds"`
	MaxAttempts   int               `json:"max_attempts"`
	Sender        string            `json:"sender"`
	Template      string            `json:"template"`
	Amount        string            `json:"amount"`
	Metadata      map[string]string `json:"metadata"`
}

type verifyOTPRequest struct {
	AccountID int64  `json:"account_id"`
	Recipient string `json:"recipient"`
	Code      string `json:"code"`
}

type resendOTPRequest struct {
	AccountID int64  `json:"account_id"`
	Recipient string `json:"recipient"`
}

func (h *OTPHandler) RequestOTP(ctx *xhttp.RequestCtx) {
	var req requestOTPRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.AccountID == 0 {
		writeError(ctx, 400, "account_id is required")
		return
	}

	record, err := h.svc.Request(ctx, req.AccountID, model.OTPRequest{
		Recipient:   req.Recipient,
		CodeLength:  req.CodeLength,
		PinType:     model.PinType(req.PinType),
		Expiry:      time.Duration(req.ExpirySeconds) * time.Second,
		MaxAttempts: req.MaxAttempts,
		Sender:      req.Sender,
		Template:    req.Template,
		Amount:      req.Amount,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, record)
}

func (h *OTPHandler) VerifyOTP(ctx *xhttp.RequestCtx) {
	var req verifyOTPRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.AccountID == 0 {
		writeError(ctx, 400, "account_id is required")
		return
	}

	result, err := h.svc.Verify(ctx, req.AccountID, req.Recipient, req.Code)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, result)
}

func (h *OTPHandler) ResendOTP(ctx *xhttp.RequestCtx) {
	var req resendOTPRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.AccountID == 0 {
		writeError(ctx, 400, "account_id is required")
		return
	}

	record, err := h.svc.Resend(ctx, req.AccountID, req.Recipient)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, record)
}
