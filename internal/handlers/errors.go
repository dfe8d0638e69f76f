package handlers

import (
	"errors"
	"math"
	"strconv"

	"github.com/afrisend/comms-gateway/internal/model"
	xhttp "github.com/afrisend/comms-gateway/pkg/http"
	"github.com/afrisend/comms-gateway/pkg/logger"
)

type errorResponse struct {
	Error             string   `json:"error"`
	Fields            []string `json:"fields,omitempty"`
	RetryAfter        int      `json:"retry_after,omitempty"` // seconds
	AttemptsRemaining int      `json:"attempts_remaining,omitempty"`
	State             string   `json:"state,omitempty"`
}

// writeServiceError translates the service error taxonomy into HTTP.
// Anything unrecognized is a server fault and gets logged with detail
// the client never sees.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	var (
		validation *model.ValidationError
		mismatch   *model.CodeMismatchError
		notFound   *model.NotFoundError
		rateLimit  *model.RateLimitError
		conflict   *model.StateConflictError
		dependency *model.DependencyError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(ctx, 422, errorResponse{Error: "validation failed", Fields: validation.Fields})
	case errors.As(err, &mismatch):
		writeJSON(ctx, 422, errorResponse{Error: "incorrect verification code", AttemptsRemaining: mismatch.Remaining})
	case errors.As(err, &notFound):
		writeJSON(ctx, 404, errorResponse{Error: notFound.Error()})
	case errors.As(err, &rateLimit):
		secs := int(math.Ceil(rateLimit.RetryAfter.Seconds()))
		ctx.Response.Header.Set("Retry-After", strconv.Itoa(secs))
		writeJSON(ctx, 429, errorResponse{Error: "rate limited", RetryAfter: secs})
	case errors.As(err, &conflict):
		writeJSON(ctx, 409, errorResponse{Error: conflict.Reason, State: conflict.Current})
	case errors.As(err, &dependency):
		logger.Error("dependency failure", "dependency", dependency.Dependency, "error", dependency.Err)
		writeJSON(ctx, 503, errorResponse{Error: dependency.Dependency + " unavailable"})
	default:
		logger.Error("unhandled service error", "error", err)
		writeJSON(ctx, 500, errorResponse{Error: "internal server error"})
	}
}
