package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isometry/iredadmin/internal/panel"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure. Failures is set for partial batch
// failures only, keyed by account.
type ErrorDetail struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind panel.Kind) int {
	switch kind {
	case panel.KindPermissionDenied:
		return http.StatusForbidden
	case panel.KindInvalidCredentials, panel.KindAccountDisabled:
		return http.StatusUnauthorized
	case panel.KindAlreadyExists:
		return http.StatusConflict
	case panel.KindStoreError, "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// WriteError writes err in the unified error format and aborts the request.
func WriteError(c *gin.Context, err error) {
	detail := ErrorDetail{
		Code:      string(panel.KindOf(err)),
		Message:   err.Error(),
		RequestID: c.GetString(requestIDKey),
	}
	status := statusFor(panel.KindOf(err))

	var be *panel.BatchError
	if errors.As(err, &be) {
		status = http.StatusMultiStatus
		detail.Failures = be.Failures
	}
	if detail.Code == "" {
		detail.Code = string(panel.KindStoreError)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: detail})
}

// typeError reports a malformed request field.
func typeError(field string) error {
	return panel.NewError(panel.KindTypeError, field)
}
