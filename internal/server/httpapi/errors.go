package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Detail            string     `json:"detail"`
	RemainingAttempts *int       `json:"remaining_attempts,omitempty"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
}

// statusFor maps an outcome kind to its HTTP status.
func statusFor(kind error) int {
	switch {
	case errors.Is(kind, common.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(kind, common.ErrInvalidCredential),
		errors.Is(kind, common.ErrInvalidToken),
		errors.Is(kind, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, common.ErrAccountLocked),
		errors.Is(kind, common.ErrNotVerified):
		return http.StatusForbidden
	case errors.Is(kind, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(kind, common.ErrAlreadyVerified),
		errors.Is(kind, common.ErrInvalidOrExpiredCode),
		errors.Is(kind, common.ErrConflict),
		errors.Is(kind, common.ErrorValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func retryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}

func (s *HTTPServer) writeError(c *gin.Context, err error) {
	ae, ok := common.AsAuthError(err)
	if !ok {
		if !errors.Is(err, common.ErrorInternal) {
			s.logger.Error(c.Request.Context(), "unhandled error", "error", err, "request_id", c.GetString(requestIDKey))
		}
		c.JSON(http.StatusInternalServerError, errorBody{Detail: "internal error"})
		return
	}

	status := statusFor(ae.Kind)
	body := errorBody{Detail: ae.Message}
	if body.Detail == "" {
		body.Detail = ae.Kind.Error()
	}

	switch status {
	case http.StatusUnauthorized:
		if ae.RemainingAttempts != nil {
			body.RemainingAttempts = ae.RemainingAttempts
			c.Header(common.RemainingAttemptsHeaderName, strconv.Itoa(*ae.RemainingAttempts))
		}
		if !errors.Is(ae.Kind, common.ErrInvalidCredential) {
			c.Header("WWW-Authenticate", "Bearer")
		}
	case http.StatusTooManyRequests:
		if ae.RetryAfter > 0 {
			c.Header("Retry-After", retryAfterSeconds(ae.RetryAfter))
		}
	case http.StatusForbidden:
		if ae.LockedUntil != nil {
			body.LockedUntil = ae.LockedUntil
			if d := ae.LockedUntil.Sub(s.clock.Now()); d > 0 {
				c.Header("Retry-After", retryAfterSeconds(d))
			}
		}
	}

	c.JSON(status, body)
}
