package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

// ErrorResponse is the body of every non-2xx response.
//
//	{"request_id": "4f0c…", "code": "not_found", "message": "no recipe found"}
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message, safe to show to users
	Message string `json:"message" example:"no recipe found"`
}

// Fail aborts the request with an ErrorResponse. 5xx responses are also
// logged with the request-scoped logger.
func Fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

func fail(c *gin.Context, status int, code, msg string) { Fail(c, status, code, msg) }

type failure struct {
	status int
	code   string
}

// kindFailures maps service error kinds to responses. KindValidation is
// absent: its code depends on the endpoint.
var kindFailures = map[services.Kind]failure{
	services.KindNotFound:       {http.StatusNotFound, ErrCodeNotFound},
	services.KindCreationFailed: {http.StatusUnprocessableEntity, ErrCodeCreateFailed},
	services.KindUpdateFailed:   {http.StatusUnprocessableEntity, ErrCodeUpdateFailed},
}

// failService answers with the status and code for err's kind. Validation
// errors use validationCode. Unclassified errors become an opaque 500 and
// their detail goes only to the log.
func failService(c *gin.Context, err error, validationCode string) {
	kind := services.KindOf(err)
	if kind == services.KindValidation {
		fail(c, http.StatusBadRequest, validationCode, err.Error())
		return
	}
	f, known := kindFailures[kind]
	if !known {
		middleware.LoggerFrom(c).Error().Err(err).Msg("unclassified service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		return
	}
	if cause := errors.Unwrap(err); cause != nil && f.status == http.StatusUnprocessableEntity {
		middleware.LoggerFrom(c).Warn().Err(cause).Str("kind", kind.String()).Msg("integrity violation")
	}
	fail(c, f.status, f.code, err.Error())
}

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }
