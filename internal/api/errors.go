package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neuropharmdb-server/internal/domain"
	"github.com/neuropharmdb-server/internal/middleware"
)

// statusFor maps a taxonomy code to its HTTP status
func statusFor(code string) int {
	switch code {
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeAlreadyExists, domain.ErrCodeDuplicateInteraction,
		domain.ErrCodeDrugInUse, domain.ErrCodeInvalidTransition:
		return http.StatusConflict
	case domain.ErrCodeValidation, domain.ErrCodeInvalidPair:
		return http.StatusBadRequest
	case domain.ErrCodePermissionDenied:
		return http.StatusForbidden
	case domain.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case domain.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a DomainError body. Internal errors are logged
// and their text is withheld from the client.
func (s *Server) respondError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := statusFor(code)

	message := err.Error()
	details := ""
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		message = verr.Message
		details = verr.Field
	}

	if status == http.StatusInternalServerError {
		s.logger.WithField("correlation_id", c.GetString(middleware.CorrelationIDKey)).
			WithError(err).Error("Request failed")
		message = "internal server error"
	}

	c.AbortWithStatusJSON(status, domain.NewDomainError(code, message, details, c.GetString(middleware.CorrelationIDKey)))
}

// badRequest reports a malformed request body
func badRequest(c *gin.Context, err error) {
	middleware.Abort(c, http.StatusBadRequest, domain.ErrCodeValidation, err.Error())
}
