package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/membrane/internal/organization/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// mapError translates the domain error taxonomy into HTTP statuses. The
// domain only guarantees stable error kinds; presentation is owned here.
func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, organizationdomain.ErrMissingActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, organizationdomain.ErrNotAuthorized),
		errors.Is(err, organizationdomain.ErrNotAMember):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: kind(err),
		}
	case errors.Is(err, organizationdomain.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, organizationdomain.ErrInvitationExpired):
		return http.StatusGone, errorPayload{
			Type:    "invitation_expired",
			Message: "invitation expired",
		}
	case errors.Is(err, organizationdomain.ErrOwnerConflict),
		errors.Is(err, organizationdomain.ErrNoOwnerPresent),
		errors.Is(err, organizationdomain.ErrCannotRemoveOwner),
		errors.Is(err, organizationdomain.ErrCannotDemoteOwner),
		errors.Is(err, organizationdomain.ErrAlreadyAMember),
		errors.Is(err, organizationdomain.ErrInvitationAlreadyAccepted):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: kind(err),
		}
	case errors.Is(err, organizationdomain.ErrInvalidName),
		errors.Is(err, organizationdomain.ErrInvalidRole),
		errors.Is(err, organizationdomain.ErrInvalidEmail),
		errors.Is(err, organizationdomain.ErrCannotInviteAsOwner),
		errors.Is(err, organizationdomain.ErrCannotAcceptAsOwner),
		errors.Is(err, organizationdomain.ErrCannotTransferToNonAdmin),
		errors.Is(err, organizationdomain.ErrEmailMismatch):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: kind(err),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func kind(err error) string {
	return err.Error()
}
