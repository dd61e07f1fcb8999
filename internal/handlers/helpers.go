package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"pennywise/internal/budget"
	apperrors "pennywise/internal/errors"
	"pennywise/internal/events"
	"pennywise/internal/logger"
	"pennywise/internal/uuid"
	"pennywise/internal/validator"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error apperrors.AppError `json:"error"`
}

// MessageResponse represents a simple message response
type MessageResponse struct {
	Message string `json:"message"`
}

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString("userID")
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parsePathID parses a UUID path parameter.
//
//nolint:unparam // param is intentionally generic for reuse across handlers with different path params
func parsePathID(c *gin.Context, param string) (string, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return "", apperrors.Field(apperrors.ErrInvalidInput, param, "Invalid "+param)
	}
	return id, nil
}

// bindError turns a binding failure into a field-keyed validation error, or
// an invalid-input error when the body could not be decoded at all.
func bindError(err error) error {
	if fields := validator.FieldErrors(err); fields != nil {
		return apperrors.WithFields(apperrors.ErrValidation, fields)
	}
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}

// periodQuery reads a required period from the month and year query parameters.
func periodQuery(c *gin.Context, monthKey, yearKey string) (budget.Period, error) {
	fields := map[string]string{}
	month, err := strconv.Atoi(c.Query(monthKey))
	if err != nil {
		fields[monthKey] = monthKey + " must be an integer"
	}
	year, err := strconv.Atoi(c.Query(yearKey))
	if err != nil {
		fields[yearKey] = yearKey + " must be an integer"
	}
	if len(fields) > 0 {
		return budget.Period{}, apperrors.WithFields(apperrors.ErrValidation, fields)
	}
	return budget.NewPeriod(month, year), nil
}

// publish sends a ledger event. Delivery failures are logged and never fail the request.
func publish(ctx context.Context, publisher events.Publisher, event events.Event) {
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Named("events").Errorw("failed to publish event",
			"error", err,
			"event", event.Name,
			"user_id", event.UserID,
		)
	}
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, message and fields.
// Otherwise it logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{"error": appErr})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{"error": apperrors.ErrInternalServer})
}
