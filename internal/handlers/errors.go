package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
	"github.com/akylbek/payment-system/mandate-console/internal/telemetry"
)

// respondError renders err for the dashboard; body may carry a snapshot.
func respondError(c *gin.Context, err error, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	status := http.StatusBadGateway

	var invalid *models.ValidationError
	var rejected *models.RejectedError
	switch {
	case errors.As(err, &invalid):
		status = http.StatusBadRequest
		body["field"] = invalid.Field
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrUnknownList):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrCustomerNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrStageNotAllowed),
		errors.Is(err, models.ErrOperationInFlight),
		errors.Is(err, models.ErrPaymentAlreadyAttempted),
		errors.Is(err, models.ErrPaymentLocked),
		errors.Is(err, models.ErrFetchInFlight),
		errors.Is(err, models.ErrSessionDiscarded),
		errors.Is(err, models.ErrStaleResponse):
		status = http.StatusConflict
	case errors.Is(err, models.ErrJournalDisabled):
		status = http.StatusServiceUnavailable
	case errors.As(err, &rejected):
		status = http.StatusUnprocessableEntity
	}

	message := models.UserMessage(err)
	if status == http.StatusConflict || status == http.StatusNotFound || status == http.StatusServiceUnavailable {
		if !errors.Is(err, models.ErrCustomerNotFound) {
			message = err.Error()
		}
	}
	body["error"] = message

	if status >= http.StatusInternalServerError {
		telemetry.Logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, body)
}
