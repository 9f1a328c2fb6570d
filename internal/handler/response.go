package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-enrichment/api/internal/dto"
	"github.com/octobees/leads-enrichment/api/internal/logger"
	"github.com/octobees/leads-enrichment/api/internal/service"
)

// APIResponse describes the standard envelope returned by the API.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Success sends a successful response using the shared envelope format.
func Success(c echo.Context, status int, message string, data any) error {
	if status == 0 {
		status = http.StatusOK
	}
	payload := APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	}
	return c.JSON(status, payload)
}

// Error sends an error response using the shared envelope format.
func Error(c echo.Context, status int, message string) error {
	return ErrorWithData(c, status, message, nil)
}

// ErrorWithData sends an error response carrying details for the caller.
func ErrorWithData(c echo.Context, status int, message string, data any) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	payload := APIResponse{
		Status:  "error",
		Message: message,
		Data:    data,
	}
	return c.JSON(status, payload)
}

// serviceError maps enrichment errors onto HTTP statuses. Unknown errors are
// logged and hidden behind a generic message.
func serviceError(c echo.Context, log *logger.Logger, err error, fallback string) error {
	var credits *service.InsufficientCreditsError
	switch {
	case errors.As(err, &credits):
		return ErrorWithData(c, http.StatusPaymentRequired, "insufficient credits", dto.InsufficientCreditsResponse{
			Requested: credits.Requested,
			Remaining: credits.Remaining,
			Shortfall: credits.Shortfall(),
		})
	case errors.Is(err, service.ErrInsufficientCredits):
		return Error(c, http.StatusPaymentRequired, "insufficient credits")
	case errors.Is(err, service.ErrNotFound):
		return Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrMissingDomain):
		return Error(c, http.StatusUnprocessableEntity, "company has no domain")
	case errors.Is(err, service.ErrInvalidInput):
		return Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProviderFailure):
		log.Warn("enrichment provider failure", "path", c.Path(), "error", err)
		return Error(c, http.StatusBadGateway, "enrichment provider unavailable")
	default:
		log.Error(fallback, "path", c.Path(), "error", err)
		return Error(c, http.StatusInternalServerError, fallback)
	}
}
