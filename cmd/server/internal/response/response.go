package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mitesh006/Code-duel-backend/internal/types"
)

var (
	InternalServerError = echo.NewHTTPError(
		http.StatusInternalServerError,
		types.StringError("something went wrong"),
	)
	ServiceUnavailableError = echo.NewHTTPError(
		http.StatusServiceUnavailable,
		types.StringError("queue unavailable"),
	)
)

func ValidationError(err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, types.ValidationError(err))
}
