package routes

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/mitesh006/Code-duel-backend/internal/validator"
)

func BuildEcho(logger *slog.Logger) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true

	validate := validator.Create()
	e.Validator = &validate

	e.Pre(middleware.AddTrailingSlash())

	e.Use(
		middleware.Recover(),
		otelecho.Middleware("code-duel-evaluator"),
		slogecho.NewWithConfig(logger, slogecho.Config{
			DefaultLevel: slog.LevelDebug,
			Filters:      []slogecho.Filter{slogecho.IgnorePath("/health/")},
		}),
	)

	e.GET("/health/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	return e, nil
}
