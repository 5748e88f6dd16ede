package logger

import (
	"log/slog"
	"os"

	slogotel "github.com/remychantenay/slog-otel"
)

var LogLevel = new(slog.LevelVar)

var jsonHandler = slog.NewJSONHandler(
	os.Stderr,
	&slog.HandlerOptions{AddSource: true, Level: LogLevel},
)
var sloghandler = slogotel.NewOtelHandler(slogotel.WithNoTraceEvents(true))
var Handler = sloghandler(jsonHandler)
var Logger = slog.New(Handler)

// Installs Logger as the process default at `level`. Levels follow slog numbering
// (-4 debug, 0 info, 4 warn, 8 error).
func InitSlog(level int) {
	slog.SetDefault(Logger)
	LogLevel.Set(slog.Level(level))
}
