package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

// Setup wires structured JSON logging for the daemon and returns the root
// logger. Every line carries the service name, and the environment when one
// is configured. The LOG_LEVEL environment variable (debug, info, warn,
// error) controls verbosity and defaults to info.
func Setup(service, env string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       levelFromEnv(),
		ReplaceAttr: renameCoreFields,
	})

	base := slog.New(handler).With(baseFields(service, env)...)
	slog.SetDefault(base)

	// Route the stdlib logger through the same handler so dependencies that
	// still use log.Printf stay structured.
	log.SetFlags(0)
	log.SetPrefix("")
	log.SetOutput(slog.NewLogLogger(handler, slog.LevelInfo).Writer())

	return base
}

func baseFields(service, env string) []any {
	fields := []any{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		fields = append(fields, slog.String("env", env))
	}
	return fields
}

// renameCoreFields maps slog's default keys onto the field names the
// log pipeline indexes on.
func renameCoreFields(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "timestamp"
	case slog.LevelKey:
		attr = slog.String("severity", strings.ToUpper(attr.Value.String()))
	case slog.MessageKey:
		attr.Key = "message"
	}
	return attr
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
