// Package commands contains CLI command implementations for the application.
package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// NewLogger creates a structured JSON logger based on the log level string.
// Unknown levels fall back to info.
func NewLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// readData resolves the payload for a command. A literal "-" reads a single
// line from the reader so values never have to appear in shell history.
func readData(data string, io IOTuple) (string, error) {
	if data != "-" {
		return data, nil
	}

	reader := bufio.NewReader(io.Reader)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read data from input: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// outputResult writes a single-field result in text or JSON format.
func outputResult(field, value, format string, writer io.Writer) {
	if format == "json" {
		result := map[string]string{field: value}

		jsonBytes, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
			return
		}

		_, _ = fmt.Fprintln(writer, string(jsonBytes))
		return
	}

	_, _ = fmt.Fprintln(writer, value)
}
