// internal/logging/levels.go
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one step below Debug. Request and exporter chatter only.
const TraceLevel = zapcore.DebugLevel - 1

const traceLevelName = "trace"

// LevelFromString accepts zap's level names plus "trace", ignoring case and
// surrounding space. Empty means Info; anything unknown is an error with Info.
func LevelFromString(name string) (zapcore.Level, error) {
	switch name = strings.ToLower(strings.TrimSpace(name)); name {
	case traceLevelName:
		return TraceLevel, nil
	case "":
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log level %q: %w", name, err)
	}
	return level, nil
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString(traceLevelName)
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}
