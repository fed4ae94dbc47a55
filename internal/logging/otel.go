// internal/logging/otel.go
package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// InstrumentationScope names the otelzap bridge logger.
const InstrumentationScope = "github.com/fyrsmithlabs/frontend"

// newDualCore creates core with stdout and/or OTEL outputs.
func newDualCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	level, err := LevelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}

	cores := make([]zapcore.Core, 0, 2)

	if cfg.Output.Stdout {
		writer := zapcore.Lock(zapcore.AddSync(os.Stdout))
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.Format), writer, level))
	}

	if cfg.Output.OTEL && otelProvider != nil {
		var otelCore zapcore.Core = otelzap.NewCore(InstrumentationScope,
			otelzap.WithLoggerProvider(otelProvider),
		)
		// Clamp the bridge to the configured level. A provider without
		// processors reports every level disabled, so keep the raw core then.
		if leveled, err := zapcore.NewIncreaseLevelCore(otelCore, level); err == nil {
			otelCore = leveled
		}
		cores = append(cores, otelCore)
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one output must be enabled and available")
	}
	if len(cores) == 1 {
		return cores[0], nil
	}
	return zapcore.NewTee(cores...), nil
}
