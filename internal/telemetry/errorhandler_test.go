package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/frontend/internal/logging"
)

func TestErrorHandler_RateLimits(t *testing.T) {
	tl := logging.NewTestLogger()
	h := newErrorHandler(tl.Logger)

	for i := 0; i < 20; i++ {
		h.Handle(errors.New("export failed: connection refused"))
	}

	logged := tl.FilterMessage("telemetry error").Len()
	assert.GreaterOrEqual(t, logged, 5)
	assert.Less(t, logged, 20)
	assert.Positive(t, h.suppressed.Load())
}

func TestErrorHandler_ReportsSuppressedCount(t *testing.T) {
	tl := logging.NewTestLogger()
	h := newErrorHandler(tl.Logger)
	h.suppressed.Store(7)

	h.Handle(errors.New("export failed"))

	tl.AssertLogged(t, zapcore.WarnLevel, "telemetry error")
	tl.AssertField(t, "telemetry error", "suppressed", int64(7))
	assert.Zero(t, h.suppressed.Load())
}

func TestErrorHandler_IgnoresNil(t *testing.T) {
	tl := logging.NewTestLogger()
	newErrorHandler(tl.Logger).Handle(nil)

	assert.Empty(t, tl.All())
}
