package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/frontend/internal/logging"
)

// errorHandler logs OpenTelemetry SDK errors, mostly failed exports while the
// collector is unreachable. A burst is logged, then at most one per second;
// the rest are counted and reported with the next logged error.
type errorHandler struct {
	logger     *logging.Logger
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

func newErrorHandler(logger *logging.Logger) *errorHandler {
	return &errorHandler{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Handle implements otel.ErrorHandler.
func (h *errorHandler) Handle(err error) {
	if err == nil {
		return
	}
	if !h.limiter.Allow() {
		h.suppressed.Add(1)
		return
	}

	fields := []zap.Field{zap.Error(err)}
	if n := h.suppressed.Swap(0); n > 0 {
		fields = append(fields, zap.Int64("suppressed", n))
	}
	h.logger.Warn(context.Background(), "telemetry error", fields...)
}
