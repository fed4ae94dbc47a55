package telemetry

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// DefaultSignals are the signals ListenForTermination handles when given none.
var DefaultSignals = []os.Signal{syscall.SIGTERM, os.Interrupt}

// ListenForTermination routes the given signals (DefaultSignals if none) to
// OnTerminationSignal. Only the first call registers; later calls are no-ops.
// Repeated deliveries are absorbed by the single-shot teardown.
func (l *Lifecycle) ListenForTermination(signals ...os.Signal) {
	l.signalOnce.Do(func() {
		if len(signals) == 0 {
			signals = DefaultSignals
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		select {
		case <-l.stop:
			// Shutdown already ran; leave default signal handling alone.
			return
		default:
		}

		ch := make(chan os.Signal, 1)
		signal.Notify(ch, signals...)
		l.signals = ch

		go l.dispatchSignals(ch)
	})
}

func (l *Lifecycle) dispatchSignals(ch <-chan os.Signal) {
	for {
		select {
		case sig := <-ch:
			l.logger.Info(context.Background(), "received termination signal",
				zap.String("signal", sig.String()),
			)
			// Keep draining while teardown runs so duplicates hit the guard.
			go l.OnTerminationSignal()
		case <-l.stop:
			return
		}
	}
}

// stopListening unregisters the signal handler, restoring default signal
// behaviour.
func (l *Lifecycle) stopListening() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.signals != nil {
			signal.Stop(l.signals)
		}
		close(l.stop)
	})
}
