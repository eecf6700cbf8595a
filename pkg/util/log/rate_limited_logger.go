package log

import (
	"github.com/go-kit/log"
	"golang.org/x/time/rate"
)

// rateLimitedLogger wraps a log.Logger and drops log lines once more than
// logsPerSecond have been emitted in the current second, so a noisy failure
// path (repeated provider timeouts, repeated resize churn) cannot flood
// stderr. Dropped lines are silently discarded, not buffered or summarized.
type rateLimitedLogger struct {
	next    log.Logger
	limiter *rate.Limiter
}

// NewRateLimitedLogger returns a log.Logger that forwards to next, allowing
// at most logsPerSecond calls to Log per second (with a burst of the same
// size), dropping the rest.
func NewRateLimitedLogger(logsPerSecond int, next log.Logger) log.Logger {
	return &rateLimitedLogger{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(logsPerSecond), logsPerSecond),
	}
}

func (l *rateLimitedLogger) Log(keyvals ...interface{}) error {
	if !l.limiter.Allow() {
		return nil
	}
	return l.next.Log(keyvals...)
}
