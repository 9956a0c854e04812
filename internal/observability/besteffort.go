package observability

import (
	"fmt"
	"log/slog"
)

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// bestEffort runs fn, logging its error or panic instead of returning it.
// Every background capture step goes through here.
func (o *Observability) bestEffort(op, eventID string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("background operation panicked",
				slog.String("op", op),
				slog.String("event_id", eventID),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()

	err := fn()
	switch {
	case err == nil:
	case isDropped(err):
		o.logger.Warn("event dropped",
			slog.String("op", op),
			slog.String("event_id", eventID),
			slog.String("error", err.Error()))
	default:
		o.logger.Error("event persistence failed",
			slog.String("op", op),
			slog.String("event_id", eventID),
			slog.String("error", err.Error()))
	}
}
