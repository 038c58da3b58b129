package shutdown

import (
	"context"
	"os/signal"
	"syscall"
	"time"
)

// DefaultGrace bounds how long in-flight ops requests get after a signal.
const DefaultGrace = 15 * time.Second

func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
