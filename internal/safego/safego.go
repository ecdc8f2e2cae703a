// Package safego launches the engine's fire-and-forget background work:
// audit shipping after a mutation and API key bookkeeping. A panic on one
// of those paths must be logged with enough context to find it, not kill
// the goroutine silently or take the server down.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go runs fn on a new goroutine, recovering and logging any panic. task
// names the work so the log identifies which background path failed.
func Go(task string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background task panicked",
					"task", task,
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
