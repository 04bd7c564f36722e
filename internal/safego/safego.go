// Package safego runs fire-and-forget work, such as shipping audit entries to
// external sinks, without letting a panic take the server down.
package safego

import (
	"log/slog"
	"runtime/debug"

	"github.com/muazhazali/lepakmasjid/internal/telemetry"
)

// Go runs fn on its own goroutine. A panic is recovered, logged with its stack
// and counted under task in background_panics_total.
func Go(task string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				telemetry.BackgroundPanicsTotal.WithLabelValues(task).Inc()
				slog.Error("recovered panic in background task",
					"task", task, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
