// Package safego launches background goroutines that recover from panics.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go runs fn in a new goroutine labelled name. A panic in fn is recovered and
// logged with its stack instead of taking the process down. Audit writes,
// email delivery and revalidation fan-out all go through here.
func Go(name string, fn func()) {
	go Run(name, fn)
}

// Run calls fn on the current goroutine with the same panic recovery as Go.
func Run(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in background task",
				"task", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
