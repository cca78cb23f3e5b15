package safego

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine did not complete within timeout")
	}
}

func TestGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go("test", func() { close(done) })
	waitFor(t, done)
}

func TestGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	Go("panicky", func() {
		defer close(done)
		panic("intentional panic in test")
	})
	waitFor(t, done)

	// The process is still alive and can keep launching work.
	again := make(chan struct{})
	Go("after-panic", func() { close(again) })
	waitFor(t, again)
}

func TestRun_IsSynchronous(t *testing.T) {
	var ran atomic.Bool
	Run("sync", func() { ran.Store(true) })
	if !ran.Load() {
		t.Error("Run returned before fn completed")
	}
}

func TestRun_RecoversPanic(t *testing.T) {
	Run("boom", func() { panic("boom") })
}
