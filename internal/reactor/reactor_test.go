package reactor

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestScheduleLaterRunsOnLoop(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	done := make(chan struct{})
	l.ScheduleLater(0, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for scheduled callback")
	}
}

func TestSubmitFromWorkerRunsOnLoop(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.SubmitFromWorker(func() { close(done) })
	}()
	wg.Wait()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for worker hand-off")
	}
}

func TestStopDropsLateCallbacks(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	// Let the loop start before stopping it.
	time.Sleep(10 * time.Millisecond)
	l.Stop()
	cancel()
	time.Sleep(10 * time.Millisecond)

	called := false
	l.ScheduleLater(0, func() { called = true })
	time.Sleep(20 * time.Millisecond)

	if called {
		t.Error("callback scheduled after Stop should not run")
	}
}

func TestNowUsesProvidedClock(t *testing.T) {
	fixed := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(func() time.Time { return fixed })
	if got := l.Now(); !got.Equal(fixed) {
		t.Errorf("Now() = %v, want %v", got, fixed)
	}
}

func TestIsRunning(t *testing.T) {
	l := New(nil)
	if l.IsRunning() {
		t.Error("IsRunning() before Run should be false")
	}
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	time.Sleep(10 * time.Millisecond)
	if !l.IsRunning() {
		t.Error("IsRunning() after Run should be true")
	}
	cancel()
	time.Sleep(10 * time.Millisecond)
	if l.IsRunning() {
		t.Error("IsRunning() after ctx cancel should be false")
	}
}
