package display

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestResolveDeliversToWaiter(t *testing.T) {
	p := NewPendingInputs()
	var wg sync.WaitGroup
	wg.Add(1)
	var got string
	var err error
	go func() {
		defer wg.Done()
		got, err = p.Await("req-1", time.Second)
	}()

	// Await registers asynchronously; retry until the waiter appears.
	deadline := time.Now().Add(time.Second)
	for !p.Resolve("req-1", "hello") {
		if time.Now().After(deadline) {
			t.Fatal("waiter never registered")
		}
		time.Sleep(time.Millisecond)
	}
	wg.Wait()
	if err != nil || got != "hello" {
		t.Errorf("Await = %q, %v", got, err)
	}
	if p.Pending() != 0 {
		t.Errorf("Pending = %d", p.Pending())
	}
}

func TestResolveUnknownRequestReportsFalse(t *testing.T) {
	p := NewPendingInputs()
	if p.Resolve("ghost", "x") {
		t.Error("resolving an unknown request must report false")
	}
}

func TestAwaitTimesOutAndCleansUp(t *testing.T) {
	p := NewPendingInputs()
	_, err := p.Await("slow", 10*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("err = %v", err)
	}
	if p.Pending() != 0 {
		t.Errorf("Pending after timeout = %d", p.Pending())
	}
	// A response arriving after the timeout is a no-op.
	if p.Resolve("slow", "late") {
		t.Error("late response must not find a waiter")
	}
}

func TestCancelUnblocksWaiter(t *testing.T) {
	p := NewPendingInputs()
	done := make(chan error, 1)
	go func() {
		_, err := p.Await("c", time.Second)
		done <- err
	}()
	deadline := time.Now().Add(time.Second)
	for p.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("waiter never registered")
		}
		time.Sleep(time.Millisecond)
	}
	p.Cancel("c")
	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "cancelled") {
			t.Errorf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not return after Cancel")
	}
}
