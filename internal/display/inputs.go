package display

import (
	"fmt"
	"sync"
	"time"
)

// PendingInputs is the pending-input registry used in Bifrost mode: a
// handler awaiting user input registers a request id and blocks on the
// returned channel; the bridge's input_response event resolves it.
type PendingInputs struct {
	mu      sync.Mutex
	waiters map[string]chan string
}

// NewPendingInputs creates an empty registry.
func NewPendingInputs() *PendingInputs {
	return &PendingInputs{waiters: make(map[string]chan string)}
}

// Request registers a pending input and returns the channel its value
// will arrive on. The channel is buffered so Resolve never blocks.
func (p *PendingInputs) Request(requestID string) <-chan string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan string, 1)
	p.waiters[requestID] = ch
	return ch
}

// Resolve delivers a value to the waiter for requestID. Returns false when
// no waiter is registered (late or duplicate response).
func (p *PendingInputs) Resolve(requestID, value string) bool {
	p.mu.Lock()
	ch, ok := p.waiters[requestID]
	if ok {
		delete(p.waiters, requestID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- value
	return true
}

// Cancel removes a pending request without delivering a value.
func (p *PendingInputs) Cancel(requestID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.waiters[requestID]; ok {
		close(ch)
		delete(p.waiters, requestID)
	}
}

// Await blocks for the response to requestID, bounded by timeout.
func (p *PendingInputs) Await(requestID string, timeout time.Duration) (string, error) {
	ch := p.Request(requestID)
	select {
	case v, ok := <-ch:
		if !ok {
			return "", fmt.Errorf("input request cancelled: %s", requestID)
		}
		return v, nil
	case <-time.After(timeout):
		p.Cancel(requestID)
		return "", fmt.Errorf("input request timed out: %s", requestID)
	}
}

// Pending returns the number of outstanding requests.
func (p *PendingInputs) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
