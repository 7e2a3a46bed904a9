// Package notifier broadcasts finished extraction runs to SSE listeners.
package notifier

import "sync"

// Notifier broadcasts the IDs of finished runs to all subscribed listeners.
// Each listener buffers only the latest run: a slow listener skips
// intermediate runs and re-queries the store for the newest one.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan string]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives run IDs as runs finish.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan string {
	ch := make(chan string, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan string) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends runID to all listeners without blocking. A listener
// with a pending ID gets the newer one instead.
func (n *Notifier) Broadcast(runID string) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- runID:
		default:
			// Replace the stale pending ID
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- runID:
			default:
			}
		}
	}
}

// Len returns the number of listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
