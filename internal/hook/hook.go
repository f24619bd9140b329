// Package hook implements the named lifecycle event bus spec.md §5 and §6
// describe as the seam for out-of-scope collaborators (prompt renderer,
// git probe, completion source): pre-exec, post-exec, dir-changed, and
// job-state-changed events, each with an ordered, awaited subscriber list.
package hook

import "sync"

// Event names the lifecycle points subscribers can register against
// (spec.md §6 SUPPLEMENTED FEATURES / spec.md §5 "Hook events fire in
// definition order").
type Event string

const (
	PreExec        Event = "pre-exec"
	PostExec       Event = "post-exec"
	DirChanged     Event = "dir-changed"
	JobStateChanged Event = "job-state-changed"
)

// Handler receives the event payload; payload carries whatever data is
// meaningful for the event (command text, new cwd, a job snapshot, etc).
type Handler func(payload any) error

// Bus holds ordered subscriber lists per event name.
type Bus struct {
	mu          sync.Mutex
	subscribers map[Event][]Handler
}

// New creates an empty hook Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[Event][]Handler)}
}

// Subscribe registers handler for event, appended after any existing
// subscribers so definition order is preserved.
func (b *Bus) Subscribe(event Event, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[event] = append(b.subscribers[event], handler)
}

// Fire invokes every subscriber for event in registration order, awaiting
// each one before starting the next (spec.md §5: "a hook is awaited before
// the next hook in the same event class"). It returns the first error
// encountered, if any, but still runs handlers registered after it — a
// single misbehaving subscriber should not silently suppress the rest.
func (b *Bus) Fire(event Event, payload any) error {
	b.mu.Lock()
	handlers := append([]Handler{}, b.subscribers[event]...)
	b.mu.Unlock()

	var firstErr error
	for _, h := range handlers {
		if err := h(payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Count reports how many subscribers are registered for event (test hook).
func (b *Bus) Count(event Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[event])
}
