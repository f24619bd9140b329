package signal

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ChildHandler listens for SIGCHLD and marks that a reap is needed without
// touching the job table itself. The main loop drains Pending() between
// commands and performs the actual job-state transitions there, so the
// signal handler never races with the single-writer job table
// (spec.md §5: "signal handlers still run... mark the job as needing reap").
type ChildHandler struct {
	mu      sync.Mutex
	running bool
	sigCh   chan os.Signal
	stopCh  chan struct{}
	pending chan struct{}
}

// NewChildHandler creates a ChildHandler. Pending() on the returned handler
// receives one notification per batch of SIGCHLD signals; multiple signals
// that arrive before the main loop drains Pending() are coalesced into a
// single pending reap, matching SIGCHLD's coalescing semantics on Unix.
func NewChildHandler() *ChildHandler {
	return &ChildHandler{
		pending: make(chan struct{}, 1),
	}
}

// Start begins listening for SIGCHLD. Idempotent.
func (h *ChildHandler) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return
	}
	h.running = true
	h.sigCh = make(chan os.Signal, 1)
	h.stopCh = make(chan struct{})

	signal.Notify(h.sigCh, syscall.SIGCHLD)

	sigCh := h.sigCh
	stopCh := h.stopCh
	go func() {
		for {
			select {
			case <-stopCh:
				return
			case <-sigCh:
				select {
				case h.pending <- struct{}{}:
				default:
				}
			}
		}
	}()
}

// Stop stops listening for SIGCHLD. Safe to call multiple times.
func (h *ChildHandler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}
	h.running = false
	if h.sigCh != nil {
		signal.Stop(h.sigCh)
		close(h.sigCh)
		h.sigCh = nil
	}
	if h.stopCh != nil {
		close(h.stopCh)
		h.stopCh = nil
	}
}

// Pending returns the channel the main loop selects on to know a job reap
// is due. A receive on this channel does not itself reap anything; the
// caller must still call the job manager's reap logic.
func (h *ChildHandler) Pending() <-chan struct{} {
	return h.pending
}

// SimulateChildSignal simulates receiving a SIGCHLD signal, for tests.
func (h *ChildHandler) SimulateChildSignal() {
	select {
	case h.pending <- struct{}{}:
	default:
	}
}
