package agents

import "sync"

// decisionHistory is a fixed-capacity ring buffer of decision records with
// O(1) eviction. The original platform let this list grow without bound;
// here it is capped the same way episodic memory is.
type decisionHistory struct {
	mu    sync.RWMutex
	buf   []Decision
	head  int // index of the oldest entry
	count int
}

func newDecisionHistory(capacity int) *decisionHistory {
	if capacity < 1 {
		capacity = 500
	}
	return &decisionHistory{buf: make([]Decision, capacity)}
}

// Append records a decision, overwriting the oldest entry when full.
func (h *decisionHistory) Append(d Decision) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tail := (h.head + h.count) % len(h.buf)
	h.buf[tail] = d

	if h.count < len(h.buf) {
		h.count++
	} else {
		h.head = (h.head + 1) % len(h.buf)
	}
}

// Recent returns up to n most recent decisions, newest last.
func (h *decisionHistory) Recent(n int) []Decision {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > h.count {
		n = h.count
	}

	out := make([]Decision, 0, n)
	start := h.count - n
	for i := start; i < h.count; i++ {
		out = append(out, h.buf[(h.head+i)%len(h.buf)])
	}
	return out
}

// Len returns the number of stored decisions.
func (h *decisionHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
