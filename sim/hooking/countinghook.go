package hooking

import (
	"sync"
)

// CountingHook counts how many times each hook position is triggered.
type CountingHook struct {
	lock     sync.Mutex
	posNames []string
	count    map[string]uint64
}

// NewCountingHook creates a new CountingHook.
func NewCountingHook() *CountingHook {
	return &CountingHook{
		count: make(map[string]uint64),
	}
}

// Func counts the position of the context.
func (h *CountingHook) Func(ctx HookCtx) {
	h.lock.Lock()
	defer h.lock.Unlock()

	name := ctx.Pos.Name
	if _, ok := h.count[name]; !ok {
		h.posNames = append(h.posNames, name)
	}

	h.count[name]++
}

// GetPosNames returns the names of all the positions seen, in the order they
// first appeared.
func (h *CountingHook) GetPosNames() []string {
	h.lock.Lock()
	defer h.lock.Unlock()

	return append([]string(nil), h.posNames...)
}

// GetCount returns the number of times the position has been triggered.
func (h *CountingHook) GetCount(pos *HookPos) uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.count[pos.Name]
}
