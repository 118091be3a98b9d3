package monitoring

import (
	"sync"

	"github.com/sarchlab/cachesim/mem/cache"
)

// accessHistory keeps the most recent accesses, newest first.
type accessHistory struct {
	lock    sync.Mutex
	size    int
	entries []cache.AccessResult
}

func newAccessHistory(size int) *accessHistory {
	if size < 0 {
		size = 0
	}

	return &accessHistory{
		size:    size,
		entries: make([]cache.AccessResult, 0, size),
	}
}

func (h *accessHistory) add(r cache.AccessResult) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.size == 0 {
		return
	}

	if len(h.entries) == h.size {
		h.entries = h.entries[:h.size-1]
	}

	h.entries = append(h.entries, cache.AccessResult{})
	copy(h.entries[1:], h.entries)
	h.entries[0] = r
}

func (h *accessHistory) list() []cache.AccessResult {
	h.lock.Lock()
	defer h.lock.Unlock()

	return append([]cache.AccessResult{}, h.entries...)
}

func (h *accessHistory) clear() {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.entries = h.entries[:0]
}
