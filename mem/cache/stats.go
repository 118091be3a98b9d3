package cache

import "encoding/json"

// Statistics holds the counters of a cache.
type Statistics struct {
	Reads       uint64 `json:"reads"`
	Writes      uint64 `json:"writes"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	WriteBacks  uint64 `json:"writeBacks"`
	StoreEvents uint64 `json:"storeEvents"`
}

// Accesses returns the number of reads and writes.
func (s Statistics) Accesses() uint64 {
	return s.Hits + s.Misses
}

// HitRate returns hits / (hits + misses), or 0 before the first access.
func (s Statistics) HitRate() float64 {
	if s.Accesses() == 0 {
		return 0
	}

	return float64(s.Hits) / float64(s.Accesses())
}

// MissRate returns misses / (hits + misses), or 0 before the first access.
func (s Statistics) MissRate() float64 {
	if s.Accesses() == 0 {
		return 0
	}

	return float64(s.Misses) / float64(s.Accesses())
}

// MarshalJSON adds the derived rates to the counters.
func (s Statistics) MarshalJSON() ([]byte, error) {
	type counters Statistics

	return json.Marshal(struct {
		counters
		HitRate  float64 `json:"hitRate"`
		MissRate float64 `json:"missRate"`
	}{
		counters: counters(s),
		HitRate:  s.HitRate(),
		MissRate: s.MissRate(),
	})
}

func (s *Statistics) recordAccess(op Operation, hit bool) {
	switch op {
	case OpRead:
		s.Reads++
	case OpWrite:
		s.Writes++
	}

	if hit {
		s.Hits++
	} else {
		s.Misses++
	}
}
