package cache

import (
	"github.com/sarchlab/cachesim/sim/hooking"
)

// Action labels what the cache did for an access.
type Action string

// Actions reported in AccessResult.
const (
	ActionReadHit              Action = "READ_HIT"
	ActionReadMiss             Action = "READ_MISS"
	ActionWriteHitWriteBack    Action = "WRITE_HIT_WB"
	ActionWriteHitWriteThrough Action = "WRITE_HIT_WT"
	ActionWriteMissAllocate    Action = "WRITE_MISS_ALLOCATE"
	ActionWriteMissNoAllocate  Action = "WRITE_MISS_NO_ALLOCATE"
)

// AccessResult reports the outcome of one read or write.
type AccessResult struct {
	ID        string    `json:"id"`
	Address   uint64    `json:"address"`
	Operation Operation `json:"operation"`
	Tag       uint64    `json:"tag"`
	SetIndex  int       `json:"setIndex"`
	Offset    int       `json:"offset"`
	Hit       bool      `json:"hit"`

	// WayIndex is -1 when a write bypassed the cache.
	WayIndex int `json:"wayIndex"`

	Evicted      bool   `json:"evicted"`
	EvictedTag   uint64 `json:"evictedTag"`
	EvictedDirty bool   `json:"evictedDirty"`
	Action       Action `json:"action"`

	// Value is the byte read, or the byte written.
	Value byte `json:"value"`

	WritePolicy     WritePolicy     `json:"writePolicy,omitempty"`
	WriteMissPolicy WriteMissPolicy `json:"missPolicy,omitempty"`

	// Hits and Misses are the totals after this access.
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// StoreKind tells why data is sent to the backing store.
type StoreKind string

// Kinds of store events.
const (
	StoreWriteThrough    StoreKind = "WRITE_THROUGH"
	StoreNoWriteAllocate StoreKind = "NO_WRITE_ALLOCATE"
	StoreEvictWriteBack  StoreKind = "EVICT_WRITE_BACK"
	StoreFlushWriteBack  StoreKind = "FLUSH_WRITE_BACK"
)

// A StoreEvent describes data that the cache sends to the backing store. The
// backing store itself is not simulated.
type StoreEvent struct {
	AccessID string    `json:"accessId,omitempty"`
	Kind     StoreKind `json:"kind"`
	Address  uint64    `json:"address"`
	Data     BlockData `json:"data"`
}

// Hook positions triggered by Comp. Hooks run while the cache is locked and
// must not call back into the cache.
var (
	// HookPosAccess is triggered after every access. Item is an
	// AccessResult.
	HookPosAccess = &hooking.HookPos{Name: "CacheAccess"}

	// HookPosStore is triggered for every store event. Item is a
	// StoreEvent.
	HookPosStore = &hooking.HookPos{Name: "CacheStore"}

	// HookPosReconfigure is triggered after a new config is applied. Item is
	// the Config.
	HookPosReconfigure = &hooking.HookPos{Name: "CacheReconfigure"}
)
