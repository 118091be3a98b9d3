package datarecording

import (
	"encoding/hex"
	"strconv"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// Names of the tables written by AccessRecorder.
const (
	AccessTableName = "cache_access"
	StoreTableName  = "cache_store"
	ConfigTableName = "cache_config"
)

// AccessEntry is one row of the access table. Addresses and tags are
// stored as hex text since SQLite integers are signed.
type AccessEntry struct {
	ID           string
	Cache        string
	Operation    string
	Address      string
	Tag          string
	SetIndex     int
	Offset       int
	Hit          bool
	WayIndex     int
	Evicted      bool
	EvictedTag   string
	EvictedDirty bool
	Action       string
	Value        uint8
	WritePolicy  string
	MissPolicy   string
}

// StoreEntry is one row of the store table.
type StoreEntry struct {
	AccessID string
	Cache    string
	Kind     string
	Address  string
	ByteSize int
	Data     string
}

// ConfigEntry is one row of the config table, written each time a cache is
// reconfigured.
type ConfigEntry struct {
	Cache             string
	CacheSizeBytes    int
	BlockSizeBytes    int
	Associativity     int
	NumSets           int
	ReplacementPolicy string
	WritePolicy       string
	WriteMissPolicy   string
}

// AccessRecorder is a hook that writes the accesses, store events and
// reconfigurations of caches to a DataRecorder.
type AccessRecorder struct {
	recorder DataRecorder
}

// NewAccessRecorder creates the tables and returns the hook.
func NewAccessRecorder(recorder DataRecorder) *AccessRecorder {
	recorder.CreateTable(AccessTableName, AccessEntry{})
	recorder.CreateTable(StoreTableName, StoreEntry{})
	recorder.CreateTable(ConfigTableName, ConfigEntry{})

	return &AccessRecorder{recorder: recorder}
}

// RecordConfig writes a config row, usually for the initial configuration.
func (r *AccessRecorder) RecordConfig(cacheName string, c cache.Config) {
	r.recorder.InsertData(ConfigTableName, ConfigEntry{
		Cache:             cacheName,
		CacheSizeBytes:    c.CacheSizeBytes,
		BlockSizeBytes:    c.BlockSizeBytes,
		Associativity:     c.Associativity,
		NumSets:           c.NumSets(),
		ReplacementPolicy: string(c.ReplacementPolicy),
		WritePolicy:       string(c.WritePolicy),
		WriteMissPolicy:   string(c.WriteMissPolicy),
	})
}

// Func records the item of the hook context.
func (r *AccessRecorder) Func(ctx hooking.HookCtx) {
	name := domainName(ctx.Domain)

	switch item := ctx.Item.(type) {
	case cache.AccessResult:
		r.recorder.InsertData(AccessTableName, AccessEntry{
			ID:           item.ID,
			Cache:        name,
			Operation:    string(item.Operation),
			Address:      hexString(item.Address),
			Tag:          hexString(item.Tag),
			SetIndex:     item.SetIndex,
			Offset:       item.Offset,
			Hit:          item.Hit,
			WayIndex:     item.WayIndex,
			Evicted:      item.Evicted,
			EvictedTag:   hexString(item.EvictedTag),
			EvictedDirty: item.EvictedDirty,
			Action:       string(item.Action),
			Value:        item.Value,
			WritePolicy:  string(item.WritePolicy),
			MissPolicy:   string(item.WriteMissPolicy),
		})
	case cache.StoreEvent:
		r.recorder.InsertData(StoreTableName, StoreEntry{
			AccessID: item.AccessID,
			Cache:    name,
			Kind:     string(item.Kind),
			Address:  hexString(item.Address),
			ByteSize: len(item.Data),
			Data:     hex.EncodeToString(item.Data),
		})
	case cache.Config:
		r.RecordConfig(name, item)
	}
}

func domainName(domain hooking.Hookable) string {
	if named, ok := domain.(interface{ Name() string }); ok {
		return named.Name()
	}

	return ""
}

func hexString(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}
