package device

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

// Cache holds the two halves of the device view: metadata from the periodic
// snapshot and live state from the stream.
//
// Writes (ReplaceMetadata, ApplyState, SetLastUpdateSuccess) must all come
// from one goroutine. Reads are safe from any goroutine at any time:
//   - the metadata map is swapped as a whole, so a reader sees either the
//     previous or the next snapshot, never a mix;
//   - live state is upserted per device, so a reader may observe one device
//     updated before another.
//
// Maps and LiveState values handed out by the Cache are shared and must not
// be modified by the caller.
type Cache struct {
	metadata atomic.Pointer[map[string]Metadata]

	liveMu sync.RWMutex
	live   map[string]LiveState

	lastUpdateSuccess atomic.Bool
}

// NewCache creates an empty cache. LastUpdateSuccess starts false.
func NewCache() *Cache {
	c := &Cache{live: make(map[string]LiveState)}
	empty := map[string]Metadata{}
	c.metadata.Store(&empty)
	return c
}

// ReplaceMetadata installs a complete new metadata map.
//
// Devices absent from devices disappear from reads immediately. Their live
// state entries are kept but stay unreachable until the device returns.
// The map must not be modified after the call.
func (c *Cache) ReplaceMetadata(devices map[string]Metadata) {
	if devices == nil {
		devices = map[string]Metadata{}
	}
	c.metadata.Store(&devices)
}

// ApplyState overwrites the live state of a known device.
//
// The stored value is replaced, never merged: keys absent from state are gone
// afterwards. State for an id missing from the current metadata is dropped.
//
// Returns:
//   - bool: true if the device was known and the state stored
func (c *Cache) ApplyState(id string, state LiveState) bool {
	if _, ok := c.Metadata(id); !ok {
		return false
	}
	if state == nil {
		state = LiveState{}
	}

	c.liveMu.Lock()
	c.live[id] = state
	c.liveMu.Unlock()
	return true
}

// SetLastUpdateSuccess records the outcome of the latest snapshot fetch.
func (c *Cache) SetLastUpdateSuccess(ok bool) {
	c.lastUpdateSuccess.Store(ok)
}

// LastUpdateSuccess reports whether the latest snapshot fetch succeeded.
func (c *Cache) LastUpdateSuccess() bool {
	return c.lastUpdateSuccess.Load()
}

// Metadata returns the metadata for id from the current snapshot.
func (c *Cache) Metadata(id string) (Metadata, bool) {
	m, ok := (*c.metadata.Load())[id]
	return m, ok
}

// MetadataSnapshot returns the current metadata map. It is read-only.
func (c *Cache) MetadataSnapshot() map[string]Metadata {
	return *c.metadata.Load()
}

// Devices returns the current metadata ordered by id.
func (c *Cache) Devices() []Metadata {
	snapshot := c.MetadataSnapshot()
	ids := slices.Sorted(maps.Keys(snapshot))

	out := make([]Metadata, 0, len(ids))
	for _, id := range ids {
		out = append(out, snapshot[id])
	}
	return out
}

// LiveState returns the last state stored for id.
//
// A device that has no state yet, or that is not in the current metadata,
// yields an empty (non-nil) LiveState.
func (c *Cache) LiveState(id string) LiveState {
	if _, ok := c.Metadata(id); !ok {
		return LiveState{}
	}

	c.liveMu.RLock()
	state, ok := c.live[id]
	c.liveMu.RUnlock()

	if !ok {
		return LiveState{}
	}
	return state
}

// HasLiveState reports whether a live state entry exists for id, whether or
// not the device is currently in the metadata.
func (c *Cache) HasLiveState(id string) bool {
	c.liveMu.RLock()
	defer c.liveMu.RUnlock()
	_, ok := c.live[id]
	return ok
}

// Len returns the number of devices in the current metadata.
func (c *Cache) Len() int {
	return len(*c.metadata.Load())
}
