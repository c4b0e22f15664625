// Package device holds the bridge's view of the hub's devices.
//
// Two independent sources feed it:
//
//	GET /api/devices  ──▶ DecodeDevices ──▶ Cache.ReplaceMetadata  (whole-map swap)
//	stream frames     ──▶ (coordinator) ──▶ Cache.ApplyState       (per-device overwrite)
//
// # Key Types
//
//   - Metadata: one device from the snapshot; typed well-known fields plus the raw object
//   - LiveState: the unparsed state object last reported by the stream
//   - Cache: both maps plus the last-update-success flag
//
// # Thread Safety
//
// The Cache has a single-writer contract: every mutation must come from the
// same goroutine (the coordinator's apply loop). Readers may run concurrently
// with that writer and never block it for longer than a map lookup.
//
// Live state for a device that is not in the current metadata is never
// inserted, and an existing entry for a device that disappears from the
// snapshot becomes unreachable without being purged.
//
// # State History
//
// SQLiteStateHistoryRepository records state changes into the state_history
// table for inspection through the API. It is write-only from the cache's
// point of view; nothing reloads the cache from it.
package device
