// Package fanout mirrors the bridge's state to secondary stores.
//
// Every mirror is a Sink attached to the coordinator's change signal:
//
//	coordinator ──signal──▶ MQTTMirror      retained {prefix}/entity/{id}/state
//	            ──signal──▶ Telemetry       InfluxDB point per changed value
//	            ──signal──▶ HistoryRecorder state_history row per changed device
//
// A signal carries no payload, so each Sync re-reads the current
// projections and acts only on those that differ from its previous pass.
// Mirrors never write to the cache; MQTT commands go through the entity
// registry to the hub and come back as stream updates like any other change.
package fanout
