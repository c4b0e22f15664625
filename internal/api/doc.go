// Package api implements the local HTTP REST API and WebSocket server.
//
// This package provides:
//   - Read access to devices (metadata plus raw live state) and entities
//   - Raw partial commands to devices and typed actions on entities
//   - On-demand snapshot refresh and entity reload
//   - State history for each device, when a history repository is configured
//   - A WebSocket push of changed entity states
//   - Prometheus exposition on /metrics
//
// # Architecture
//
// The server is a thin layer over the coordinator and the entity registry.
// Commands go to the hub through the coordinator and never touch the cache;
// the resulting state arrives over the hub stream, and the next coordinator
// notification pushes it to WebSocket clients:
//
//	PUT /devices/{id}/state ──▶ Coordinator.SendCommand ──▶ hub
//	hub stream ──▶ Coordinator ──notify──▶ Hub.PublishStates ──▶ clients
//
// # WebSocket Protocol
//
// On connect a client receives one entity_state message per entity, then one
// per entity whose projection changed:
//
//	{"type":"entity_state","timestamp":"...","payload":{"entity_id":"...", ...}}
//
// Clients may send ping, subscribe and unsubscribe messages. A client whose
// send buffer is full misses messages rather than blocking the push.
//
// # Graceful Degradation
//
// MQTT, the database and the hub ping are optional. Without a history
// repository the history endpoint answers 503; everything else still works.
package api
