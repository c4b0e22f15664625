// Package hub is the transport layer towards the remote device hub.
//
// It owns two kinds of connection and knows nothing about devices:
//
//   - Client issues short-lived REST requests (device list, state commands,
//     effect catalogue, reachability check) and hands back raw bodies.
//   - StreamDialer opens the long-lived WebSocket stream. Each Stream reads
//     frames on its own goroutine, passes them as raw bytes to a FrameHandler,
//     and signals termination exactly once through Done.
//
// Endpoints (base is http://host:port):
//
//	GET  {base}/                      reachability
//	GET  {base}/api/devices           device list
//	PUT  {base}/api/devices/{id}/state partial state command
//	GET  {base}/api/effects           animation catalogue
//	WS   ws://host:port/ws            state stream
//
// Thread Safety: Client and Stream are safe for concurrent use.
package hub
