// Package coordinator keeps the device cache in sync with the hub.
//
// It reconciles two sources into one device.Cache:
//
//	┌──────────────┐  every PollInterval   ┌──────────────┐
//	│ GET /devices │ ─── fetch goroutine ─▶│              │
//	└──────────────┘    (fetchResults)     │  apply loop  │──▶ Cache ──▶ Notifier ──▶ subscribers
//	┌──────────────┐   stream read loop    │ (one writer) │
//	│   ws /ws     │ ──────(frames)───────▶│              │
//	└──────────────┘                       └──────────────┘
//	        ▲
//	        └── supervisor: re-dial after ReconnectDelay
//
// Every cache mutation happens on the apply loop. The stream's read
// goroutine and the fetch goroutine only hand data over channels.
//
// # Notifications
//
// Subscribers are told that the cache may have changed and re-read it; they
// never receive a payload. A notification follows every fetch attempt,
// successful or not, and every applied device_update or initial_states
// message, even one that matched no known device. Malformed frames are
// logged and dropped without a notification.
//
// # Errors
//
// Only the first fetch, run synchronously by Start, can fail the caller
// (ErrConnect or ErrFetch). Afterwards fetch failures clear
// LastUpdateSuccess and keep the previous metadata; stream failures are
// handled by reconnecting; command failures go back to the command's caller.
//
// # Usage
//
//	coord := coordinator.New(cfg, client, dialer)
//	coord.SetLogger(log)
//	coord.SetMetrics(coordinator.NewMetrics(prometheus.DefaultRegisterer))
//	if err := coord.Start(ctx); err != nil {
//	    return err // hub unreachable at startup
//	}
//	defer coord.Stop()
//
//	unsubscribe := coord.Subscribe(func() {
//	    state := coord.LiveState("12")
//	    ...
//	})
package coordinator
