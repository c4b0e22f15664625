// Package supervisor keeps a single hub stream alive.
//
// A Supervisor wraps a Dialer and walks a small state machine:
//
//	Idle → Connecting → Connected → Disconnected → (fixed delay) → Connecting → …
//	any state → ShuttingDown (terminal, only via Stop)
//
// Features:
//   - At most one stream at a time; a Start request while a connection is in
//     flight, open, or waiting to be retried is logged and ignored
//   - Exactly one reconnect is scheduled per disconnect, after a fixed delay
//   - Stop cancels a pending reconnect, closes the open stream, and waits for
//     the monitor goroutine to exit
//
// Example usage:
//
//	sup := supervisor.New(supervisor.Config{
//	    Name:           "hub-stream",
//	    ReconnectDelay: 30 * time.Second,
//	    OnFrame:        handleFrame,
//	}, dialer)
//
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop()
package supervisor
