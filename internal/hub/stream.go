package hub

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Stream timing and size limits.
const (
	defaultHandshakeTimeout = 10 * time.Second

	// closeGracePeriod bounds the close-frame write during Close.
	closeGracePeriod = time.Second

	// maxFrameSize caps a single inbound frame (1MB).
	maxFrameSize = 1 << 20
)

// FrameHandler receives every inbound frame as raw bytes.
//
// It runs on the stream's read goroutine. A handler that blocks stalls
// further reads from that stream, never anything else.
type FrameHandler func(frame []byte)

// StreamDialer opens WebSocket streams to the hub.
type StreamDialer struct {
	url    string
	dialer *websocket.Dialer
}

// NewStreamDialer creates a dialer for the given ws:// or wss:// URL.
//
// Parameters:
//   - rawURL: Stream endpoint, e.g. "ws://192.168.1.20:5000/ws"
//
// Returns:
//   - *StreamDialer: Dialer ready for use (no connection is made)
//   - error: ErrInvalidURL if the URL is not a WebSocket URL
func NewStreamDialer(rawURL string) (*StreamDialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}

	return &StreamDialer{
		url: rawURL,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
	}, nil
}

// URL returns the stream endpoint.
func (d *StreamDialer) URL() string {
	return d.url
}

// Dial opens a stream and starts its read goroutine.
//
// The context bounds the handshake only; once Dial returns, the stream lives
// until the peer closes it, a read fails, or Close is called.
//
// Parameters:
//   - ctx: Context for the handshake
//   - onFrame: Called with every inbound text or binary frame
//
// Returns:
//   - *Stream: Open stream
//   - error: Wrapped ErrDial if the connection could not be established
func (d *StreamDialer) Dial(ctx context.Context, onFrame FrameHandler) (*Stream, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s (status %d): %w", ErrDial, d.url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrDial, d.url, err)
	}
	conn.SetReadLimit(maxFrameSize)

	s := &Stream{
		conn: conn,
		done: make(chan struct{}),
	}
	go s.readLoop(onFrame)
	return s, nil
}

// Stream is one open WebSocket connection to the hub.
//
// Termination is signalled exactly once by closing the Done channel, whatever
// the cause. Close is idempotent.
type Stream struct {
	conn *websocket.Conn

	done      chan struct{}
	termOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
	closing   atomic.Bool

	mu  sync.Mutex
	err error
}

// Done is closed when the stream has terminated.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the termination cause, wrapping ErrStreamClosed.
// It returns nil while the stream is still open.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close requests a graceful shutdown: it sends a close frame and closes the
// socket, which ends the read goroutine. Safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		deadline := time.Now().Add(closeGracePeriod)
		//nolint:errcheck // Best effort; the peer may already be gone
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// readLoop delivers frames until the connection fails.
func (s *Stream) readLoop(onFrame FrameHandler) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closing.Load() {
				s.terminate(fmt.Errorf("%w: closed locally", ErrStreamClosed))
			} else {
				s.terminate(fmt.Errorf("%w: %w", ErrStreamClosed, err))
			}
			// Release the socket when the peer or the network ended it.
			s.Close() //nolint:errcheck // Already terminated
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if onFrame != nil {
			onFrame(data)
		}
	}
}

// terminate records the cause and closes Done. Only the first call has effect.
func (s *Stream) terminate(err error) {
	s.termOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}
