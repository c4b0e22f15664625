package mqtt

import "errors"

// Errors returned by the state bus client.
var (
	// ErrNotConnected is returned while the broker link is down. Paho keeps
	// reconnecting in the background; callers retry on the next mirror pass.
	ErrNotConnected = errors.New("mqtt: broker link down")

	// ErrConnectionFailed is returned by Connect when the broker did not
	// accept the session before the connect timeout.
	ErrConnectionFailed = errors.New("mqtt: broker rejected or unreachable")

	ErrPublishFailed     = errors.New("mqtt: publish not acknowledged")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe not acknowledged")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe not acknowledged")

	// ErrInvalidQoS is returned for QoS levels other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
