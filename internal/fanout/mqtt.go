package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/smarthome-bridge/internal/entity"
	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/mqtt"
)

// commandTimeout bounds one MQTT-originated entity action.
const commandTimeout = 10 * time.Second

// Publisher is the MQTT surface the mirror needs. *mqtt.Client satisfies it.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Topics() mqtt.Topics
}

// EntityStore lists entity states and performs actions. *entity.Registry satisfies it.
type EntityStore interface {
	StateLister
	Do(ctx context.Context, id, action string, params map[string]any) error
}

// Command is the payload accepted on {prefix}/entity/{id}/command.
type Command struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// MQTTMirror publishes retained entity state and turns command messages
// into entity actions.
type MQTTMirror struct {
	pub      Publisher
	entities EntityStore
	topics   mqtt.Topics
	seen     *tracker
	logger   Logger
}

// NewMQTTMirror creates a mirror over pub.
func NewMQTTMirror(pub Publisher, entities EntityStore) *MQTTMirror {
	return &MQTTMirror{
		pub:      pub,
		entities: entities,
		topics:   pub.Topics(),
		seen:     newTracker(),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the mirror.
func (m *MQTTMirror) SetLogger(logger Logger) {
	m.logger = logger
}

// Start subscribes to every entity command topic.
func (m *MQTTMirror) Start() error {
	if err := m.pub.Subscribe(m.topics.AllEntityCommands(), 1, m.handleCommand); err != nil {
		return fmt.Errorf("subscribing to entity commands: %w", err)
	}
	return nil
}

// Sync publishes the state of every entity whose projection changed.
// A failed publish is retried on the next pass.
func (m *MQTTMirror) Sync(_ context.Context) {
	published := 0
	for _, st := range m.entities.States() {
		if !m.seen.changed(st.EntityID, st) {
			continue
		}
		payload, err := json.Marshal(st)
		if err != nil {
			m.logger.Warn("encoding entity state", "entity_id", st.EntityID, "error", err)
			continue
		}
		if err := m.pub.PublishRetained(m.topics.EntityState(st.EntityID), payload); err != nil {
			m.seen.forget(st.EntityID)
			m.logger.Debug("publishing entity state", "entity_id", st.EntityID, "error", err)
			continue
		}
		published++
	}
	if published > 0 {
		m.logger.Debug("entity states published", "count", published)
	}
}

// Resync republishes every entity on the next Sync. Call it after a
// broker reconnect.
func (m *MQTTMirror) Resync() {
	m.seen.reset()
}

func (m *MQTTMirror) handleCommand(topic string, payload []byte) error {
	id, ok := m.topics.EntityIDFromCommand(topic)
	if !ok {
		return fmt.Errorf("unexpected command topic %q", topic)
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decoding command for %s: %w", id, err)
	}
	if cmd.Action == "" {
		return fmt.Errorf("command for %s has no action", id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := m.entities.Do(ctx, id, cmd.Action, cmd.Params)
	switch {
	case err == nil:
		m.logger.Info("mqtt command sent", "entity_id", id, "action", cmd.Action)
		return nil
	case errors.Is(err, entity.ErrNotFound), errors.Is(err, entity.ErrUnknownAction),
		errors.Is(err, entity.ErrInvalidParams), errors.Is(err, entity.ErrUnsupported):
		return fmt.Errorf("rejected command for %s: %w", id, err)
	default:
		m.logger.Error("mqtt command failed", "entity_id", id, "action", cmd.Action, "error", err)
		return nil
	}
}
