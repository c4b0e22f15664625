package mqtt

import "strings"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "smarthome"

// Bridge status payloads, published retained on BridgeStatus.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Topics builds the bridge's MQTT topics under one prefix.
//
//	topics := mqtt.NewTopics("smarthome")
//	topics.EntityState("casait_12_ab")   // smarthome/entity/casait_12_ab/state
//	topics.EntityCommand("casait_12_ab") // smarthome/entity/casait_12_ab/command
//	topics.BridgeStatus()                // smarthome/bridge/status
type Topics struct {
	Prefix string
}

// NewTopics returns a topic builder, trimming any trailing slash from prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// EntityState returns the retained state topic of an entity.
func (t Topics) EntityState(entityID string) string {
	return t.Prefix + "/entity/" + entityID + "/state"
}

// EntityCommand returns the command topic of an entity.
func (t Topics) EntityCommand(entityID string) string {
	return t.Prefix + "/entity/" + entityID + "/command"
}

// AllEntityCommands returns the subscription pattern for every entity's command topic.
//
// Pattern: {prefix}/entity/+/command
func (t Topics) AllEntityCommands() string {
	return t.Prefix + "/entity/+/command"
}

// BridgeStatus returns the bridge availability topic. It doubles as the LWT topic.
func (t Topics) BridgeStatus() string {
	return t.Prefix + "/bridge/status"
}

// EntityIDFromCommand extracts the entity id from a concrete command topic.
//
// Returns:
//   - string: The entity id
//   - bool: false if topic is not an entity command topic under this prefix
func (t Topics) EntityIDFromCommand(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/entity/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/command")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
