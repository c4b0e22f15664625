// Package mqtt connects the bridge to an MQTT broker.
//
// The broker is an optional mirror, not a source of truth: entity state is
// published retained under {prefix}/entity/{entity_id}/state, and commands
// arrive on {prefix}/entity/{entity_id}/command. The bridge's availability
// is the retained {prefix}/bridge/status topic ("online"/"offline"), with
// "offline" registered as the Last Will so a crash is visible too.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllEntityCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := topics.EntityIDFromCommand(topic)
//	        ...
//	    })
//
// Connection loss is handled by paho's auto-reconnect; subscriptions are
// restored and "online" republished on each reconnect.
package mqtt
