// Package influxdb writes entity telemetry to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Each numeric entity
// reading becomes one point whose measurement is the entity kind:
//
//	sensor,entity_id=casait_7_ab,device_id=7,device_class=temperature,unit=°C value=21.5
//	light,entity_id=casait_4_cd,device_id=4 value=200
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteEntityValue(influxdb.EntityValue{Kind: "sensor", EntityID: id, Value: 21.5}, time.Now())
//
// Writes are non-blocking and batched per influxdb.batch_size and
// influxdb.flush_interval; async failures go to the SetOnError callback.
// A nil or closed *Client drops writes silently.
package influxdb
