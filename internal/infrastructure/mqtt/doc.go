// Package mqtt publishes task lifecycle events to an MQTT broker.
//
// The client is publish-only. Every accepted status change is sent to
// Topics.TaskStatus so that dashboards and device workers can follow a
// task without polling the REST API. A retained online/offline message on
// Topics.SystemStatus, backed by a Last Will, lets consumers detect when
// the service goes away.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.TaskStatus("SC2", taskID)
//	err = client.PublishJSON(topic, payload, false)
//
// Publishing is best-effort from the caller's point of view: the events
// package logs and drops failures rather than failing the request that
// produced the event.
package mqtt
