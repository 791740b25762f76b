// Package influxdb records task lifecycle history in InfluxDB v2.
//
// Every status change becomes a task_event point tagged by device, action
// and target status, which makes per-device throughput and failure rates
// a single Flux query away. Device workers that report their queue depth
// produce device_pending_tasks points.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTaskEvent(influxdb.TaskEvent{
//	    TaskID: id, DeviceID: "SC2", Action: "sampling",
//	    FromStatus: "RUNNING", ToStatus: "COMPLETED",
//	})
//
// Writes are batched per the batch_size and flush_interval settings and
// never block the caller.
package influxdb
