package mqtt

import "fmt"

// TopicPrefix is the root of every topic this service publishes.
const TopicPrefix = "qtask/v1"

// Topics builds the topics task lifecycle events are published on.
//
//	topics := mqtt.Topics{}
//	topics.TaskStatus("SC2", "7f0c...")
//	// qtask/v1/devices/SC2/tasks/7f0c.../status
type Topics struct{}

// TaskStatus is the topic for status changes of one task.
//
// Example: qtask/v1/devices/SC2/tasks/7f0c.../status
func (Topics) TaskStatus(deviceID, taskID string) string {
	return fmt.Sprintf("%s/devices/%s/tasks/%s/status", TopicPrefix, deviceID, taskID)
}

// TaskResult is the topic announcing that a task's result was recorded.
//
// Example: qtask/v1/devices/SC2/tasks/7f0c.../result
func (Topics) TaskResult(deviceID, taskID string) string {
	return fmt.Sprintf("%s/devices/%s/tasks/%s/result", TopicPrefix, deviceID, taskID)
}

// DeviceStatus is the retained topic carrying a device's availability.
//
// Example: qtask/v1/devices/SC2/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/status", TopicPrefix, deviceID)
}

// SystemStatus is the retained online/offline topic for this service.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}
