// Package job presents tasks through the legacy job vocabulary.
//
// Jobs are not stored separately. A job is a task rendered with snake_case
// fields and the older status names:
//
//	QUEUED                      -> submitted
//	QUEUED_FETCHED              -> ready
//	RUNNING                     -> running
//	COMPLETED                   -> success
//	FAILED                      -> failed
//	CANCELLING, *_FETCHED, CANCELLED -> cancelled
//
// Submissions are translated into task submissions and pass through the
// same validation as the task API.
package job
