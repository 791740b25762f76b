// Package task implements the task lifecycle: submission validation, the
// status state machine and the provider fetch-and-claim protocol.
//
// # Lifecycle
//
//	QUEUED ──fetch──▶ QUEUED_FETCHED ──▶ RUNNING ──▶ COMPLETED | FAILED
//	   │                    │               │
//	   │ cancel             └──── cancel ───┴──▶ CANCELLING ──fetch──▶ CANCELLING_FETCHED ──▶ CANCELLED
//	   ▼
//	CANCELLED (with a "user cancelled" result)
//
// Users never see the _FETCHED markers; Status.UserFacing folds them into
// QUEUED and CANCELLING.
//
// # Validation
//
// Validate turns a Submission and its device into a normalized Task or a
// *Rejection naming the offending field. It is pure; only a validated task
// reaches the repository.
//
// # Claiming
//
// SQLRepository.Fetch selects and re-statuses tasks in one transaction.
// SQLite serializes writers on its single connection; PostgreSQL uses
// FOR UPDATE SKIP LOCKED so that concurrent polls never claim the same
// task.
package task
