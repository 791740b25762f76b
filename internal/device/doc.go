// Package device stores the QPUs and simulators tasks are submitted to.
//
// Device rows are administered outside the APIs (see LoadSeedFile and
// Seed); at runtime they change only through provider commands. A command
// is one of StatusUpdate, PendingJobsUpdate or CalibrationUpdate, decoded
// from the request body's "command" discriminator by DecodeCommand and
// applied by Repository.Apply in a single transaction.
//
// Invariants kept by the commands and by Validate:
//   - AvailableAt is set exactly when the device is unavailable.
//   - Calibration data exists only on QPUs and always with CalibratedAt.
//   - PendingTasks is never negative.
package device
