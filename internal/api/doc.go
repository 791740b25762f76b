// Package api implements the HTTP REST APIs and WebSocket stream of the
// quantum task service.
//
// This package provides:
//   - the user API under /api/v1: devices, task submission and management,
//     results, the legacy /jobs view and a WebSocket status stream
//   - the provider API under /provider/v1: device updates, the
//     fetch-and-claim protocol, status pushes and result attachment
//   - middleware for correlation ids, logging, panic recovery, CORS,
//     identity and OpenTelemetry instrumentation
//
// # Security
//
// In jwt mode every request except /api/v1/health carries a bearer token
// whose subject is the owner and whose role selects the API. A user token
// on the provider API is refused with 403. In header mode the owner is read
// from X-Owner and the boundary in front of the service is trusted.
//
// # Errors
//
// Failures are written as {"detail": "..."} with 400, 401, 403, 404, 409 or
// 500. Successful mutations without a resource body answer {"message": "..."}.
package api
