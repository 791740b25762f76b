// Package auth provides caller identity for the user and provider APIs.
//
// Identity is carried in HS256-signed JWT bearer tokens. The subject is the
// task owner and the role claim selects the API:
//
//   - user: submits and manages its own tasks, reads results and devices
//   - provider: claims tasks, pushes status, attaches results, updates devices
//
// Permissions are a static role mapping; no database lookup is needed to
// authorise a request. Tokens are minted out of band (see the token
// subcommand) and validated by signature and expiry only.
package auth
