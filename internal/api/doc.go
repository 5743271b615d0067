// Package api provides the REST client for the bot service.
//
// Endpoints:
//   - GET  /api/state       full state snapshot (fallback channel)
//   - POST /api/heartbeat   viewer liveness signal
//   - POST /api/pause, /api/resume, /api/kill, /api/account-mode,
//     /api/flags/{name}     control commands (fire-and-forget, no retries)
//
// An optional admin token is sent as an Authorization bearer header. A 403
// response surfaces as ErrUnauthorized so callers can distinguish a
// misconfigured token from plain network failure.
package api
