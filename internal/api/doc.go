// Package api is the HTTP surface of the reminder service, built on echo.
//
// Routes:
//
//	GET  /api/vapidPublicKey
//	POST /api/subscribe
//	POST /api/unsubscribe
//	POST /api/auth/google/callback
//	POST /api/chat
//	GET  /healthz
//
// Request bodies are validated with go-playground/validator; validation
// failures become 400 responses keyed by JSON field path.
package api
