// Package api serves the DEWHOME REST API, the WebSocket event stream and
// the Prometheus metrics endpoint.
//
// Routes sit at the root path because the DEWHOME web client calls /devices,
// /device and /actions directly. Every error body has the form
//
//	{"error": "Invalid device ID"}
//
// When security.auth.enabled is set, all routes except /health, /metrics
// and /auth/login require an "Authorization: Bearer <token>" header.
// WebSocket clients may pass the token as ?token= instead. Mutations and
// login attempts are recorded in the audit log, readable at GET /audit.
//
//	srv, err := api.New(deps)
//	srv.Start(ctx)
//	defer srv.Close()
package api
