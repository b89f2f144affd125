// Package api implements the read-only HTTP API and WebSocket stream of the
// discovery adapter.
//
// This package provides:
//   - REST endpoints listing discovered devices and the subscription set
//   - A WebSocket hub broadcasting device.discovered and device.state_changed
//   - A Prometheus /metrics endpoint fed by the orchestrator counters
//   - Optional HS256 bearer token auth on the device routes
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Routes
//
//	GET /api/v1/health          liveness and MQTT connection state
//	GET /api/v1/devices         all devices, ?category= and ?timed_out= filters
//	GET /api/v1/devices/stats   registry counts by category
//	GET /api/v1/devices/{id}    one device
//	GET /api/v1/topics          current subscription set
//	GET /metrics                Prometheus exposition
//	GET /ws                     event stream (path from websocket.path)
//
// # Security
//
// When security.jwt.secret is set, device routes need an
// "Authorization: Bearer <token>" header and the WebSocket needs a
// ?token= query parameter. Health and metrics stay open.
package api
