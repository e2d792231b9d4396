// Package websocket provides real-time event streaming via WebSocket.
//
// Clients can connect to /api/v1/orchestrations/:id/ws to receive real-time
// updates about deployment, scaling and health events.
package websocket
