// Package websocket provides real-time run event streaming via WebSocket.
//
// Clients connect to /api/v1/runs/:id/ws and receive every run and node
// event of that run as a JSON text message. The server closes the
// connection after the run's terminal event.
package websocket
