// Package websocket pushes live game state to connected clients.
//
// The websocket package implements:
//   - Session-aware subscriptions: each client receives updates only
//     for the session its player is in
//   - Fan-out of state snapshots produced by the game loop
//   - Connection lifecycle management with ping/pong keepalive
//   - Backpressure handling: slow clients are dropped, never waited on
//
// Architecture:
//
// The package uses a hub-and-spoke model. A central Hub owns the client
// registry and runs a single event loop; connection goroutines and the
// game loop talk to it over channels, so the registry needs no locks.
//
// Message Protocol:
//
// Clients do not send game commands over the socket; moves go through
// the REST API. Outgoing frames are JSON snapshots in the same shape as
// GET /api/v1/game/state, plus the session id:
//
//	{"sessionId": 0, "players": {...}, "lostObjects": {...}}
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run()
//	defer hub.Shutdown()
//
//	svc.SetBroadcaster(hub.Broadcast)
//
// The HTTP layer authenticates the upgrade request and hands the
// resolved session id to ServeWS.
package websocket
