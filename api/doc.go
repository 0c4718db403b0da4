// Package api exposes the game over HTTP.
//
// The api package implements:
//   - RESTful endpoints for joining and playing
//   - The map catalog
//   - The retired-player leaderboard
//   - Manual clock control for test runs
//   - WebSocket upgrade handling
//   - Static file serving for the game client
//
// Endpoints:
//
// Catalog:
//   - GET /api/v1/maps - List map ids and names
//   - GET /api/v1/maps/{id} - Full map descriptor
//
// Play:
//   - POST /api/v1/game/join - Join a map, returns {authToken, playerId}
//   - GET /api/v1/game/players - Names of players in the caller's session
//   - GET /api/v1/game/state - Dogs and loot of the caller's session
//   - POST /api/v1/game/player/action - Set the caller's move
//
// Time:
//   - POST /api/v1/game/tick - Advance the clock; mounted in test mode only
//
// Leaderboard:
//   - GET /api/v1/game/records?start=&maxItems= - Retired-player records
//
// Authorization:
//
// Play endpoints require "Authorization: Bearer <token>" where the token
// is the 32-character hex string issued by join. A missing or malformed
// header yields 401 invalidToken; a well-formed token that belongs to
// nobody yields 401 unknownToken.
//
// Error Handling:
//
// API errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "code": "invalidArgument",
//	  "message": "Invalid player name"
//	}
//
// Every /api response carries "Cache-Control: no-cache". Method
// mismatches answer 405 with an Allow header. Unknown /api targets
// answer 400 badRequest rather than falling through to the file server.
//
// Usage:
//
//	server := api.NewServer(api.Config{
//		Service: svc,
//		Hub:     hub,
//		WWWRoot: "./www",
//		Logger:  logger,
//	})
//	http.ListenAndServe(addr, server)
package api
