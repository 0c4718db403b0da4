// Package mcp exposes the game to AI agents over the Model Context
// Protocol.
//
// The package is a thin proxy: every tool call becomes one REST request
// against the game server, so the MCP surface and the HTTP API can never
// drift apart. The client holds no game state.
//
// MCP Tools:
//
//   - list_maps: list the playable maps
//   - get_map: full definition of one map (roads, offices, loot types)
//   - join_game: create a player and receive its auth token
//   - player_action: set or clear the dog's walking direction
//   - game_state: dogs and loot of the caller's session
//   - list_players: roster of the caller's session
//   - get_records: leaderboard of retired dogs
//   - advance_time: advance the game clock (test mode only)
//   - how_to_play: rules summary for the agent
//
// Transport Modes:
//
// The same tool set is served two ways:
//   - Stdio: NewClient(baseURL).Run() for local MCP clients
//   - HTTP: the Client is an http.Handler answering one JSON-RPC
//     message per POST, mounted at /mcp by the API server
//
// Authentication mirrors the REST API: join_game returns a token and the
// per-player tools take it as an auth_token argument, which the proxy
// forwards as a bearer credential.
package mcp
