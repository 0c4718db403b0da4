package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dogwalk/gameserver/game/service"
)

// serverInstructions is handed to MCP clients on initialize, so an agent
// can play without reading the REST docs first.
const serverInstructions = `These tools drive a dog walking game server.

Start with list_maps, then join_game with a map id and a user name. The
join result contains an auth token; every play tool needs it, so keep it.

Your dog walks the road network and nothing else. player_action sets the
walking direction (U, D, L or R) or stops the dog (empty move). The dog
keeps walking that way until told otherwise, so poll game_state to see
where everyone is. Walk over a loot item to pick it up (bags have limited
capacity) and pass a post office to bank the carried items as score. A
dog that stands still long enough retires and its result moves to the
leaderboard, see get_records.`

// Client exposes the game as MCP tools by proxying the REST API. It holds
// no game state of its own, so any number of agents can share one server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates an MCP client targeting the REST API at baseURL.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Dog Walk Game",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(serverInstructions),
	)

	c.registerTools()
}

// GetMCPServer returns the underlying MCP server, for transports that
// mount it themselves.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Run serves the tools over stdio. It blocks until stdin closes.
func (c *Client) Run() error {
	return server.ServeStdio(c.mcpServer)
}

// ServeHTTP treats each POST body as one JSON-RPC message, so the client
// can be mounted directly as the /mcp endpoint.
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)
	if response == nil {
		// Notification: nothing to answer.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (c *Client) registerTools() {
	// Catalog
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_maps",
		Description: "List the maps available on the server, one id and display name per map",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListMaps)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_map",
		Description: "Get the full definition of one map: roads, post offices, buildings and loot types",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"map_id": map[string]interface{}{
					"type":        "string",
					"description": "Map id from list_maps",
				},
			},
			Required: []string{"map_id"},
		},
	}, c.handleGetMap)

	// Play
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_game",
		Description: "Join a game session on the given map. Returns the auth token the other tools need",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_name": map[string]interface{}{
					"type":        "string",
					"description": "Display name for the new player, must not be empty",
				},
				"map_id": map[string]interface{}{
					"type":        "string",
					"description": "Map id from list_maps",
				},
			},
			Required: []string{"user_name", "map_id"},
		},
	}, c.handleJoinGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "player_action",
		Description: "Set the walking direction of your dog. The dog keeps walking until told otherwise",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"auth_token": map[string]interface{}{
					"type":        "string",
					"description": "Token returned by join_game",
				},
				"move": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"U", "D", "L", "R", ""},
					"description": "U, D, L, R, or an empty string to stop",
				},
			},
			Required: []string{"auth_token", "move"},
		},
	}, c.handlePlayerAction)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the live state of your session: every dog with position, speed, direction, bag and score, plus all loot lying on the map",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"auth_token": map[string]interface{}{
					"type":        "string",
					"description": "Token returned by join_game",
				},
			},
			Required: []string{"auth_token"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_players",
		Description: "List the players in your game session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"auth_token": map[string]interface{}{
					"type":        "string",
					"description": "Token returned by join_game",
				},
			},
			Required: []string{"auth_token"},
		},
	}, c.handleListPlayers)

	// Leaderboard
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_records",
		Description: "Get the leaderboard of retired dogs, best score first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"start": map[string]interface{}{
					"type":        "number",
					"description": "Number of rows to skip (default 0)",
				},
				"max_items": map[string]interface{}{
					"type":        "number",
					"description": "Page size, at most 100 (default 100)",
				},
			},
		},
	}, c.handleGetRecords)

	// Time
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "advance_time",
		Description: "Advance the game clock by the given number of milliseconds. Only available when the server runs without a real-time ticker (test mode)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"time_delta_ms": map[string]interface{}{
					"type":        "number",
					"description": "Milliseconds of game time to simulate",
				},
			},
			Required: []string{"time_delta_ms"},
		},
	}, c.handleAdvanceTime)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "how_to_play",
		Description: "Explain the game rules and how the tools fit together",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleHowToPlay)
}

// Helper methods for API calls

// apiCall performs one REST request against the game server. A non-empty
// token is sent as a bearer credential. A 4xx/5xx response comes back as
// an error carrying the API error envelope when one is present.
func (c *Client) apiCall(method, path, token string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var envelope struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Code != "" {
			return fmt.Errorf("API error %d (%s): %s", resp.StatusCode, envelope.Code, envelope.Message)
		}
		return fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// Tool handlers

func (c *Client) handleListMaps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var maps []service.MapInfo
	if err := c.apiCall(http.MethodGet, "/api/v1/maps", "", nil, &maps); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list maps: %v", err)), nil
	}
	if len(maps) == 0 {
		return mcp.NewToolResultText("No maps available."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Available maps (%d):\n", len(maps))
	for _, m := range maps {
		fmt.Fprintf(&b, "  %s: %s\n", m.ID, m.Name)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	mapID, _ := args["map_id"].(string)
	if mapID == "" {
		return mcp.NewToolResultError("map_id is required"), nil
	}

	var detail service.MapDetail
	path := "/api/v1/maps/" + url.PathEscape(mapID)
	if err := c.apiCall(http.MethodGet, path, "", nil, &detail); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get map %q: %v", mapID, err)), nil
	}
	return mcp.NewToolResultText(formatMapDetail(&detail)), nil
}

func (c *Client) handleJoinGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	userName, _ := args["user_name"].(string)
	if userName == "" {
		return mcp.NewToolResultError("user_name is required"), nil
	}
	mapID, _ := args["map_id"].(string)
	if mapID == "" {
		return mcp.NewToolResultError("map_id is required"), nil
	}

	body := map[string]string{"userName": userName, "mapId": mapID}
	var result service.JoinResult
	if err := c.apiCall(http.MethodPost, "/api/v1/game/join", "", body, &result); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to join game: %v", err)), nil
	}

	text := fmt.Sprintf("Joined map %q as %q.\nPlayer id: %d\nAuth token: %s\n\nKeep the token: player_action, game_state and list_players all need it.",
		mapID, userName, result.PlayerID, result.AuthToken)
	return mcp.NewToolResultText(text), nil
}

func (c *Client) handlePlayerAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	token, _ := args["auth_token"].(string)
	if token == "" {
		return mcp.NewToolResultError("auth_token is required"), nil
	}
	move, _ := args["move"].(string)
	switch move {
	case "U", "D", "L", "R", "":
	default:
		return mcp.NewToolResultError(fmt.Sprintf("invalid move %q: want U, D, L, R or an empty string", move)), nil
	}

	body := map[string]string{"move": move}
	if err := c.apiCall(http.MethodPost, "/api/v1/game/player/action", token, body, nil); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to apply action: %v", err)), nil
	}

	if move == "" {
		return mcp.NewToolResultText("Dog stopped."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Dog now walking %s.", directionWord(move))), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	token, _ := args["auth_token"].(string)
	if token == "" {
		return mcp.NewToolResultError("auth_token is required"), nil
	}

	var state service.StateSnapshot
	if err := c.apiCall(http.MethodGet, "/api/v1/game/state", token, nil, &state); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get game state: %v", err)), nil
	}
	return mcp.NewToolResultText(formatState(&state)), nil
}

func (c *Client) handleListPlayers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	token, _ := args["auth_token"].(string)
	if token == "" {
		return mcp.NewToolResultError("auth_token is required"), nil
	}

	var players map[string]service.PlayerName
	if err := c.apiCall(http.MethodGet, "/api/v1/game/players", token, nil, &players); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list players: %v", err)), nil
	}
	if len(players) == 0 {
		return mcp.NewToolResultText("No players in the session."), nil
	}

	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sortNumeric(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "Players in session (%d):\n", len(players))
	for _, id := range ids {
		fmt.Fprintf(&b, "  #%s %s\n", id, players[id].Name)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	query := url.Values{}
	if v, ok := args["start"].(float64); ok {
		query.Set("start", strconv.Itoa(int(v)))
	}
	if v, ok := args["max_items"].(float64); ok {
		query.Set("maxItems", strconv.Itoa(int(v)))
	}
	path := "/api/v1/game/records"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var records []service.RecordInfo
	if err := c.apiCall(http.MethodGet, path, "", nil, &records); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get records: %v", err)), nil
	}
	return mcp.NewToolResultText(formatRecords(records)), nil
}

func (c *Client) handleAdvanceTime(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	delta, ok := args["time_delta_ms"].(float64)
	if !ok || delta < 0 {
		return mcp.NewToolResultError("time_delta_ms must be a non-negative number of milliseconds"), nil
	}

	body := map[string]int64{"timeDelta": int64(delta)}
	if err := c.apiCall(http.MethodPost, "/api/v1/game/tick", "", body, nil); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to advance time (is the server in test mode?): %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Game clock advanced by %d ms.", int64(delta))), nil
}

func (c *Client) handleHowToPlay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(serverInstructions), nil
}

// Formatters

func formatMapDetail(d *service.MapDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Map %s: %s\n", d.ID, d.Name)

	fmt.Fprintf(&b, "Roads (%d):\n", len(d.Roads))
	for _, r := range d.Roads {
		switch {
		case r.X1 != nil:
			fmt.Fprintf(&b, "  horizontal (%d,%d)..(%d,%d)\n", r.X0, r.Y0, *r.X1, r.Y0)
		case r.Y1 != nil:
			fmt.Fprintf(&b, "  vertical (%d,%d)..(%d,%d)\n", r.X0, r.Y0, r.X0, *r.Y1)
		default:
			fmt.Fprintf(&b, "  point (%d,%d)\n", r.X0, r.Y0)
		}
	}

	fmt.Fprintf(&b, "Post offices (%d):\n", len(d.Offices))
	for _, o := range d.Offices {
		fmt.Fprintf(&b, "  %s at (%d,%d)\n", o.ID, o.X, o.Y)
	}

	fmt.Fprintf(&b, "Buildings: %d\n", len(d.Buildings))
	fmt.Fprintf(&b, "Loot types: %d\n", len(d.LootTypes))
	return b.String()
}

func formatState(s *service.StateSnapshot) string {
	var b strings.Builder

	ids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sortNumeric(ids)

	fmt.Fprintf(&b, "Dogs (%d):\n", len(s.Players))
	for _, id := range ids {
		d := s.Players[id]
		fmt.Fprintf(&b, "  #%s at (%.2f,%.2f) speed (%.2f,%.2f)", id, d.Pos[0], d.Pos[1], d.Speed[0], d.Speed[1])
		if d.Dir != "" {
			fmt.Fprintf(&b, " facing %s", directionWord(d.Dir))
		}
		fmt.Fprintf(&b, ", score %d, carrying %d\n", d.Score, len(d.Bag))
	}

	lootIDs := make([]string, 0, len(s.LostObjects))
	for id := range s.LostObjects {
		lootIDs = append(lootIDs, id)
	}
	sortNumeric(lootIDs)

	fmt.Fprintf(&b, "Loot on the map (%d):\n", len(s.LostObjects))
	for _, id := range lootIDs {
		l := s.LostObjects[id]
		fmt.Fprintf(&b, "  #%s type %d at (%.2f,%.2f)\n", id, l.Type, l.Pos[0], l.Pos[1])
	}
	return b.String()
}

func formatRecords(records []service.RecordInfo) string {
	if len(records) == 0 {
		return "No retired dogs yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Leaderboard (%d):\n", len(records))
	for i, r := range records {
		fmt.Fprintf(&b, "  %d. %s: score %d, play time %.1fs\n", i+1, r.Name, r.Score, r.PlayTime)
	}
	return b.String()
}

func directionWord(dir string) string {
	switch dir {
	case "U":
		return "north (U)"
	case "D":
		return "south (D)"
	case "L":
		return "west (L)"
	case "R":
		return "east (R)"
	}
	return dir
}

// sortNumeric orders decimal id strings by value, so "10" sorts after
// "9" instead of after "1".
func sortNumeric(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})
}
