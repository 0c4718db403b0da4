package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	cellSize     = 32 // pixels per world unit
	headerHeight = 60
	screenWidth  = 960
	screenHeight = 720

	roadHalfWidth = 0.4
	dogSize       = 0.6
	lootSize      = 0.3
	officeSize    = 1.0

	pollInterval   = 500 * time.Millisecond
	rosterInterval = 5 * time.Second
)

var serverURL = "http://localhost:8080"

// ScreenType represents different screens in the app
type ScreenType int

const (
	ScreenWelcome ScreenType = iota
	ScreenGame
)

// Dog colors cycle by player id so every dog on the map is telling apart
var dogColors = []color.RGBA{
	{255, 100, 100, 255}, // Red
	{100, 100, 255, 255}, // Blue
	{100, 255, 100, 255}, // Green
	{255, 255, 100, 255}, // Yellow
	{255, 100, 255, 255}, // Magenta
	{100, 255, 255, 255}, // Cyan
	{255, 165, 0, 255},   // Orange
	{128, 0, 128, 255},   // Purple
	{255, 192, 203, 255}, // Pink
}

var lootColors = []color.RGBA{
	{255, 215, 0, 255},   // Gold
	{0, 220, 130, 255},   // Emerald
	{80, 170, 255, 255},  // Sky
	{230, 90, 60, 255},   // Coral
	{200, 160, 255, 255}, // Lilac
}

// Wire types, matching the server's JSON API.

type MapInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Road struct {
	X0 int  `json:"x0"`
	Y0 int  `json:"y0"`
	X1 *int `json:"x1"`
	Y1 *int `json:"y1"`
}

type Building struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type Office struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
}

type MapDetail struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Roads     []Road     `json:"roads"`
	Buildings []Building `json:"buildings"`
	Offices   []Office   `json:"offices"`
}

type JoinResult struct {
	AuthToken string `json:"authToken"`
	PlayerID  uint32 `json:"playerId"`
}

type BagItem struct {
	ID   uint32 `json:"id"`
	Type int    `json:"type"`
}

type DogState struct {
	Pos   [2]float64 `json:"pos"`
	Speed [2]float64 `json:"speed"`
	Dir   string     `json:"dir"`
	Bag   []BagItem  `json:"bag"`
	Score int        `json:"score"`
}

type LootState struct {
	Type int        `json:"type"`
	Pos  [2]float64 `json:"pos"`
}

// GameState is a session snapshot. The websocket wraps the same shape
// with a sessionId field, so it decodes both.
type GameState struct {
	SessionID   uint32               `json:"sessionId"`
	Players     map[string]DogState  `json:"players"`
	LostObjects map[string]LootState `json:"lostObjects"`
}

type PlayerName struct {
	Name string `json:"name"`
}

// Game is the desktop client.
type Game struct {
	stateMutex sync.RWMutex

	currentScreen ScreenType

	// Welcome screen
	nameInput string
	runes     []rune
	maps      []MapInfo
	mapCursor int
	errorMsg  string

	// Game screen
	detail     *MapDetail
	token      string
	playerID   string
	state      *GameState
	roster     map[string]string // player id -> name
	wsConn     *websocket.Conn
	lastUpdate time.Time
	lastRoster time.Time
	currentDir string
}

// NewGame creates the client and loads the map list for the welcome
// screen.
func NewGame() *Game {
	g := &Game{
		currentScreen: ScreenWelcome,
		nameInput:     "",
		roster:        make(map[string]string),
	}
	g.loadMaps()
	return g
}

// loadMaps fetches the map catalog from the server
func (g *Game) loadMaps() {
	g.errorMsg = ""

	var maps []MapInfo
	if err := getJSON("/api/v1/maps", "", &maps); err != nil {
		g.errorMsg = fmt.Sprintf("Error loading maps: %v", err)
		return
	}
	g.maps = maps
	if g.mapCursor >= len(maps) {
		g.mapCursor = 0
	}
}

// join creates the player on the selected map and switches to the game
// screen.
func (g *Game) join() {
	if g.nameInput == "" {
		g.errorMsg = "Enter a name first"
		return
	}
	if len(g.maps) == 0 {
		g.errorMsg = "No maps available (press F5 to retry)"
		return
	}

	chosen := g.maps[g.mapCursor]

	var detail MapDetail
	if err := getJSON("/api/v1/maps/"+chosen.ID, "", &detail); err != nil {
		g.errorMsg = fmt.Sprintf("Failed to fetch map: %v", err)
		return
	}

	var result JoinResult
	req := map[string]string{"userName": g.nameInput, "mapId": chosen.ID}
	if err := postJSON("/api/v1/game/join", "", req, &result); err != nil {
		g.errorMsg = fmt.Sprintf("Failed to join: %v", err)
		return
	}

	g.stateMutex.Lock()
	g.detail = &detail
	g.token = result.AuthToken
	g.playerID = strconv.FormatUint(uint64(result.PlayerID), 10)
	g.state = nil
	g.roster = make(map[string]string)
	g.currentDir = ""
	g.stateMutex.Unlock()

	log.Printf("Joined %s as %q, player %s", chosen.ID, g.nameInput, g.playerID)

	if err := g.connectWebSocket(); err != nil {
		log.Printf("WebSocket connect failed: %v (falling back to polling)", err)
	} else {
		go g.listenWebSocket(g.wsConn)
	}

	g.fetchGameState()
	g.fetchRoster()
	g.currentScreen = ScreenGame
}

// leaveToWelcome returns to the welcome screen, dropping the live
// connection. The server retires the abandoned dog on its own.
func (g *Game) leaveToWelcome(message string) {
	if g.wsConn != nil {
		g.wsConn.Close()
		g.wsConn = nil
	}
	g.errorMsg = message
	g.currentScreen = ScreenWelcome
	g.loadMaps()
}

// connectWebSocket establishes the live state stream
func (g *Game) connectWebSocket() error {
	base, err := url.Parse(serverURL)
	if err != nil {
		return err
	}

	wsURL := url.URL{Scheme: "ws", Host: base.Host, Path: "/ws"}
	if base.Scheme == "https" {
		wsURL.Scheme = "wss"
	}
	q := wsURL.Query()
	q.Set("authToken", g.token)
	wsURL.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return err
	}

	g.wsConn = conn
	log.Printf("WebSocket connected")
	return nil
}

// listenWebSocket applies streamed snapshots until the connection dies.
func (g *Game) listenWebSocket(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("WebSocket read error: %v", err)
			g.stateMutex.Lock()
			if g.wsConn == conn {
				g.wsConn = nil
			}
			g.stateMutex.Unlock()
			return
		}

		var state GameState
		if err := json.Unmarshal(message, &state); err != nil {
			log.Printf("WebSocket JSON parse error: %v", err)
			continue
		}

		g.stateMutex.Lock()
		g.state = &state
		g.lastUpdate = time.Now()
		g.stateMutex.Unlock()
	}
}

// fetchGameState polls the session snapshot over plain HTTP
func (g *Game) fetchGameState() {
	var state GameState
	if err := getJSON("/api/v1/game/state", g.token, &state); err != nil {
		log.Printf("Error fetching state: %v", err)
		return
	}

	g.stateMutex.Lock()
	g.state = &state
	g.lastUpdate = time.Now()
	g.stateMutex.Unlock()
}

// fetchRoster refreshes the player id to name mapping
func (g *Game) fetchRoster() {
	var roster map[string]PlayerName
	if err := getJSON("/api/v1/game/players", g.token, &roster); err != nil {
		log.Printf("Error fetching players: %v", err)
		return
	}

	g.stateMutex.Lock()
	g.roster = make(map[string]string, len(roster))
	for id, p := range roster {
		g.roster[id] = p.Name
	}
	g.lastRoster = time.Now()
	g.stateMutex.Unlock()
}

// sendAction sets the walking direction: "U", "D", "L", "R" or "" to
// stop. The server keeps the dog moving until told otherwise.
func (g *Game) sendAction(direction string) {
	if err := postJSON("/api/v1/game/player/action", g.token, map[string]string{"move": direction}, nil); err != nil {
		log.Printf("Action failed: %v", err)
		return
	}
	g.currentDir = direction
}

// Update handles input and background polling.
func (g *Game) Update() error {
	switch g.currentScreen {
	case ScreenWelcome:
		return g.updateWelcomeScreen()
	case ScreenGame:
		return g.updateGameScreen()
	}
	return nil
}

// updateWelcomeScreen handles name entry and map selection
func (g *Game) updateWelcomeScreen() error {
	g.runes = ebiten.AppendInputChars(g.runes[:0])
	for _, r := range g.runes {
		if len(g.nameInput) < 24 && r >= ' ' {
			g.nameInput += string(r)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) && len(g.nameInput) > 0 {
		g.nameInput = g.nameInput[:len(g.nameInput)-1]
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && g.mapCursor < len(g.maps)-1 {
		g.mapCursor++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && g.mapCursor > 0 {
		g.mapCursor--
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		g.loadMaps()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		g.join()
	}

	return nil
}

// updateGameScreen handles walking input and keeps the state fresh
func (g *Game) updateGameScreen() error {
	g.stateMutex.RLock()
	conn := g.wsConn
	stale := time.Since(g.lastUpdate) > pollInterval
	rosterStale := time.Since(g.lastRoster) > rosterInterval
	g.stateMutex.RUnlock()

	// Poll when the socket is down; names refresh on a slow timer either
	// way, they change when someone joins.
	if conn == nil && stale {
		g.fetchGameState()
	}
	if rosterStale {
		g.fetchRoster()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) || inpututil.IsKeyJustPressed(ebiten.KeyW) {
		g.sendAction("U")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) || inpututil.IsKeyJustPressed(ebiten.KeyS) {
		g.sendAction("D")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) || inpututil.IsKeyJustPressed(ebiten.KeyA) {
		g.sendAction("L")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) || inpututil.IsKeyJustPressed(ebiten.KeyD) {
		g.sendAction("R")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.sendAction("")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.leaveToWelcome("")
	}

	// The server drops idle dogs; when ours is gone the token is dead.
	g.stateMutex.RLock()
	retired := g.state != nil && len(g.state.Players) > 0 && !hasPlayer(g.state, g.playerID)
	g.stateMutex.RUnlock()
	if retired {
		g.leaveToWelcome("Your dog was retired for being idle. Join again!")
	}

	return nil
}

func hasPlayer(state *GameState, id string) bool {
	_, ok := state.Players[id]
	return ok
}

// Draw renders the current screen.
func (g *Game) Draw(screen *ebiten.Image) {
	switch g.currentScreen {
	case ScreenWelcome:
		g.drawWelcomeScreen(screen)
	case ScreenGame:
		g.drawGameScreen(screen)
	}
}

// drawWelcomeScreen renders name entry and the map list
func (g *Game) drawWelcomeScreen(screen *ebiten.Image) {
	screen.Fill(color.RGBA{20, 20, 30, 255})

	y := 20
	ebitenutil.DebugPrintAt(screen, "=== DOG WALK - JOIN A MAP ===", 360, y)
	y += 30

	if g.errorMsg != "" {
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("NOTE: %s", g.errorMsg), 20, y)
		y += 20
	}

	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Your name: %s_", g.nameInput), 20, y)
	y += 30

	ebitenutil.DebugPrintAt(screen, "Maps:", 20, y)
	y += 20

	if len(g.maps) == 0 {
		ebitenutil.DebugPrintAt(screen, "  No maps found. Is the server running? Press F5 to retry.", 20, y)
		y += 20
	}
	for i, m := range g.maps {
		cursor := "   "
		if i == g.mapCursor {
			cursor = " > "
		}
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%s%s (%s)", cursor, m.Name, m.ID), 20, y)
		y += 15
	}

	y += 25
	ebitenutil.DebugPrintAt(screen, "CONTROLS:", 20, y)
	y += 20
	ebitenutil.DebugPrintAt(screen, "  Type     - Enter your name", 20, y)
	y += 15
	ebitenutil.DebugPrintAt(screen, "  Up/Down  - Pick a map", 20, y)
	y += 15
	ebitenutil.DebugPrintAt(screen, "  ENTER    - Join and start walking", 20, y)
	y += 15
	ebitenutil.DebugPrintAt(screen, "  F5       - Refresh the map list", 20, y)
}

// drawGameScreen renders the world centered on our dog
func (g *Game) drawGameScreen(screen *ebiten.Image) {
	g.stateMutex.RLock()
	defer g.stateMutex.RUnlock()

	screen.Fill(color.RGBA{24, 28, 24, 255})

	if g.detail == nil {
		ebitenutil.DebugPrint(screen, "Loading...")
		return
	}

	camX, camY := g.cameraCenter()

	// Roads: the walkable band around each segment.
	for _, road := range g.detail.Roads {
		minX, minY, maxX, maxY := roadBounds(road)
		g.drawWorldRect(screen, minX, minY, maxX-minX, maxY-minY, camX, camY,
			color.RGBA{104, 104, 104, 255})
	}

	// Buildings are scenery.
	for _, b := range g.detail.Buildings {
		g.drawWorldRect(screen, float64(b.X), float64(b.Y), float64(b.W), float64(b.H), camX, camY,
			color.RGBA{70, 46, 24, 255})
	}

	// Offices, with their ids next to them.
	for _, o := range g.detail.Offices {
		x, y := float64(o.X), float64(o.Y)
		g.drawWorldRect(screen, x-officeSize/2, y-officeSize/2, officeSize, officeSize, camX, camY,
			color.RGBA{0, 160, 60, 255})
		sx, sy := worldToScreen(x, y, camX, camY)
		ebitenutil.DebugPrintAt(screen, o.ID, int(sx)+8, int(sy)-18)
	}

	if g.state != nil {
		// Loot on the ground.
		for _, loot := range g.state.LostObjects {
			clr := lootColors[loot.Type%len(lootColors)]
			g.drawWorldRect(screen, loot.Pos[0]-lootSize/2, loot.Pos[1]-lootSize/2, lootSize, lootSize, camX, camY, clr)
		}

		// Dogs, ours highlighted with a white outline. Stable order so
		// overlapping dogs do not flicker.
		ids := make([]string, 0, len(g.state.Players))
		for id := range g.state.Players {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			dog := g.state.Players[id]
			n, _ := strconv.Atoi(id)
			clr := dogColors[n%len(dogColors)]

			if id == g.playerID {
				pad := 0.12
				g.drawWorldRect(screen, dog.Pos[0]-dogSize/2-pad, dog.Pos[1]-dogSize/2-pad,
					dogSize+2*pad, dogSize+2*pad, camX, camY, color.RGBA{255, 255, 255, 255})
			}
			g.drawWorldRect(screen, dog.Pos[0]-dogSize/2, dog.Pos[1]-dogSize/2, dogSize, dogSize, camX, camY, clr)

			name := g.roster[id]
			if name == "" {
				name = "#" + id
			}
			sx, sy := worldToScreen(dog.Pos[0], dog.Pos[1], camX, camY)
			ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%s (%d)", name, dog.Score), int(sx)-20, int(sy)-28)
		}
	}

	g.drawHeader(screen)
	ebitenutil.DebugPrintAt(screen, "Arrows/WASD: Walk | SPACE: Stop | ESC: Leave", 10, screenHeight-20)
}

// drawHeader shows our dog's stats and the connection mode
func (g *Game) drawHeader(screen *ebiten.Image) {
	ebitenutil.DrawRect(screen, 0, 0, screenWidth, headerHeight, color.RGBA{12, 12, 18, 255})

	title := fmt.Sprintf("%s - %s", g.detail.Name, g.nameInput)
	ebitenutil.DebugPrintAt(screen, title, 10, 8)

	connStatus := "POLL"
	if g.wsConn != nil {
		connStatus = "WS"
	}

	if g.state != nil {
		if me, ok := g.state.Players[g.playerID]; ok {
			info := fmt.Sprintf("Score: %d | Bag: %d | Pos: (%.1f, %.1f) | Dir: %s | [%s]",
				me.Score, len(me.Bag), me.Pos[0], me.Pos[1], printableDir(g.currentDir), connStatus)
			ebitenutil.DebugPrintAt(screen, info, 10, 26)
		}
		ebitenutil.DebugPrintAt(screen,
			fmt.Sprintf("Dogs on this map: %d | Loot on the ground: %d",
				len(g.state.Players), len(g.state.LostObjects)), 10, 44)
	} else {
		ebitenutil.DebugPrintAt(screen, "Waiting for the first update...", 10, 26)
	}
}

func printableDir(dir string) string {
	switch dir {
	case "U":
		return "north"
	case "D":
		return "south"
	case "L":
		return "west"
	case "R":
		return "east"
	}
	return "stopped"
}

// cameraCenter follows our dog and falls back to the middle of the road
// network before the first snapshot arrives.
func (g *Game) cameraCenter() (float64, float64) {
	if g.state != nil {
		if me, ok := g.state.Players[g.playerID]; ok {
			return me.Pos[0], me.Pos[1]
		}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, road := range g.detail.Roads {
		x0, y0, x1, y1 := roadBounds(road)
		minX = math.Min(minX, x0)
		minY = math.Min(minY, y0)
		maxX = math.Max(maxX, x1)
		maxY = math.Max(maxY, y1)
	}
	return (minX + maxX) / 2, (minY + maxY) / 2
}

// roadBounds returns the walkable rectangle of a road in world units.
func roadBounds(road Road) (minX, minY, maxX, maxY float64) {
	x0, y0 := float64(road.X0), float64(road.Y0)
	x1, y1 := x0, y0
	if road.X1 != nil {
		x1 = float64(*road.X1)
	} else if road.Y1 != nil {
		y1 = float64(*road.Y1)
	}
	return math.Min(x0, x1) - roadHalfWidth, math.Min(y0, y1) - roadHalfWidth,
		math.Max(x0, x1) + roadHalfWidth, math.Max(y0, y1) + roadHalfWidth
}

func worldToScreen(wx, wy, camX, camY float64) (float64, float64) {
	sx := (wx-camX)*cellSize + screenWidth/2
	sy := (wy-camY)*cellSize + (screenHeight-headerHeight)/2 + headerHeight
	return sx, sy
}

func (g *Game) drawWorldRect(screen *ebiten.Image, wx, wy, ww, wh, camX, camY float64, clr color.Color) {
	sx, sy := worldToScreen(wx, wy, camX, camY)
	ebitenutil.DrawRect(screen, sx, sy, ww*cellSize, wh*cellSize, clr)
}

// Layout returns the game screen size
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

// HTTP helpers

func getJSON(path, token string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, serverURL+path, nil)
	if err != nil {
		return err
	}
	return doJSON(req, token, out)
}

func postJSON(path, token string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, serverURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(req, token, out)
}

func doJSON(req *http.Request, token string, out interface{}) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var reply struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &reply) == nil && reply.Message != "" {
			return fmt.Errorf("%s (%s)", reply.Message, reply.Code)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func main() {
	if len(os.Args) > 1 {
		serverURL = os.Args[1]
	}

	game := NewGame()

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Dog Walk - Desktop Client")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
