// Command bot is a headless player for the dog walk server. It joins a
// map, walks the road grid chasing the nearest loot and hauls its bag to
// the nearest office. Useful for smoke testing a server and for filling
// a map with traffic.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

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

type Office struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
}

type MapDetail struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Roads   []Road   `json:"roads"`
	Offices []Office `json:"offices"`
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

type GameState struct {
	Players     map[string]DogState  `json:"players"`
	LostObjects map[string]LootState `json:"lostObjects"`
}

type errorReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Client struct {
	baseURL  string
	token    string
	playerID string
	client   *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) ListMaps() ([]MapInfo, error) {
	var maps []MapInfo
	if err := c.get("/api/v1/maps", &maps); err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	return maps, nil
}

func (c *Client) GetMap(id string) (*MapDetail, error) {
	var detail MapDetail
	if err := c.get("/api/v1/maps/"+id, &detail); err != nil {
		return nil, fmt.Errorf("get map: %w", err)
	}
	return &detail, nil
}

func (c *Client) Join(userName, mapID string) error {
	var result JoinResult
	req := map[string]string{"userName": userName, "mapId": mapID}
	if err := c.post("/api/v1/game/join", req, &result); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	c.token = result.AuthToken
	c.playerID = strconv.FormatUint(uint64(result.PlayerID), 10)
	return nil
}

func (c *Client) State() (*GameState, error) {
	var state GameState
	if err := c.get("/api/v1/game/state", &state); err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &state, nil
}

func (c *Client) Move(direction string) error {
	req := map[string]string{"move": direction}
	if err := c.post("/api/v1/game/player/action", req, nil); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return nil
}

// Tick advances game time on a server running in test mode.
func (c *Client) Tick(deltaMS int64) error {
	req := map[string]int64{"timeDelta": deltaMS}
	if err := c.post("/api/v1/game/tick", req, nil); err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	return nil
}

func (c *Client) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var reply errorReply
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
	serverURL := flag.String("url", "http://localhost:8080", "Game server URL")
	mapID := flag.String("map", "", "Map id to join (default: first in the catalog)")
	name := flag.String("name", "bot", "Player name")
	bagCap := flag.Int("bag", 3, "Bag capacity of the chosen map (the map list does not expose it)")
	maxMoves := flag.Int("max-moves", 0, "Stop after this many direction changes (0 = run until retired)")
	playFor := flag.Duration("play-for", 0, "Stop after this long (0 = run until retired)")
	delay := flag.Duration("delay", 200*time.Millisecond, "Pause between state polls")
	tickMS := flag.Int64("tick", 0, "Advance game time by this many ms each cycle (server must run in test mode)")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	log.Printf("Connecting to game server at %s", *serverURL)
	client := NewClient(*serverURL)

	maps, err := client.ListMaps()
	if err != nil {
		log.Fatalf("Failed to list maps: %v", err)
	}
	if len(maps) == 0 {
		log.Fatalf("Server has no maps")
	}

	chosen := maps[0].ID
	if *mapID != "" {
		chosen = *mapID
	}

	detail, err := client.GetMap(chosen)
	if err != nil {
		log.Fatalf("Failed to fetch map %s: %v", chosen, err)
	}

	if err := client.Join(*name, chosen); err != nil {
		log.Fatalf("Failed to join: %v", err)
	}
	log.Printf("🐕 Joined %s (%s) as %q, player %s", detail.Name, detail.ID, *name, client.playerID)

	strategy := NewGreedyStrategy(detail, *bagCap)
	log.Printf("📊 Road grid: %d cells, %d offices reachable", len(strategy.cells), len(strategy.offices))

	var deadline time.Time
	if *playFor > 0 {
		deadline = time.Now().Add(*playFor)
	}

	current := "" // direction last sent to the server
	moves := 0
	lastScore := 0

	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			log.Printf("⏰ Time is up after %d direction changes", moves)
			break
		}

		state, err := client.State()
		if err != nil {
			log.Fatalf("Failed to fetch state: %v", err)
		}

		me, ok := state.Players[client.playerID]
		if !ok {
			log.Printf("🏁 Retired by the server after %d direction changes", moves)
			return
		}
		if me.Score > lastScore {
			log.Printf("✅ Deposited! Score: %d", me.Score)
			lastScore = me.Score
		}

		direction := strategy.NextMove(&me, state)

		// Re-send when the server stopped us at a road edge, otherwise
		// only on changes; a set direction keeps the dog walking.
		stalled := direction != "" && direction == current &&
			me.Speed[0] == 0 && me.Speed[1] == 0
		if direction != current || stalled {
			if err := client.Move(direction); err != nil {
				log.Fatalf("Failed to send action: %v", err)
			}
			current = direction
			moves++
			if *verbose {
				log.Printf("Move %q at (%.1f,%.1f), bag %d, score %d",
					direction, me.Pos[0], me.Pos[1], len(me.Bag), me.Score)
			}
			if *maxMoves > 0 && moves >= *maxMoves {
				log.Printf("🏁 Reached %d direction changes, score %d", moves, me.Score)
				return
			}
		}

		if *tickMS > 0 {
			if err := client.Tick(*tickMS); err != nil {
				log.Fatalf("Failed to tick: %v", err)
			}
		}
		if *delay > 0 {
			time.Sleep(*delay)
		}
	}

	if state, err := client.State(); err == nil {
		if me, ok := state.Players[client.playerID]; ok {
			log.Printf("Final score: %d, bag: %d items", me.Score, len(me.Bag))
		}
	}
}
