package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dogwalk/gameserver/game/config"
	"github.com/dogwalk/gameserver/game/model"
)

// Sentinel errors the transports translate into protocol responses.
var (
	// ErrUnknownToken means the token is well-formed but no live player
	// holds it.
	ErrUnknownToken = errors.New("player token has not been found")
	// ErrInvalidName rejects an empty user name on join.
	ErrInvalidName = errors.New("invalid player name")
	// ErrTooManyItems rejects a records page larger than MaxRecordItems.
	ErrTooManyItems = errors.New("maxItems cannot exceed 100")
	// ErrTickDisabled means manual ticks are not available because the
	// game follows the wall clock.
	ErrTickDisabled = errors.New("manual ticks are disabled outside test mode")
)

// MaxRecordItems caps one leaderboard page.
const MaxRecordItems = 100

// GameService defines every game operation the transports expose.
type GameService interface {
	// Catalog
	ListMaps(ctx context.Context) ([]MapInfo, error)
	GetMap(ctx context.Context, mapID string) (*MapDetail, error)

	// Play
	Join(ctx context.Context, userName, mapID string) (*JoinResult, error)
	Players(ctx context.Context, token string) (map[string]PlayerName, error)
	State(ctx context.Context, token string) (*StateSnapshot, error)
	Action(ctx context.Context, token, move string) error
	SessionID(ctx context.Context, token string) (uint32, error)

	// Time
	Tick(ctx context.Context, delta time.Duration) error
	TickEnabled() bool

	// Leaderboard
	Records(ctx context.Context, start, maxItems int) ([]RecordInfo, error)
}

// RecordStore is the slice of the leaderboard database the service
// reads from.
type RecordStore interface {
	Records(ctx context.Context, start, maxItems int) ([]model.PlayerRecord, error)
}

// BroadcastFunc receives a fresh state snapshot for a session whose
// state may have changed. It is called on the strand goroutine and must
// not block.
type BroadcastFunc func(sessionID uint32, state *StateSnapshot)

// MapInfo is one row of the map list.
type MapInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MapDetail echoes a full map definition to clients.
type MapDetail struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Roads     []config.Road     `json:"roads"`
	Buildings []config.Building `json:"buildings"`
	Offices   []config.Office   `json:"offices"`
	LootTypes []json.RawMessage `json:"lootTypes"`
}

// JoinResult is the credential pair a successful join returns.
type JoinResult struct {
	AuthToken string `json:"authToken"`
	PlayerID  uint32 `json:"playerId"`
}

// PlayerName is one entry of the session roster.
type PlayerName struct {
	Name string `json:"name"`
}

// BagItem is one carried loot item.
type BagItem struct {
	ID   uint32 `json:"id"`
	Type int    `json:"type"`
}

// DogState is the wire form of one dog.
type DogState struct {
	Pos   [2]float64 `json:"pos"`
	Speed [2]float64 `json:"speed"`
	Dir   string     `json:"dir"`
	Bag   []BagItem  `json:"bag"`
	Score int        `json:"score"`
}

// LootState is the wire form of one item lying on the map.
type LootState struct {
	Type int        `json:"type"`
	Pos  [2]float64 `json:"pos"`
}

// StateSnapshot is everything a client needs to draw a session. Keys of
// both maps are decimal ids.
type StateSnapshot struct {
	Players     map[string]DogState  `json:"players"`
	LostObjects map[string]LootState `json:"lostObjects"`
}

// RecordInfo is one leaderboard row as served to clients. PlayTime is
// in seconds.
type RecordInfo struct {
	Name     string  `json:"name"`
	Score    int     `json:"score"`
	PlayTime float64 `json:"playTime"`
}
