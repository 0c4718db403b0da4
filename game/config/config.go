package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Defaults applied when the catalog leaves the matching field unset.
const (
	DefaultDogSpeed       = 1.0
	DefaultBagCapacity    = 3
	DefaultRetirementTime = 60 * time.Second
)

var (
	// ErrNoMaps means the catalog contains an empty maps list.
	ErrNoMaps = errors.New("config: no maps defined")
)

// Road is one axis-aligned road segment with integer endpoints. Exactly one
// of X1/Y1 is set: X1 for horizontal roads, Y1 for vertical ones.
type Road struct {
	X0 int  `json:"x0"`
	Y0 int  `json:"y0"`
	X1 *int `json:"x1,omitempty"`
	Y1 *int `json:"y1,omitempty"`
}

// Building is a cosmetic rectangle rendered by clients.
type Building struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Office is a loot deposit point. Offsets position its sprite relative to
// the anchor cell.
type Office struct {
	ID      string `json:"id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	OffsetX int    `json:"offsetX"`
	OffsetY int    `json:"offsetY"`
}

// Map describes one playable map. LootTypes entries are kept as raw JSON:
// clients receive them verbatim and the model only needs each value field.
type Map struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	DogSpeed    *float64          `json:"dogSpeed,omitempty"`
	BagCapacity *int              `json:"bagCapacity,omitempty"`
	Roads       []Road            `json:"roads"`
	Buildings   []Building        `json:"buildings"`
	Offices     []Office          `json:"offices"`
	LootTypes   []json.RawMessage `json:"lootTypes"`
}

// LootValues extracts the score value of every loot type on m, in catalog
// order.
func (m *Map) LootValues() ([]int, error) {
	values := make([]int, 0, len(m.LootTypes))
	for i, raw := range m.LootTypes {
		var lt struct {
			Value *int `json:"value"`
		}
		if err := json.Unmarshal(raw, &lt); err != nil {
			return nil, fmt.Errorf("map %q: loot type %d: %w", m.ID, i, err)
		}
		if lt.Value == nil {
			return nil, fmt.Errorf("map %q: loot type %d: missing value", m.ID, i)
		}
		values = append(values, *lt.Value)
	}
	return values, nil
}

// LootGenerator holds the spawn tuning shared by all maps.
type LootGenerator struct {
	Period      float64 `json:"period"`
	Probability float64 `json:"probability"`
}

// Config is the parsed map catalog.
type Config struct {
	DefaultDogSpeed     *float64      `json:"defaultDogSpeed,omitempty"`
	DefaultBagCapacity  *int          `json:"defaultBagCapacity,omitempty"`
	DogRetirementTime   *float64      `json:"dogRetirementTime,omitempty"`
	LootGeneratorConfig LootGenerator `json:"lootGeneratorConfig"`
	Maps                []Map         `json:"maps"`
}

// Load reads and parses the catalog at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a catalog held in memory.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Maps) == 0 {
		return ErrNoMaps
	}

	seen := make(map[string]bool, len(c.Maps))
	for i := range c.Maps {
		m := &c.Maps[i]
		if m.ID == "" {
			return fmt.Errorf("map %d: missing id", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("map %q: duplicate id", m.ID)
		}
		seen[m.ID] = true

		if m.Name == "" {
			return fmt.Errorf("map %q: missing name", m.ID)
		}
		if len(m.Roads) == 0 {
			return fmt.Errorf("map %q: no roads", m.ID)
		}
		for j, road := range m.Roads {
			if (road.X1 == nil) == (road.Y1 == nil) {
				return fmt.Errorf("map %q: road %d: exactly one of x1/y1 must be set", m.ID, j)
			}
		}
		if len(m.LootTypes) == 0 {
			return fmt.Errorf("map %q: no loot types", m.ID)
		}
		if _, err := m.LootValues(); err != nil {
			return err
		}
	}
	return nil
}

// DogSpeedFor returns the effective dog speed for m: the per-map override
// when present, then the catalog default, then the built-in default.
func (c *Config) DogSpeedFor(m *Map) float64 {
	if m.DogSpeed != nil {
		return *m.DogSpeed
	}
	if c.DefaultDogSpeed != nil {
		return *c.DefaultDogSpeed
	}
	return DefaultDogSpeed
}

// BagCapacityFor returns the effective bag capacity for m, resolved the
// same way as DogSpeedFor.
func (c *Config) BagCapacityFor(m *Map) int {
	if m.BagCapacity != nil {
		return *m.BagCapacity
	}
	if c.DefaultBagCapacity != nil {
		return *c.DefaultBagCapacity
	}
	return DefaultBagCapacity
}

// RetirementTime returns how long a dog may stay inactive before it is
// retired.
func (c *Config) RetirementTime() time.Duration {
	if c.DogRetirementTime != nil {
		return time.Duration(*c.DogRetirementTime * float64(time.Second))
	}
	return DefaultRetirementTime
}

// LootPeriod returns the loot generator base interval.
func (c *Config) LootPeriod() time.Duration {
	return time.Duration(c.LootGeneratorConfig.Period * float64(time.Second))
}
