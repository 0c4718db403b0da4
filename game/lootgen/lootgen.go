// Package lootgen decides how many loot items a session spawns per tick.
package lootgen

import (
	"math"
	"time"
)

// RandomSource yields values in [0, 1]. Injected so tests stay
// deterministic; production keeps the default.
type RandomSource func() float64

// defaultRandom keeps the spawn rule fully deterministic: the generator
// then produces exactly the shortage once enough time has accumulated.
func defaultRandom() float64 { return 1.0 }

// Generator spreads loot spawns over time. With probability p per base
// interval each unserved dog gets an item to chase; the longer the map
// stays without a spawn, the more likely the next one.
type Generator struct {
	baseInterval time.Duration
	probability  float64
	random       RandomSource
	sinceSpawn   time.Duration
}

// Option tweaks a Generator at construction.
type Option func(*Generator)

// WithRandom replaces the default random source.
func WithRandom(src RandomSource) Option {
	return func(g *Generator) {
		g.random = src
	}
}

// New builds a Generator with the given base interval and per-interval
// probability. Probability is expected in [0, 1].
func New(baseInterval time.Duration, probability float64, opts ...Option) *Generator {
	g := &Generator{
		baseInterval: baseInterval,
		probability:  probability,
		random:       defaultRandom,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns how many new items to spawn after timeDelta has passed,
// given the current free-loot count and the current dog count. The result
// never exceeds looterCount - lootCount; a nonzero result resets the
// accumulated interval.
func (g *Generator) Generate(timeDelta time.Duration, lootCount, looterCount uint) uint {
	g.sinceSpawn += timeDelta

	var shortage uint
	if looterCount > lootCount {
		shortage = looterCount - lootCount
	}

	ratio := float64(g.sinceSpawn) / float64(g.baseInterval)
	p := (1 - math.Pow(1-g.probability, ratio)) * g.random()
	p = math.Min(math.Max(p, 0), 1)

	generated := uint(math.Round(float64(shortage) * p))
	if generated > 0 {
		g.sinceSpawn = 0
	}
	return generated
}
