package model

import "github.com/dogwalk/gameserver/game/geom"

// Loot is one dropped item, either waiting on the map or riding in a
// dog's bag. Its value is fixed at spawn time from the map's loot table.
type Loot struct {
	id        uint32
	typeIndex int
	value     int
	pos       geom.Point2D
	width     float64
}

// NewLoot creates a loot item of the given type at pos, minting its id
// from the counters.
func NewLoot(c *Counters, typeIndex, value int, pos geom.Point2D) *Loot {
	return &Loot{
		id:        c.NextLootID(),
		typeIndex: typeIndex,
		value:     value,
		pos:       pos,
		width:     LootWidth,
	}
}

// RestoreLoot rebuilds a loot item from checkpoint data, keeping its id.
func RestoreLoot(id uint32, typeIndex, value int, pos geom.Point2D, width float64) *Loot {
	return &Loot{id: id, typeIndex: typeIndex, value: value, pos: pos, width: width}
}

// ID returns the loot id.
func (l *Loot) ID() uint32 { return l.id }

// Type returns the index of the loot type in the map's loot table.
func (l *Loot) Type() int { return l.typeIndex }

// Value returns the score the item is worth when deposited.
func (l *Loot) Value() int { return l.value }

// Pos returns where the item lies on the map.
func (l *Loot) Pos() geom.Point2D { return l.pos }

// Width returns the gather radius of the item.
func (l *Loot) Width() float64 { return l.width }
