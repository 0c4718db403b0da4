// Package collision turns a batch of moving gatherers and stationary items
// into a time-ordered stream of gathering events. It knows nothing about
// dogs or loot; the tick pipeline maps world entities onto its inputs and
// interprets the events it returns.
package collision

import (
	"sort"

	"github.com/dogwalk/gameserver/game/geom"
)

// ItemType tags what kind of world object an item stands for.
type ItemType int

const (
	// ItemLoot is a collectible object lying on the map.
	ItemLoot ItemType = iota
	// ItemOffice is a deposit point.
	ItemOffice
)

// Item is a stationary circular region that a gatherer can reach.
type Item struct {
	Pos   geom.Point2D
	Width float64
	ID    uint32
	Type  ItemType
}

// Gatherer is a circular region swept from Start to End during one tick.
type Gatherer struct {
	Start geom.Point2D
	End   geom.Point2D
	Width float64
	ID    uint32
}

// Event records one gatherer reaching one item. Time is the fraction of the
// gatherer's sweep at which contact happens, in [0, 1].
type Event struct {
	ItemID     uint32
	GathererID uint32
	SqDistance float64
	Time       float64
	Type       ItemType
}

// Provider enumerates the items and gatherers of one detection pass.
type Provider interface {
	ItemsCount() int
	Item(i int) Item
	GatherersCount() int
	Gatherer(i int) Gatherer
}

// Batch is a slice-backed Provider filled incrementally by the tick
// pipeline. The zero value is ready to use.
type Batch struct {
	items     []Item
	gatherers []Gatherer
}

// AddItem appends an item to the batch.
func (b *Batch) AddItem(it Item) {
	b.items = append(b.items, it)
}

// AddGatherer appends a gatherer to the batch.
func (b *Batch) AddGatherer(g Gatherer) {
	b.gatherers = append(b.gatherers, g)
}

func (b *Batch) ItemsCount() int { return len(b.items) }

func (b *Batch) Item(i int) Item { return b.items[i] }

func (b *Batch) GatherersCount() int { return len(b.gatherers) }

func (b *Batch) Gatherer(i int) Gatherer { return b.gatherers[i] }

// collectResult measures how close a sweep passes by a point.
type collectResult struct {
	sqDistance float64
	ratio      float64
}

// isCollected reports whether the pass counts as a pickup for the combined
// radius of gatherer and item.
func (r collectResult) isCollected(collectRadius float64) bool {
	return r.ratio >= 0 && r.ratio <= 1 && r.sqDistance <= collectRadius*collectRadius
}

// tryCollectPoint projects c onto the line through a and b and returns the
// projection ratio along the sweep plus the squared perpendicular distance.
// a and b must differ.
func tryCollectPoint(a, b, c geom.Point2D) collectResult {
	u := c.Sub(a)
	v := b.Sub(a)
	ratio := u.Dot(v) / v.SqLen()
	closest := a.Add(v.Scale(ratio))
	return collectResult{
		sqDistance: c.Sub(closest).SqLen(),
		ratio:      ratio,
	}
}

// FindGatherEvents sweeps every gatherer over every item and returns the
// contacts ordered by time, earliest first (stable for ties). Gatherers
// that did not move produce no events. When an item lies on several
// gatherers' paths one event is emitted per gatherer; deduplication is the
// caller's business.
func FindGatherEvents(provider Provider) []Event {
	var events []Event

	for g := 0; g < provider.GatherersCount(); g++ {
		gatherer := provider.Gatherer(g)
		if gatherer.Start == gatherer.End {
			continue
		}
		for i := 0; i < provider.ItemsCount(); i++ {
			item := provider.Item(i)
			res := tryCollectPoint(gatherer.Start, gatherer.End, item.Pos)
			if !res.isCollected(gatherer.Width + item.Width) {
				continue
			}
			events = append(events, Event{
				ItemID:     item.ID,
				GathererID: gatherer.ID,
				SqDistance: res.sqDistance,
				Time:       res.ratio,
				Type:       item.Type,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})
	return events
}
