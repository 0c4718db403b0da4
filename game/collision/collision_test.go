package collision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dogwalk/gameserver/game/geom"
)

func newBatch(items []Item, gatherers []Gatherer) *Batch {
	b := &Batch{}
	for _, it := range items {
		b.AddItem(it)
	}
	for _, g := range gatherers {
		b.AddGatherer(g)
	}
	return b
}

func TestFindGatherEventsEmpty(t *testing.T) {
	t.Run("no items", func(t *testing.T) {
		b := newBatch(nil, []Gatherer{
			{Start: geom.Point2D{X: 0, Y: 0}, End: geom.Point2D{X: 10, Y: 0}, Width: 1, ID: 0},
		})
		assert.Empty(t, FindGatherEvents(b))
	})

	t.Run("no gatherers", func(t *testing.T) {
		b := newBatch([]Item{
			{Pos: geom.Point2D{X: 1, Y: 0}, Width: 1, ID: 0},
		}, nil)
		assert.Empty(t, FindGatherEvents(b))
	})
}

func TestFindGatherEventsStationaryGathererSkipped(t *testing.T) {
	b := newBatch(
		[]Item{{Pos: geom.Point2D{X: 0, Y: 0}, Width: 1, ID: 0}},
		[]Gatherer{{Start: geom.Point2D{X: 0, Y: 0}, End: geom.Point2D{X: 0, Y: 0}, Width: 5, ID: 0}},
	)
	assert.Empty(t, FindGatherEvents(b), "a gatherer that did not move gathers nothing")
}

func TestFindGatherEventsSingleSweepOrdering(t *testing.T) {
	// Items strung along one gatherer's path, deliberately added out of
	// travel order.
	items := []Item{
		{Pos: geom.Point2D{X: 9, Y: 0.11}, Width: 0.1, ID: 0},
		{Pos: geom.Point2D{X: 8, Y: 0.10}, Width: 0.1, ID: 1},
		{Pos: geom.Point2D{X: 7, Y: 0.09}, Width: 0.1, ID: 2},
		{Pos: geom.Point2D{X: 6, Y: 0.08}, Width: 0.1, ID: 3},
		{Pos: geom.Point2D{X: 5, Y: 0.07}, Width: 0.1, ID: 4},
		{Pos: geom.Point2D{X: 4, Y: 0.06}, Width: 0.1, ID: 5},
		{Pos: geom.Point2D{X: 3, Y: 0.05}, Width: 0.1, ID: 6},
	}
	gatherers := []Gatherer{
		{Start: geom.Point2D{X: 0, Y: 0}, End: geom.Point2D{X: 10, Y: 0}, Width: 0.1, ID: 0},
	}

	events := FindGatherEvents(newBatch(items, gatherers))

	require.Len(t, events, 7)
	for i := 1; i < len(events); i++ {
		assert.LessOrEqual(t, events[i-1].Time, events[i].Time, "events must be time-sorted")
	}
	wantItems := []uint32{6, 5, 4, 3, 2, 1, 0}
	for i, ev := range events {
		assert.Equal(t, wantItems[i], ev.ItemID)
	}
}

// Two gatherers cross a shared field of items. The expected sequence was
// worked out by hand from the projection formula.
func TestFindGatherEventsTwoGatherers(t *testing.T) {
	items := []Item{
		{Pos: geom.Point2D{X: 3, Y: 0.5}, Width: 0.1, ID: 0, Type: ItemLoot},
		{Pos: geom.Point2D{X: 5, Y: 1.5}, Width: 0.1, ID: 1, Type: ItemLoot},
		{Pos: geom.Point2D{X: 1, Y: 1.5}, Width: 0.1, ID: 2, Type: ItemLoot},
		{Pos: geom.Point2D{X: 9, Y: 3}, Width: 0.1, ID: 3, Type: ItemLoot},
		{Pos: geom.Point2D{X: 5, Y: 0}, Width: 0.1, ID: 4, Type: ItemLoot},
		{Pos: geom.Point2D{X: 3, Y: 3}, Width: 0.1, ID: 5, Type: ItemLoot},
		{Pos: geom.Point2D{X: 6, Y: 3}, Width: 0.1, ID: 6, Type: ItemLoot},
	}
	gatherers := []Gatherer{
		{Start: geom.Point2D{X: 0, Y: 0}, End: geom.Point2D{X: 10, Y: 3}, Width: 1.0, ID: 0},
		{Start: geom.Point2D{X: 6.5, Y: 0}, End: geom.Point2D{X: 2.5, Y: 4}, Width: 1.0, ID: 1},
	}

	events := FindGatherEvents(newBatch(items, gatherers))

	require.Len(t, events, 6)

	wantItems := []uint32{4, 0, 1, 1, 5, 3}
	wantGatherers := []uint32{1, 0, 1, 0, 1, 0}
	wantTimes := []float64{0.1875, 31.5 / 109.0, 0.375, 0.5, 0.8125, 99.0 / 109.0}

	for i, ev := range events {
		assert.Equalf(t, wantItems[i], ev.ItemID, "event %d item", i)
		assert.Equalf(t, wantGatherers[i], ev.GathererID, "event %d gatherer", i)
		assert.InDeltaf(t, wantTimes[i], ev.Time, 1e-9, "event %d time", i)
	}
	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].Time, events[i].Time, "times strictly ascending here")
	}
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Time, 0.0)
		assert.LessOrEqual(t, ev.Time, 1.0)
		assert.LessOrEqual(t, ev.SqDistance, 1.1*1.1)
	}
}

func TestFindGatherEventsItemOnTwoPaths(t *testing.T) {
	// Both gatherers pass over the same item; each must report it.
	items := []Item{
		{Pos: geom.Point2D{X: 5, Y: 0}, Width: 0.5, ID: 42, Type: ItemOffice},
	}
	gatherers := []Gatherer{
		{Start: geom.Point2D{X: 0, Y: 0}, End: geom.Point2D{X: 10, Y: 0}, Width: 0.6, ID: 7},
		{Start: geom.Point2D{X: 5, Y: -3}, End: geom.Point2D{X: 5, Y: 3}, Width: 0.6, ID: 8},
	}

	events := FindGatherEvents(newBatch(items, gatherers))

	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, uint32(42), ev.ItemID)
		assert.Equal(t, ItemOffice, ev.Type)
		assert.InDelta(t, 0.5, ev.Time, 1e-9)
	}
	assert.ElementsMatch(t, []uint32{7, 8}, []uint32{events[0].GathererID, events[1].GathererID})
}

func TestFindGatherEventsMissesOutOfBand(t *testing.T) {
	// Perpendicular distance just above the combined width, and a
	// projection outside [0,1]: neither produces an event.
	items := []Item{
		{Pos: geom.Point2D{X: 5, Y: 1.21}, Width: 0.1, ID: 0},
		{Pos: geom.Point2D{X: 12, Y: 0}, Width: 0.1, ID: 1},
	}
	gatherers := []Gatherer{
		{Start: geom.Point2D{X: 0, Y: 0}, End: geom.Point2D{X: 10, Y: 0}, Width: 1.0, ID: 0},
	}

	assert.Empty(t, FindGatherEvents(newBatch(items, gatherers)))
}
