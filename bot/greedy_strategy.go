package main

import (
	"log"
	"math"
)

// Cell is one integer point of the road grid. Dogs move continuously,
// but planning on the integer cells is exact enough to steer one.
type Cell struct {
	X, Y int
}

// GreedyStrategy steers a dog over the road grid: chase the nearest loot
// until the bag is full, then haul everything to the nearest office. It
// plans with BFS on the road cells and issues one direction at a time.
type GreedyStrategy struct {
	cells   map[Cell]bool
	offices []Cell
	bagCap  int

	visited   map[Cell]int
	target    Cell
	hasTarget bool
}

func NewGreedyStrategy(detail *MapDetail, bagCap int) *GreedyStrategy {
	s := &GreedyStrategy{
		cells:   make(map[Cell]bool),
		bagCap:  bagCap,
		visited: make(map[Cell]int),
	}

	for _, road := range detail.Roads {
		if road.X1 != nil {
			x0, x1 := road.X0, *road.X1
			if x0 > x1 {
				x0, x1 = x1, x0
			}
			for x := x0; x <= x1; x++ {
				s.cells[Cell{X: x, Y: road.Y0}] = true
			}
		} else if road.Y1 != nil {
			y0, y1 := road.Y0, *road.Y1
			if y0 > y1 {
				y0, y1 = y1, y0
			}
			for y := y0; y <= y1; y++ {
				s.cells[Cell{X: road.X0, Y: y}] = true
			}
		}
	}

	// Offices may sit a little off the road; snap each to the closest
	// cell a dog can sweep it from.
	for _, office := range detail.Offices {
		cell, d := s.closestCell(float64(office.X), float64(office.Y))
		if d > 2 {
			log.Printf("⚠️  Office %s at (%d,%d) is nowhere near a road - ignoring", office.ID, office.X, office.Y)
			continue
		}
		s.offices = append(s.offices, cell)
	}

	return s
}

// NextMove returns the direction to set: one of "U", "D", "L", "R", or
// "" to stop.
func (s *GreedyStrategy) NextMove(me *DogState, state *GameState) string {
	myCell, _ := s.closestCell(me.Pos[0], me.Pos[1])
	s.visited[myCell]++

	// A full bag goes to the office. So does a non-empty one when the
	// map has nothing left to pick up.
	goDeposit := len(me.Bag) >= s.bagCap ||
		(len(me.Bag) > 0 && len(state.LostObjects) == 0)

	if goDeposit {
		office, ok := s.nearestOffice(myCell)
		if !ok {
			return s.explore(myCell)
		}
		s.setTarget(office, "office")
		if myCell == office {
			// Deposits only happen while moving; sweep back and forth
			// across the office until the bag is empty.
			return s.explore(myCell)
		}
		return s.step(myCell, office)
	}

	if loot, ok := nearestLoot(me, state); ok {
		cell, _ := s.closestCell(loot.Pos[0], loot.Pos[1])
		s.setTarget(cell, "loot")
		if myCell == cell {
			// Close the last fraction of a unit: pickups need the dog
			// to sweep over the item, not stand near it.
			return towards(me.Pos, loot.Pos)
		}
		return s.step(myCell, cell)
	}

	// Nothing to chase; wander so the server keeps us around until the
	// generator drops something.
	return s.explore(myCell)
}

func (s *GreedyStrategy) setTarget(cell Cell, kind string) {
	if s.hasTarget && s.target == cell {
		return
	}
	s.target = cell
	s.hasTarget = true
	log.Printf("🎯 Heading to %s at (%d,%d)", kind, cell.X, cell.Y)
}

// step returns the first direction of the shortest road path to the goal.
func (s *GreedyStrategy) step(from, to Cell) string {
	path := s.bfs(from, to)
	if len(path) == 0 {
		return s.explore(from)
	}
	return dirOf(from, path[0])
}

// bfs returns the cells of the shortest road path from start to goal,
// start excluded, or nil when the goal is unreachable.
func (s *GreedyStrategy) bfs(start, goal Cell) []Cell {
	if start == goal {
		return nil
	}

	type item struct {
		cell Cell
		path []Cell
	}

	queue := []item{{cell: start}}
	seen := map[Cell]bool{start: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, next := range neighbors(cur.cell) {
			if seen[next] || !s.cells[next] {
				continue
			}

			path := append(append([]Cell{}, cur.path...), next)
			if next == goal {
				return path
			}
			seen[next] = true
			queue = append(queue, item{cell: next, path: path})
		}
	}
	return nil
}

// explore moves toward the least visited neighbor cell, which sweeps the
// dog back and forth over nearby roads.
func (s *GreedyStrategy) explore(from Cell) string {
	best := ""
	bestScore := 0
	for _, next := range neighbors(from) {
		if !s.cells[next] {
			continue
		}
		if v := s.visited[next]; best == "" || v < bestScore {
			best = dirOf(from, next)
			bestScore = v
		}
	}
	return best
}

func (s *GreedyStrategy) nearestOffice(from Cell) (Cell, bool) {
	var best Cell
	bestLen := -1
	for _, office := range s.offices {
		if office == from {
			return office, true
		}
		path := s.bfs(from, office)
		if path == nil {
			continue
		}
		if bestLen == -1 || len(path) < bestLen {
			best = office
			bestLen = len(path)
		}
	}
	return best, bestLen != -1
}

// closestCell returns the road cell nearest to the point. Rounding is
// almost always enough; the scan only runs for points off the grid.
func (s *GreedyStrategy) closestCell(x, y float64) (Cell, float64) {
	rounded := Cell{X: int(math.Round(x)), Y: int(math.Round(y))}
	if s.cells[rounded] {
		return rounded, math.Hypot(float64(rounded.X)-x, float64(rounded.Y)-y)
	}

	var best Cell
	bestDist := math.Inf(1)
	for cell := range s.cells {
		d := math.Hypot(float64(cell.X)-x, float64(cell.Y)-y)
		if d < bestDist {
			best = cell
			bestDist = d
		}
	}
	return best, bestDist
}

func nearestLoot(me *DogState, state *GameState) (LootState, bool) {
	var best LootState
	bestDist := math.Inf(1)
	for _, loot := range state.LostObjects {
		d := math.Hypot(loot.Pos[0]-me.Pos[0], loot.Pos[1]-me.Pos[1])
		if d < bestDist {
			best = loot
			bestDist = d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

func neighbors(c Cell) [4]Cell {
	return [4]Cell{
		{X: c.X, Y: c.Y - 1},
		{X: c.X, Y: c.Y + 1},
		{X: c.X - 1, Y: c.Y},
		{X: c.X + 1, Y: c.Y},
	}
}

// dirOf maps a single-cell step to the wire direction. North is -y.
func dirOf(from, to Cell) string {
	switch {
	case to.Y < from.Y:
		return "U"
	case to.Y > from.Y:
		return "D"
	case to.X < from.X:
		return "L"
	case to.X > from.X:
		return "R"
	}
	return ""
}

// towards closes a sub-cell gap on the dominant axis.
func towards(from, to [2]float64) string {
	dx, dy := to[0]-from[0], to[1]-from[1]
	if math.Abs(dx) >= math.Abs(dy) {
		if dx < 0 {
			return "L"
		}
		return "R"
	}
	if dy < 0 {
		return "U"
	}
	return "D"
}
