// Command analyze prints quick, human-readable heuristics about map
// catalog files: road geometry, office placement and the loot economy of
// every map. It highlights offices no dog can deposit at and road graphs
// that are split into islands.
package main

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dogwalk/gameserver/game/config"
	"github.com/dogwalk/gameserver/game/geom"
	"github.com/dogwalk/gameserver/game/model"
)

// gatherRange is how far an office may sit from a road band and still be
// collectable by a passing dog.
const gatherRange = model.DogWidth + model.OfficeWidth

func main() {
	paths := os.Args[1:]
	if len(paths) == 0 {
		paths = []string{"data/config.json"}
	}

	for _, path := range paths {
		fmt.Printf("\n=== Analyzing %s ===\n", path)
		analyzeCatalog(os.Stdout, path)
	}
}

// analyzeCatalog prints the per-map report for one catalog file. Errors
// are reported inline so a broken file never stops the run.
func analyzeCatalog(w io.Writer, path string) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(w, "Error loading catalog: %v\n", err)
		return
	}

	fmt.Fprintf(w, "Maps: %d\n", len(cfg.Maps))
	fmt.Fprintf(w, "Loot generator: period %.1fs, probability %.2f (about %.1f items/min per map)\n",
		cfg.LootGeneratorConfig.Period, cfg.LootGeneratorConfig.Probability, spawnRate(cfg))
	fmt.Fprintf(w, "Dogs retire after %s of inactivity\n", cfg.RetirementTime())

	for i := range cfg.Maps {
		analyzeMap(w, cfg, &cfg.Maps[i])
	}
}

// spawnRate estimates how many loot items the generator produces per
// minute on one map.
func spawnRate(cfg *config.Config) float64 {
	if cfg.LootGeneratorConfig.Period <= 0 {
		return 0
	}
	return cfg.LootGeneratorConfig.Probability * 60 / cfg.LootGeneratorConfig.Period
}

func analyzeMap(w io.Writer, cfg *config.Config, src *config.Map) {
	fmt.Fprintf(w, "\n--- Map %s (%s) ---\n", src.ID, src.Name)

	m, err := model.NewMap(cfg, src)
	if err != nil {
		fmt.Fprintf(w, "Error building map: %v\n", err)
		return
	}

	roads := m.Roads()
	horizontal, vertical := 0, 0
	length := 0.0
	for _, road := range roads {
		if road.IsHorizontal() {
			horizontal++
			length += math.Abs(road.End().X - road.Start().X)
		} else {
			vertical++
			length += math.Abs(road.End().Y - road.Start().Y)
		}
	}
	extent := extentOf(roads)

	fmt.Fprintf(w, "Roads: %d (%d horizontal, %d vertical), %d intersections\n",
		len(roads), horizontal, vertical, intersections(roads))
	fmt.Fprintf(w, "Walkable length: %.0f units across a %.0fx%.0f extent\n",
		length, extent.MaxX-extent.MinX, extent.MaxY-extent.MinY)
	fmt.Fprintf(w, "Dog speed: %.1f units/s, bag capacity: %d\n", m.DogSpeed(), m.BagCapacity())
	fmt.Fprintf(w, "Corner-to-corner walk: about %.0fs\n",
		(extent.MaxX-extent.MinX+extent.MaxY-extent.MinY)/m.DogSpeed())

	if islands := disconnectedRoads(roads); len(islands) > 0 {
		fmt.Fprintf(w, "⚠️  WARNING: %d roads are not connected to road 0: %v\n", len(islands), islands)
	} else {
		fmt.Fprintf(w, "✅ Road graph is connected\n")
	}

	unreachable := 0
	for _, office := range m.Offices() {
		if d := nearestRoadDistance(roads, office.Pos()); d > gatherRange {
			unreachable++
			fmt.Fprintf(w, "⚠️  CRITICAL: office %s at (%.0f,%.0f) is %.2f from the nearest road, no dog can deposit there\n",
				office.ID(), office.Pos().X, office.Pos().Y, d)
		}
	}
	if unreachable == 0 {
		fmt.Fprintf(w, "✅ All %d offices are within gathering range\n", len(m.Offices()))
	}

	minValue, maxValue, total := 0, 0, 0
	for i := 0; i < m.LootTypeCount(); i++ {
		v, _ := m.LootValue(i)
		if i == 0 || v < minValue {
			minValue = v
		}
		if v > maxValue {
			maxValue = v
		}
		total += v
	}
	fmt.Fprintf(w, "Loot: %d types, values %d..%d, average %.1f\n",
		m.LootTypeCount(), minValue, maxValue, float64(total)/float64(m.LootTypeCount()))
}

// extentOf returns the bounding box of the road endpoints, band excluded.
func extentOf(roads []model.Road) geom.Rect {
	ext := geom.Rect{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, road := range roads {
		for _, p := range []geom.Point2D{road.Start(), road.End()} {
			ext.MinX = math.Min(ext.MinX, p.X)
			ext.MinY = math.Min(ext.MinY, p.Y)
			ext.MaxX = math.Max(ext.MaxX, p.X)
			ext.MaxY = math.Max(ext.MaxY, p.Y)
		}
	}
	return ext
}

// intersections counts the horizontal/vertical road pairs whose walkable
// rectangles overlap. Collinear overlaps are not counted.
func intersections(roads []model.Road) int {
	count := 0
	for i, a := range roads {
		for _, b := range roads[i+1:] {
			if a.IsHorizontal() != b.IsHorizontal() && overlap(a.Bounds(), b.Bounds()) {
				count++
			}
		}
	}
	return count
}

// disconnectedRoads flood-fills the road graph from road 0 over walkable
// rectangle overlaps and returns the indexes the fill never reaches.
func disconnectedRoads(roads []model.Road) []int {
	if len(roads) == 0 {
		return nil
	}

	visited := make([]bool, len(roads))
	visited[0] = true
	queue := []int{0}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for i := range roads {
			if !visited[i] && overlap(roads[cur].Bounds(), roads[i].Bounds()) {
				visited[i] = true
				queue = append(queue, i)
			}
		}
	}

	var islands []int
	for i, ok := range visited {
		if !ok {
			islands = append(islands, i)
		}
	}
	return islands
}

func overlap(a, b geom.Rect) bool {
	return a.MinX <= b.MaxX && b.MinX <= a.MaxX &&
		a.MinY <= b.MaxY && b.MinY <= a.MaxY
}

// nearestRoadDistance returns the distance from p to the closest walkable
// rectangle, zero when p lies on a road.
func nearestRoadDistance(roads []model.Road, p geom.Point2D) float64 {
	best := math.Inf(1)
	for _, road := range roads {
		b := road.Bounds()
		dx := math.Max(math.Max(b.MinX-p.X, 0), p.X-b.MaxX)
		dy := math.Max(math.Max(b.MinY-p.Y, 0), p.Y-b.MaxY)
		if d := math.Hypot(dx, dy); d < best {
			best = d
		}
	}
	return best
}
