// Command validate provides a small CLI that validates map catalog JSON
// files before they are deployed to a server. It checks:
//   - JSON structure and required fields (through the game config parser)
//   - Road geometry: every road must have a positive length
//   - Office ids: a sigil character followed by a numeric id
//   - Connectivity: every road is reachable from the first road through
//     overlapping walkable rectangles
//   - Office reachability: every office lies within gathering range of the
//     road network, otherwise no dog could ever deposit there
package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dogwalk/gameserver/game/config"
	"github.com/dogwalk/gameserver/game/geom"
	"github.com/dogwalk/gameserver/game/model"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateCatalog loads and validates a single map catalog JSON file. It
// performs structural checks through the config parser and geometry checks
// on every map.
func validateCatalog(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	cfg, err := config.Parse(data)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid catalog: %v", err))
		return result
	}

	for i := range cfg.Maps {
		info, errs := validateMap(cfg, &cfg.Maps[i])
		if len(errs) > 0 {
			result.Valid = false
			result.Errors = append(result.Errors, errs...)
			continue
		}
		result.Errors = append(result.Errors, info...)
	}

	return result
}

// validateMap runs the geometry checks for one map definition: road
// lengths, office ids, road-graph connectivity and office reachability.
// It returns informational lines on success and the errors otherwise.
func validateMap(cfg *config.Config, src *config.Map) (info, errs []string) {
	m, err := model.NewMap(cfg, src)
	if err != nil {
		// NewMap errors already name the map.
		return nil, []string{err.Error()}
	}

	roads := m.Roads()
	horizontal := 0
	totalLength := 0.0
	for i, road := range roads {
		if road.Start() == road.End() {
			errs = append(errs, fmt.Sprintf("map %s: road %d has zero length", src.ID, i))
		}
		if road.IsHorizontal() {
			horizontal++
			totalLength += math.Abs(road.End().X - road.Start().X)
		} else {
			totalLength += math.Abs(road.End().Y - road.Start().Y)
		}
	}

	for _, i := range unreachableRoads(roads) {
		errs = append(errs, fmt.Sprintf("map %s: road %d is not connected to road 0", src.ID, i))
	}

	for _, office := range m.Offices() {
		d := distanceToRoads(roads, office.Pos())
		if d > model.DogWidth+model.OfficeWidth {
			errs = append(errs, fmt.Sprintf("map %s: office %s at (%.0f,%.0f) is out of gathering range (nearest road %.2f away)",
				src.ID, office.ID(), office.Pos().X, office.Pos().Y, d))
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	minValue, maxValue := 0, 0
	for i := 0; i < m.LootTypeCount(); i++ {
		v, _ := m.LootValue(i)
		if i == 0 || v < minValue {
			minValue = v
		}
		if v > maxValue {
			maxValue = v
		}
	}

	info = append(info, fmt.Sprintf("✓ Map %s (%s)", m.ID(), m.Name()))
	info = append(info, fmt.Sprintf("✓ Roads: %d (%d horizontal, %d vertical), total length %.0f", len(roads), horizontal, len(roads)-horizontal, totalLength))
	info = append(info, "✓ Road graph is connected")
	info = append(info, fmt.Sprintf("✓ Offices: %d, all within gathering range", len(m.Offices())))
	info = append(info, fmt.Sprintf("✓ Loot types: %d, values %d..%d", m.LootTypeCount(), minValue, maxValue))
	info = append(info, fmt.Sprintf("✓ Dog speed %.1f, bag capacity %d", m.DogSpeed(), m.BagCapacity()))
	return info, nil
}

// unreachableRoads flood-fills the road graph from road 0, where two roads
// connect when their walkable rectangles overlap, and returns the indexes
// of the roads the fill never reaches.
func unreachableRoads(roads []model.Road) []int {
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
			if !visited[i] && rectsOverlap(roads[cur].Bounds(), roads[i].Bounds()) {
				visited[i] = true
				queue = append(queue, i)
			}
		}
	}

	var unreachable []int
	for i, ok := range visited {
		if !ok {
			unreachable = append(unreachable, i)
		}
	}
	return unreachable
}

func rectsOverlap(a, b geom.Rect) bool {
	return a.MinX <= b.MaxX && b.MinX <= a.MaxX &&
		a.MinY <= b.MaxY && b.MinY <= a.MaxY
}

// distanceToRoads returns the distance from p to the nearest walkable
// rectangle, zero when p lies on a road.
func distanceToRoads(roads []model.Road, p geom.Point2D) float64 {
	best := math.Inf(1)
	for _, road := range roads {
		if d := distanceToRect(road.Bounds(), p); d < best {
			best = d
		}
	}
	return best
}

func distanceToRect(r geom.Rect, p geom.Point2D) float64 {
	dx := math.Max(math.Max(r.MinX-p.X, 0), p.X-r.MaxX)
	dy := math.Max(math.Max(r.MinY-p.Y, 0), p.Y-r.MaxY)
	return math.Hypot(dx, dy)
}

// main validates the catalog files named as arguments, defaulting to
// data/*.json, and prints a concise report, exiting with non-zero status
// if any file is invalid.
func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		var err error
		files, err = filepath.Glob("data/*.json")
		if err != nil || len(files) == 0 {
			fmt.Printf("No catalog files found: %v\n", err)
			os.Exit(1)
		}
	}

	allValid := true
	for _, file := range files {
		result := validateCatalog(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All catalogs are valid!")
	} else {
		fmt.Println("❌ Some catalogs have errors")
		os.Exit(1)
	}
}
