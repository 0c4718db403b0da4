// Package config loads the JSON map catalog that seeds the world model.
//
// The config package handles:
//   - Parsing the catalog file (global tuning plus the list of maps)
//   - Structural validation of roads, offices and loot types
//   - Resolving effective per-map settings (overrides win over defaults)
//
// Catalog Format:
//
// A catalog is one JSON object. Global keys tune the whole game:
// defaultDogSpeed, defaultBagCapacity, dogRetirementTime (seconds) and
// lootGeneratorConfig {period (seconds), probability}. Each entry of maps
// describes one playable map: axis-aligned roads ({x0,y0,x1} horizontal or
// {x0,y0,y1} vertical), cosmetic buildings, offices and the ordered loot
// type list. Loot type entries stay raw JSON so the API can echo them to
// clients unchanged; the model only reads their value field.
//
// Usage:
//
//	cfg, err := config.Load("data/config.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	speed := cfg.DogSpeedFor(&cfg.Maps[0])
package config
