// Package model holds the simulation core: maps with their road graphs,
// sessions, dogs, loot and the tick pipeline that moves everything forward.
//
// A Game owns one GameSession per map id. Each tick the pipeline moves
// every dog along the roads, spawns loot, sweeps the dogs over loot and
// offices through the collision engine, applies bag and score effects,
// retires dogs that have idled past the threshold and periodically
// checkpoints the whole world through an injected save hook.
//
// Nothing in this package is safe for concurrent use. The service layer
// funnels every mutation through a single goroutine; see game/service.
package model
