// Package service provides the application layer of the game server.
//
// The service package implements:
//   - Joining maps and minting player tokens
//   - Move commands, state snapshots and player listings
//   - Manual ticks in test mode and the wall-clock ticker otherwise
//   - Leaderboard queries
//   - Checkpointing on shutdown
//
// Core Interfaces:
//
// GameService is the main service interface consumed by every transport.
// RecordStore abstracts the leaderboard database.
//
// Architecture:
//
// The service layer sits between the transports (HTTP/WebSocket/MCP) and
// the world model. The model is single-threaded on purpose: every
// mutation and every read of live state runs as a task on one strand
// goroutine, so handlers never touch the world concurrently and no lock
// protects it. Catalog lookups and leaderboard queries do not touch live
// state and bypass the strand.
//
// Usage:
//
//	svc := service.New(service.Deps{
//		Game:    game,
//		Players: registry,
//		Records: store,
//		Logger:  logger,
//	})
//	defer svc.Shutdown(context.Background())
//
//	join, err := svc.Join(ctx, "Fido", "town")
//	if err != nil {
//		log.Fatal(err)
//	}
//	state, err := svc.State(ctx, join.AuthToken)
//
// Clock Modes:
//
// In test mode time stands still until Tick is called, which makes
// scenarios reproducible. In normal mode the service runs its own ticker
// and Tick returns ErrTickDisabled; TickEnabled tells transports whether
// to expose the endpoint at all.
package service
