// Command gameserver runs the dog walking game server.
//
// Two run modes share the same wiring:
//  1. "server" (default) runs the HTTP server exposing the REST API, the
//     WebSocket state feed, static files and an /mcp endpoint.
//  2. "stdio-mcp" serves the MCP tools over stdin/stdout, proxying to an
//     already-running server when one is reachable and spinning up an
//     internal one otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dogwalk/gameserver/api"
	"github.com/dogwalk/gameserver/game/config"
	"github.com/dogwalk/gameserver/game/model"
	"github.com/dogwalk/gameserver/game/persist"
	"github.com/dogwalk/gameserver/game/player"
	"github.com/dogwalk/gameserver/game/service"
	"github.com/dogwalk/gameserver/records"
	"github.com/dogwalk/gameserver/transport/mcp"
	"github.com/dogwalk/gameserver/transport/websocket"
)

const (
	// AppName identifies the server in CLI help and logs.
	AppName = "Dog Walk Game Server"
	// Version is the server version.
	Version = "1.0.0"
)

// dbPoolSize caps the leaderboard connection pool. Retirements are
// written one at a time off the strand, so one connection is enough.
const dbPoolSize = 1

// options is the runtime configuration derived from the command line.
type options struct {
	configFile      string
	wwwRoot         string
	randomizeSpawns bool
	stateFile       string
	address         string
	port            int

	// tickPeriod drives the wall-clock ticker; zero with testMode set
	// means time advances only through the tick endpoint.
	tickPeriod time.Duration
	testMode   bool

	// savePeriod is the interval between automatic checkpoints. Always
	// zero when no state file is configured.
	savePeriod time.Duration
}

// optionsFromCommand maps parsed flags onto runtime options. The
// --tick-period flag distinguishes "absent" from zero: absent puts the
// whole world on the manual test clock.
func optionsFromCommand(cmd *cli.Command) options {
	opts := options{
		configFile:      cmd.String("config-file"),
		wwwRoot:         cmd.String("www-root"),
		randomizeSpawns: cmd.Bool("randomize-spawn-points"),
		stateFile:       cmd.String("state-file"),
		address:         cmd.String("address"),
		port:            cmd.Int("port"),
	}

	if cmd.IsSet("tick-period") {
		opts.tickPeriod = time.Duration(cmd.Int64("tick-period")) * time.Millisecond
	} else {
		opts.testMode = true
	}

	// A save period without a state file has nowhere to write.
	if opts.stateFile != "" && cmd.IsSet("save-state-period") {
		opts.savePeriod = time.Duration(cmd.Int64("save-state-period")) * time.Millisecond
	}

	return opts
}

// newRootCommand builds the CLI. The action is injected so tests can
// exercise flag parsing without starting servers.
func newRootCommand(action func(context.Context, *cli.Command) error) *cli.Command {
	return &cli.Command{
		Name:      "gameserver",
		Usage:     AppName,
		Version:   Version,
		ArgsUsage: "[server|stdio-mcp]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config-file",
				Aliases:  []string{"c"},
				Usage:    "path to the map catalog JSON `FILE`",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "www-root",
				Aliases:  []string{"w"},
				Usage:    "`DIR` with the static frontend files",
				Required: true,
			},
			&cli.Int64Flag{
				Name:    "tick-period",
				Aliases: []string{"t"},
				Usage:   "game tick period in `MS`; when omitted the clock only advances through the tick endpoint",
			},
			&cli.BoolFlag{
				Name:  "randomize-spawn-points",
				Usage: "spawn dogs at random road points instead of the first road vertex",
			},
			&cli.StringFlag{
				Name:  "state-file",
				Usage: "checkpoint `FILE`; loaded on startup, written on shutdown",
			},
			&cli.Int64Flag{
				Name:  "save-state-period",
				Usage: "automatic checkpoint period in `MS` of game time; ignored without --state-file",
			},
			&cli.StringFlag{
				Name:  "address",
				Usage: "listen address",
				Value: "0.0.0.0",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "listen port",
				Value: 8080,
			},
		},
		Action: action,
	}
}

func main() {
	cmd := newRootCommand(run)
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches on the optional positional mode argument.
func run(ctx context.Context, cmd *cli.Command) error {
	mode := cmd.Args().First()
	switch mode {
	case "", "server", "http", "stdio-mcp", "mcp-stdio", "mcp":
	default:
		return fmt.Errorf("unknown mode %q: want server (default) or stdio-mcp", mode)
	}

	opts := optionsFromCommand(cmd)

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	// Pull in a .env when one sits next to the binary; the environment
	// itself wins over the file.
	godotenv.Load()

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		return runStdioMCP(ctx, opts, log)
	default:
		return runServer(ctx, opts, log)
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// app bundles the wired game core shared by both run modes.
type app struct {
	svc   *service.Service
	store *records.Store
}

// buildApp loads the catalog and the checkpoint, opens the leaderboard
// database and assembles the game service.
func buildApp(ctx context.Context, opts options, log *zap.Logger) (*app, error) {
	dbURL := os.Getenv("GAME_DB_URL")
	if dbURL == "" {
		return nil, errors.New("GAME_DB_URL environment variable is not set")
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load map catalog: %w", err)
	}

	counters := model.NewCounters()

	mode := model.ModeNormal
	if opts.testMode {
		mode = model.ModeTest
	}
	game, err := model.NewGame(cfg, counters, model.Settings{
		Mode:            mode,
		RandomizeSpawns: opts.randomizeSpawns,
		SaveInterval:    opts.savePeriod,
	}, model.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to build game world: %w", err)
	}

	players := player.NewRegistry(counters, player.NewTokens())

	store, err := records.Open(dbURL, dbPoolSize)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize leaderboard schema: %w", err)
	}
	game.SetRecordSink(store)
	game.SetRetireObserver(players.RemoveByDogID)

	var saver func() error
	if opts.stateFile != "" {
		state := persist.NewStore(opts.stateFile, log)
		if err := state.Load(game, players); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to load state file: %w", err)
		}
		saver = func() error { return state.Save(game, players) }
		if opts.savePeriod > 0 {
			game.SetCheckpoint(saver)
		}
	}

	svc := service.New(service.Deps{
		Game:       game,
		Players:    players,
		Records:    store,
		Saver:      saver,
		TickPeriod: opts.tickPeriod,
		Logger:     log,
	})

	return &app{svc: svc, store: store}, nil
}

// runServer starts the HTTP server and blocks until a shutdown signal.
func runServer(ctx context.Context, opts options, log *zap.Logger) error {
	a, err := buildApp(ctx, opts, log)
	if err != nil {
		return err
	}
	defer a.store.Close()

	hub := websocket.NewHub(log)
	go hub.Run()
	a.svc.SetBroadcaster(hub.Broadcast)

	mcpClient := mcp.NewClient("http://" + net.JoinHostPort(loopbackHost(opts.address), strconv.Itoa(opts.port)))

	server := api.NewServer(api.Config{
		Service: a.svc,
		Hub:     hub,
		MCP:     mcpClient,
		WWWRoot: opts.wwwRoot,
		Logger:  log,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(opts.address, strconv.Itoa(opts.port)),
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started",
			zap.String("address", opts.address),
			zap.Int("port", opts.port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown incomplete", zap.Error(err))
	}
	if err := a.svc.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop game service", zap.Error(err))
		return err
	}
	hub.Shutdown()

	log.Info("server exited",
		zap.String("address", opts.address),
		zap.Int("port", opts.port))
	return nil
}

// runStdioMCP serves the MCP tools over stdin/stdout. When a game server
// already answers on the configured port it becomes the backend, so all
// MCP sessions share one world; otherwise an internal server is started
// on a random loopback port.
func runStdioMCP(ctx context.Context, opts options, log *zap.Logger) error {
	external := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(opts.port))

	probe := &http.Client{Timeout: 2 * time.Second}
	resp, err := probe.Get(external + "/api/v1/maps")
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode < 500 {
			log.Info("using external game server", zap.String("url", external))
			return mcp.NewClient(external).Run()
		}
	}

	a, err := buildApp(ctx, opts, log)
	if err != nil {
		return err
	}
	defer a.store.Close()

	hub := websocket.NewHub(log)
	go hub.Run()
	a.svc.SetBroadcaster(hub.Broadcast)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to bind internal server: %w", err)
	}

	server := api.NewServer(api.Config{
		Service: a.svc,
		Hub:     hub,
		WWWRoot: opts.wwwRoot,
		Logger:  log,
	})
	httpServer := &http.Server{
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("internal http server failed", zap.Error(err))
		}
	}()

	baseURL := fmt.Sprintf("http://%s", listener.Addr())
	log.Info("serving MCP over stdio", zap.String("backend", baseURL))

	runErr := mcp.NewClient(baseURL).Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown incomplete", zap.Error(err))
	}
	if err := a.svc.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop game service", zap.Error(err))
	}
	hub.Shutdown()

	return runErr
}

// loopbackHost rewrites wildcard listen addresses into a host the
// in-process MCP proxy can actually dial.
func loopbackHost(address string) string {
	switch address {
	case "", "0.0.0.0", "::":
		return "127.0.0.1"
	}
	return address
}
