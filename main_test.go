package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName == "" {
		t.Error("AppName should not be empty")
	}
}

// parse runs the CLI against args and captures the mapped options
// without starting any servers.
func parse(t *testing.T, args ...string) options {
	t.Helper()

	var got options
	cmd := newRootCommand(func(ctx context.Context, cmd *cli.Command) error {
		got = optionsFromCommand(cmd)
		return nil
	})

	argv := append([]string{"gameserver"}, args...)
	if err := cmd.Run(context.Background(), argv); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return got
}

func TestOptions_Defaults(t *testing.T) {
	opts := parse(t, "--config-file", "maps.json", "--www-root", "www")

	if opts.configFile != "maps.json" {
		t.Errorf("configFile = %q, want maps.json", opts.configFile)
	}
	if opts.wwwRoot != "www" {
		t.Errorf("wwwRoot = %q, want www", opts.wwwRoot)
	}
	if !opts.testMode {
		t.Error("expected test mode when --tick-period is omitted")
	}
	if opts.tickPeriod != 0 {
		t.Errorf("tickPeriod = %v, want 0", opts.tickPeriod)
	}
	if opts.address != "0.0.0.0" {
		t.Errorf("address = %q, want 0.0.0.0", opts.address)
	}
	if opts.port != 8080 {
		t.Errorf("port = %d, want 8080", opts.port)
	}
	if opts.randomizeSpawns {
		t.Error("expected spawn randomization off by default")
	}
	if opts.stateFile != "" || opts.savePeriod != 0 {
		t.Errorf("expected no state file by default, got %q / %v", opts.stateFile, opts.savePeriod)
	}
}

func TestOptions_AllFlags(t *testing.T) {
	opts := parse(t,
		"--config-file", "maps.json",
		"--www-root", "static",
		"--tick-period", "50",
		"--randomize-spawn-points",
		"--state-file", "state.dat",
		"--save-state-period", "5000",
		"--address", "127.0.0.1",
		"--port", "9090",
	)

	if opts.testMode {
		t.Error("expected normal mode with --tick-period set")
	}
	if opts.tickPeriod != 50*time.Millisecond {
		t.Errorf("tickPeriod = %v, want 50ms", opts.tickPeriod)
	}
	if !opts.randomizeSpawns {
		t.Error("expected spawn randomization on")
	}
	if opts.stateFile != "state.dat" {
		t.Errorf("stateFile = %q, want state.dat", opts.stateFile)
	}
	if opts.savePeriod != 5*time.Second {
		t.Errorf("savePeriod = %v, want 5s", opts.savePeriod)
	}
	if opts.address != "127.0.0.1" {
		t.Errorf("address = %q, want 127.0.0.1", opts.address)
	}
	if opts.port != 9090 {
		t.Errorf("port = %d, want 9090", opts.port)
	}
}

func TestOptions_ZeroTickPeriod(t *testing.T) {
	// An explicit zero is not the same as an absent flag: the server runs
	// on the wall clock with the ticker disabled, not on the test clock.
	opts := parse(t,
		"--config-file", "maps.json",
		"--www-root", "www",
		"--tick-period", "0",
	)

	if opts.testMode {
		t.Error("expected normal mode for explicit --tick-period 0")
	}
	if opts.tickPeriod != 0 {
		t.Errorf("tickPeriod = %v, want 0", opts.tickPeriod)
	}
}

func TestOptions_SavePeriodWithoutStateFile(t *testing.T) {
	opts := parse(t,
		"--config-file", "maps.json",
		"--www-root", "www",
		"--save-state-period", "5000",
	)

	if opts.savePeriod != 0 {
		t.Errorf("expected save period to be ignored without --state-file, got %v", opts.savePeriod)
	}
}

func TestRequiredFlags(t *testing.T) {
	ran := false
	cmd := newRootCommand(func(ctx context.Context, cmd *cli.Command) error {
		ran = true
		return nil
	})

	err := cmd.Run(context.Background(), []string{"gameserver", "--www-root", "www"})
	if err == nil {
		t.Error("expected error when --config-file is missing")
	}
	if ran {
		t.Error("action should not run without required flags")
	}
}

func TestRun_UnknownMode(t *testing.T) {
	cmd := newRootCommand(run)

	err := cmd.Run(context.Background(), []string{
		"gameserver", "--config-file", "maps.json", "--www-root", "www", "bogus",
	})
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Errorf("expected unknown mode error, got %v", err)
	}
}

func TestLoopbackHost(t *testing.T) {
	cases := map[string]string{
		"0.0.0.0":   "127.0.0.1",
		"::":        "127.0.0.1",
		"":          "127.0.0.1",
		"127.0.0.1": "127.0.0.1",
		"10.1.2.3":  "10.1.2.3",
	}
	for in, want := range cases {
		if got := loopbackHost(in); got != want {
			t.Errorf("loopbackHost(%q) = %q, want %q", in, got, want)
		}
	}
}
