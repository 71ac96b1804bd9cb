// Command sweeperboard runs the local scoreboard dashboard for the cleaning
// robot simulation.
//
// It binds one loopback port that serves the dashboard page over HTTP and
// live scoreboard state over WebSocket. The simulation side links the state
// package and drives the same Store this server broadcasts from; run
// cmd/demo instead to see the dashboard move without a simulator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/robosim/sweeperboard/config"
	"github.com/robosim/sweeperboard/logging"
	"github.com/robosim/sweeperboard/server"
	"github.com/robosim/sweeperboard/state"
)

const (
	AppName = "sweeperboard"
	Version = "1.0.0"
)

func main() {
	// Load .env if present; local setups keep SWEEPERBOARD_* overrides there.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	cmd := &cli.Command{
		Name:    AppName,
		Usage:   "real-time scoreboard dashboard server for the sweeper simulation",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "listen address (loopback recommended)",
				Aliases: []string{"a"},
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a sweeperboard.yaml",
				Aliases: []string{"c"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("addr") {
		cfg.Addr = cmd.String("addr")
	}
	if cmd.Bool("debug") {
		cfg.Log.Level = "debug"
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Info().Str("version", Version).Msg("starting sweeperboard")

	store := state.New()
	sink := server.NewFileSink(cfg.UploadPath)
	srv := server.New(cfg, store, sink, log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("dashboard server failed: %w", err)
	}
	log.Info().Msg("sweeperboard stopped")
	return nil
}
