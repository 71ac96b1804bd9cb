// Command demo runs the dashboard server against a scripted fake run instead
// of a simulator. It drives the state store the way the supervisor loop
// would: setters every tick, consume-once polls for the dashboard buttons.
// Useful for working on the dashboard page without Webots running.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robosim/sweeperboard/config"
	"github.com/robosim/sweeperboard/logging"
	"github.com/robosim/sweeperboard/server"
	"github.com/robosim/sweeperboard/state"
)

var (
	addr     = flag.String("addr", "127.0.0.1:8000", "listen address")
	runTime  = flag.Float64("run-time", 120, "fake run length in seconds")
	tickRate = flag.Duration("tick", 50*time.Millisecond, "fake supervisor tick")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	cfg.Addr = *addr
	cfg.UploadPath = "demo_upload/robot.py"

	log := logging.New(logging.Config{Level: "info", Format: "console"})

	store := state.New()
	store.SetSubleague("U19")
	store.SetTeamName("Demo Team")

	srv := server.New(cfg, store, server.NewFileSink(cfg.UploadPath), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	runLoop(ctx, store)
}

// runLoop is the stand-in for the supervisor: it polls the command flags once
// per tick and publishes scripted score data while a run is active.
func runLoop(ctx context.Context, store *state.Store) {
	ticker := time.NewTicker(*tickRate)
	defer ticker.Stop()

	var (
		running   bool
		elapsed   float64
		points    int
		scoreLog  []state.ScoreEntry
		relocates int
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if store.Consume(state.FlagNewCode) {
			fmt.Println("demo: new code uploaded")
		}

		if !running && store.Consume(state.FlagRun) {
			fmt.Println("demo: run started")
			running = true
			elapsed = 0
			points = 0
			relocates = 0
			scoreLog = nil
		}

		if !running {
			continue
		}

		if store.Consume(state.FlagRelocate) {
			relocates++
			scoreLog = append(scoreLog, state.ScoreEntry{Source: "relocate penalty", Points: -40})
			fmt.Println("demo: relocated")
		}
		ended := store.Consume(state.FlagEnd)

		elapsed += tickRate.Seconds()
		remaining := *runTime - elapsed

		// Cleaning progress follows a saturating curve; good enough to make
		// the gauges move.
		percent := 100 * (1 - math.Exp(-elapsed/(*runTime/3)))
		if percent > 100 {
			percent = 100
		}
		points = int(percent*40) - relocates*40

		roomPcts := map[int]float64{
			0: math.Min(100, percent*1.6),
			1: math.Min(100, percent*1.1),
			2: math.Min(100, percent*0.7),
			3: math.Min(100, percent*0.4),
		}
		currentRoom := int(elapsed/10) % 4
		store.SetRoomStats(roomPcts, currentRoom)

		battery := math.Max(0, 100-elapsed*(100 / *runTime))
		store.SetBattery(&battery)

		gameOver := ended || remaining <= 0
		log := append([]state.ScoreEntry{{Source: "cleaning", Points: int(percent * 40)}}, scoreLog...)
		store.UpdateScore(points, percent, remaining, gameOver, log)

		if gameOver {
			fmt.Println("demo: run over")
			running = false
		}
	}
}
