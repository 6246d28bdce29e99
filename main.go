package main

import (
	"flag"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/puddle/config"
	"github.com/pthm-cable/puddle/game"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics (cpu solver)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "Particle seed (0 = use config)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	stepsPerUpdate := flag.Int("steps-per-update", 1, "Simulation ticks per update call")
	backend := flag.String("backend", "", "Solver backend: cpu or gpu (empty = use config)")
	orientationMode := flag.String("orientation", "", "Orientation mode: manual or sensor (empty = use config)")
	replay := flag.String("replay", "", "Attitude replay CSV for sensor mode")
	streamAddr := flag.String("stream", "", "Serve velocity frames over websocket on this address")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}
	if *backend != "" {
		cfg.Solver.Backend = *backend
	}
	if *orientationMode != "" {
		cfg.Orientation.Mode = *orientationMode
	}
	if *replay != "" {
		cfg.Orientation.ReplayPath = *replay
	}
	if *headless && cfg.Solver.Backend == config.BackendGPU {
		slog.Warn("gpu solver needs a window, using cpu")
		cfg.Solver.Backend = config.BackendCPU
	}
	cfg.Recompute()

	opts := game.Options{
		Seed:           *seed,
		LogStats:       *logStats,
		OutputDir:      *outputDir,
		StreamAddr:     *streamAddr,
		Headless:       *headless,
		StepsPerUpdate: *stepsPerUpdate,
	}

	if *headless {
		// Headless mode - pure CPU simulation, no raylib needed
		g, err := game.NewGameWithOptions(cfg, opts)
		if err != nil {
			slog.Error("failed to start", "error", err)
			os.Exit(1)
		}
		defer g.Unload()

		slog.Info("starting headless simulation",
			"seed", *seed,
			"stats_window", cfg.Telemetry.StatsWindow,
			"max_ticks", *maxTicks,
			"steps_per_update", *stepsPerUpdate,
		)

		for {
			g.UpdateHeadless()

			if *maxTicks > 0 && int(g.Tick()) >= *maxTicks {
				slog.Info("max ticks reached", "tick", g.Tick())
				return
			}
		}
	}

	// Graphical mode
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "Puddle")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	g, err := game.NewGameWithOptions(cfg, opts)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return
	}
	defer g.Unload()

	for !rl.WindowShouldClose() {
		g.Update()
		g.Draw()

		if *maxTicks > 0 && int(g.Tick()) >= *maxTicks {
			break
		}
	}
}
