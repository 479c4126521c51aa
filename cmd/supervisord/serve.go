package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/0mdb/robot-buddy-supervisor/internal/behavior"
	"github.com/0mdb/robot-buddy-supervisor/internal/clocksync"
	"github.com/0mdb/robot-buddy-supervisor/internal/conversation"
	"github.com/0mdb/robot-buddy-supervisor/internal/dashboard"
	"github.com/0mdb/robot-buddy-supervisor/internal/envelope"
	"github.com/0mdb/robot-buddy-supervisor/internal/eventbus"
	"github.com/0mdb/robot-buddy-supervisor/internal/frame"
	"github.com/0mdb/robot-buddy-supervisor/internal/guardrail"
	"github.com/0mdb/robot-buddy-supervisor/internal/mcu"
	"github.com/0mdb/robot-buddy-supervisor/internal/modefsm"
	"github.com/0mdb/robot-buddy-supervisor/internal/mood"
	"github.com/0mdb/robot-buddy-supervisor/internal/params"
	"github.com/0mdb/robot-buddy-supervisor/internal/personality"
	"github.com/0mdb/robot-buddy-supervisor/internal/plan"
	"github.com/0mdb/robot-buddy-supervisor/internal/router"
	"github.com/0mdb/robot-buddy-supervisor/internal/safety"
	"github.com/0mdb/robot-buddy-supervisor/internal/serialtransport"
	"github.com/0mdb/robot-buddy-supervisor/internal/skill"
	"github.com/0mdb/robot-buddy-supervisor/internal/speech"
	"github.com/0mdb/robot-buddy-supervisor/internal/state"
	"github.com/0mdb/robot-buddy-supervisor/internal/store"
	"github.com/0mdb/robot-buddy-supervisor/internal/tick"
	"github.com/0mdb/robot-buddy-supervisor/internal/worker"
)

// serveConfig holds every -flag the serve subcommand accepts, parsed
// with the standard flag package rather than cobra's own pflag
// registration, and merged into cobra's FlagSet via AddGoFlagSet.
type serveConfig struct {
	motionPort  string
	facePort    string
	dashAddr    string
	dbPath      string
	paramsPath  string
	tickHz      int
	telemetryHz int
	visionMod   string
	earMod      string
	ttsMod      string
	aiMod       string
	logLevel    string
	logFormat   string
}

func newServeCmd() *cobra.Command {
	cfg := &serveConfig{}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.StringVar(&cfg.motionPort, "motion-port", "/dev/ttyMotion", "motion MCU serial device")
	fs.StringVar(&cfg.facePort, "face-port", "/dev/ttyFace", "face MCU serial device")
	fs.StringVar(&cfg.dashAddr, "dashboard-addr", ":8090", "dashboard HTTP/WS listen address")
	fs.StringVar(&cfg.dbPath, "db-path", "./robot-buddy.db", "sqlite database path")
	fs.StringVar(&cfg.paramsPath, "params-path", "./robot-buddy-params.json", "persisted runtime-param JSON file")
	fs.IntVar(&cfg.tickHz, "tick-hz", 50, "core tick loop rate")
	fs.IntVar(&cfg.telemetryHz, "telemetry-hz", 20, "dashboard telemetry broadcast rate")
	fs.StringVar(&cfg.visionMod, "vision-module", "workers.vision", "vision worker's python module path")
	fs.StringVar(&cfg.earMod, "ear-module", "workers.ear", "speech-in worker's python module path")
	fs.StringVar(&cfg.ttsMod, "tts-module", "workers.tts", "speech-out worker's python module path")
	fs.StringVar(&cfg.aiMod, "ai-module", "workers.planner", "language-model planner worker's python module path")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "text|json")

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor's core tick loop and MCU/worker/dashboard I/O",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().AddGoFlagSet(fs)
	return cmd
}

func configureLogger(cfg *serveConfig) *slog.Logger {
	var level slog.Level
	switch cfg.logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// openSerialPort opens a character device by path for read/write.
// SetDTR/SetRTS are no-ops: no ioctl-capable serial driver exists
// anywhere in the retrieval pack (serialtransport's package doc notes
// this), so line-control signaling is left unimplemented until a real
// driver is wired in here.
type filePort struct {
	*os.File
}

func (filePort) SetDTR(bool) error { return nil }
func (filePort) SetRTS(bool) error { return nil }

func openSerialPort(path string) serialtransport.Opener {
	return func(ctx context.Context) (serialtransport.Port, error) {
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, err
		}
		return filePort{f}, nil
	}
}

func runServe(ctx context.Context, cfg *serveConfig) error {
	logger := configureLogger(cfg)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.dbPath), 0o755); err != nil && !os.IsExist(err) {
		logger.Warn("could not create db directory", "err", err)
	}
	st, err := store.Open(cfg.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := params.DefaultRegistry()
	pstore := params.NewStore(cfg.paramsPath, logger)
	pstore.Load(reg)
	reg.OnChange(pstore.OnChange)
	reg.OnChange(func(name string, value any) { st.RecordParamChangeNow(context.Background(), name, value) })

	world := state.NewWorld()
	robot := state.NewRobot()
	rng := newSeededRand()

	motionTransport := serialtransport.New(openSerialPort(cfg.motionPort), logger)
	faceTransport := serialtransport.New(openSerialPort(cfg.facePort), logger)

	motionClock := clocksync.New("motion", motionTransport, nil, logger)
	faceClock := clocksync.New("face", faceTransport, nil, logger)

	motionClient := mcu.NewMotionClient(motionTransport, frame.V1, logger)
	faceClient := mcu.NewFaceClient(faceTransport, frame.V1, logger)

	motionTransport.OnPacket(motionClient.HandleFrame)
	faceTransport.OnPacket(faceClient.HandleFrame)

	// Transport.OnPacket holds a single callback slot, so clock-sync
	// replies are dispatched through the mcu client's own type-keyed
	// subscriber table rather than a second transport hook.
	motionClient.On(frame.CommonTimeSyncResp, motionClock.HandlePacket)
	faceClient.On(frame.CommonTimeSyncResp, faceClock.HandlePacket)

	exec := skill.New(skill.DefaultConfig())
	scheduler := plan.NewScheduler()
	validator := plan.NewValidator()
	rtr := router.New(world, scheduler, validator, logger)

	workers := worker.New(nil, logger)
	workers.Register("vision", cfg.visionMod)
	workers.Register("ear", cfg.earMod)
	workers.Register("tts", cfg.ttsMod)
	workers.Register("ai", cfg.aiMod)

	deps := tick.Deps{
		World:  world,
		Robot:  robot,
		Params: reg,

		Bus:       eventbus.New(),
		ModeFSM:   modefsm.New(),
		Router:    rtr,
		Scheduler: scheduler,
		Behavior:  behavior.New(exec),

		Tracker: conversation.New(rng),
		Choreo:  conversation.NewChoreographer(),
		MoodSeq: mood.New(),
		Guard:   guardrail.New(),

		Personality: personality.New(0.5, 0.5, 0.5, 0.5, 0.5, rng),

		SpeechPolicy:  speech.NewPolicy(),
		SpeechArbiter: speech.NewArbiter(),

		Workers: workers,

		Face:         faceClient,
		Motion:       motionClient,
		MotionClock:  motionClock,
		FaceClock:    faceClock,
		MotionSender: motionTransport,
		FaceSender:   faceTransport,

		Store: st,

		VisionPolicy: safety.VisionPolicy{
			StaleMS:   reg.GetValue("vision.stale_ms", 500.0).(float64),
			ClearLow:  reg.GetValue("vision.clear_low", 0.3).(float64),
			ClearHigh: reg.GetValue("vision.clear_high", 0.6).(float64),
		},
		TickHz:      cfg.tickHz,
		TelemetryHz: cfg.telemetryHz,

		Logger: logger,
		Rand:   rng,
	}
	dash := dashboard.New(dashboard.Deps{
		World:   world,
		Robot:   robot,
		Params:  reg,
		Workers: workers,
		ModeFSM: deps.ModeFSM,
		SendEstop: func() {
			motionClient.SendEstop()
		},
	})
	deps.Dashboard = dash

	loop := tick.New(deps)

	workers.OnEnvelope(func(env envelope.Envelope) { loop.EnqueueEnvelope(env.Src, env) })
	motionClient.OnState(loop.OnMotionState)
	faceClient.OnStatus(loop.OnFaceStatus)
	faceClient.OnButton(loop.OnFaceButton)
	faceClient.OnTouch(loop.OnFaceTouch)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { motionTransport.Run(gctx); return nil })
	g.Go(func() error { faceTransport.Run(gctx); return nil })
	g.Go(func() error { motionClock.Run(gctx); return nil })
	g.Go(func() error { faceClock.Run(gctx); return nil })
	g.Go(func() error { workers.Start(gctx); <-gctx.Done(); workers.Stop(); return nil })
	g.Go(func() error { return dash.Run(gctx, cfg.dashAddr) })
	g.Go(func() error { return loop.Run(gctx) })

	logger.Info("supervisord starting",
		"motion_port", cfg.motionPort, "face_port", cfg.facePort,
		"dashboard_addr", cfg.dashAddr, "tick_hz", cfg.tickHz)

	err = g.Wait()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func newSeededRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
