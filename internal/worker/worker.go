// Package worker implements the subprocess supervisor for the
// externally spawned vision, speech-in, speech-out, and language-model
// workers (spec.md §4.5), grounded in
// _examples/original_source/supervisor/core/worker_manager.py.
// Personality runs in-process (internal/personality) and is never
// registered here.
package worker

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/0mdb/robot-buddy-supervisor/internal/audio"
	"github.com/0mdb/robot-buddy-supervisor/internal/envelope"
	"golang.org/x/time/rate"
)

const (
	defaultHeartbeatTimeout = 5 * time.Second
	defaultMaxRestarts      = 5
	defaultBackoffMin       = 1 * time.Second
	defaultBackoffMax       = 5 * time.Second
	shutdownGrace           = 3 * time.Second
)

// Spawner starts a worker's process given its module identifier,
// returning piped stdin/stdout/stderr. Production wiring uses
// exec.Command; tests inject a fake.
type Spawner func(ctx context.Context, module string) (*exec.Cmd, io.WriteCloser, io.ReadCloser, io.ReadCloser, error)

// ExecSpawner runs `python3 -m <module>` with piped stdio, the teacher's
// go.mod being server-only, so this is the one OS-process concern this
// module introduces beyond the teacher's own process model.
func ExecSpawner(ctx context.Context, module string) (*exec.Cmd, io.WriteCloser, io.ReadCloser, io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, "python3", "-m", module)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, nil, err
	}
	return cmd, stdin, stdout, stderr, nil
}

// Snapshot is the public, copy-safe view of one worker's status.
type Snapshot struct {
	Name            string
	Module          string
	Alive           bool
	Starting        bool
	RestartCount    int
	LastHeartbeatNS int64
	LastSeq         uint64
	LastHealth      map[string]any
	Dead            bool // true once max_restarts has been exceeded
}

type workerInfo struct {
	name   string
	module string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	cancel context.CancelFunc

	mu              sync.Mutex
	alive           bool
	starting        bool
	dead            bool
	restartCount    int
	lastHeartbeatNS int64
	lastSeq         uint64
	lastHealth      map[string]any
	limiter         *rate.Limiter
}

// Manager is the subprocess supervisor: spawn, stdio pumps, heartbeat
// monitor, restart policy (spec.md §4.5).
type Manager struct {
	spawn  Spawner
	logger *slog.Logger
	nowFn  func() int64 // ns; defaults to time.Now().UnixNano() (wall clock)

	heartbeatTimeout time.Duration
	maxRestarts      int
	backoffMin       time.Duration
	backoffMax       time.Duration

	onEnvelope func(envelope.Envelope)

	mu      sync.Mutex
	workers map[string]*workerInfo
}

// New returns a Manager. spawn defaults to ExecSpawner when nil.
func New(spawn Spawner, logger *slog.Logger) *Manager {
	if spawn == nil {
		spawn = ExecSpawner
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		spawn:            spawn,
		logger:           logger,
		nowFn:            func() int64 { return time.Now().UnixNano() },
		heartbeatTimeout: defaultHeartbeatTimeout,
		maxRestarts:      defaultMaxRestarts,
		backoffMin:       defaultBackoffMin,
		backoffMax:       defaultBackoffMax,
		workers:          make(map[string]*workerInfo),
	}
}

// OnEnvelope registers the callback invoked for every parsed NDJSON
// envelope read from a worker's stdout (the event router).
func (m *Manager) OnEnvelope(fn func(envelope.Envelope)) { m.onEnvelope = fn }

// Register adds a worker by name/module; it is not yet started.
func (m *Manager) Register(name, module string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[name] = &workerInfo{
		name:    name,
		module:  module,
		limiter: rate.NewLimiter(rate.Every(m.backoffMin), 1),
	}
}

// Start launches every registered worker and begins its stdio pumps and
// the shared heartbeat monitor. It returns once all workers have been
// launched; monitoring continues in background goroutines until ctx is
// canceled.
func (m *Manager) Start(ctx context.Context) {
	audio.NewPaths(os.Getpid()).UnlinkStale()

	m.mu.Lock()
	names := make([]string, 0, len(m.workers))
	for name := range m.workers {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.launch(ctx, name)
	}
	go m.heartbeatMonitor(ctx)
}

func (m *Manager) launch(ctx context.Context, name string) {
	m.mu.Lock()
	w, ok := m.workers[name]
	m.mu.Unlock()
	if !ok {
		return
	}

	w.mu.Lock()
	w.starting = true
	w.mu.Unlock()

	workerCtx, cancel := context.WithCancel(ctx)
	cmd, stdin, stdout, stderr, err := m.spawn(workerCtx, w.module)
	if err != nil {
		m.logger.Warn("worker spawn failed", "worker", name, "error", err)
		cancel()
		w.mu.Lock()
		w.starting = false
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.cmd = cmd
	w.stdin = stdin
	w.cancel = cancel
	w.alive = true
	w.starting = false
	w.lastHeartbeatNS = m.nowFn()
	w.mu.Unlock()

	go m.readLoop(name, stdout)
	go m.stderrLoop(name, stderr)
	go m.waitLoop(ctx, name, cmd)

	m.logger.Info("worker started", "worker", name, "module", w.module)
}

func (m *Manager) readLoop(name string, stdout io.ReadCloser) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		env, err := envelope.FromLine(line)
		if err != nil {
			m.logger.Debug("worker sent malformed envelope", "worker", name, "error", err)
			continue
		}
		m.touchHeartbeat(name, env)
		if m.onEnvelope != nil {
			m.onEnvelope(env)
		}
	}
}

func (m *Manager) touchHeartbeat(name string, env envelope.Envelope) {
	m.mu.Lock()
	w, ok := m.workers[name]
	m.mu.Unlock()
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeq = env.Seq
	if hasSuffix(env.Type, ".status.health") || hasSuffix(env.Type, ".lifecycle.started") {
		w.lastHeartbeatNS = m.nowFn()
		if alive, ok := env.Payload["alive"].(bool); ok {
			w.alive = alive
		}
		w.lastHealth = env.Payload
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func (m *Manager) waitLoop(ctx context.Context, name string, cmd *exec.Cmd) {
	_ = cmd.Wait()
	if ctx.Err() != nil {
		return
	}
	m.mu.Lock()
	w, ok := m.workers[name]
	m.mu.Unlock()
	if !ok {
		return
	}
	w.mu.Lock()
	w.alive = false
	w.mu.Unlock()
	m.logger.Warn("worker process exited", "worker", name)
	m.restart(ctx, name)
}

// SendTo encodes an envelope and writes it to the worker's stdin.
// Returns false on a broken pipe or unknown worker.
func (m *Manager) SendTo(name, typ string, payload map[string]any) bool {
	m.mu.Lock()
	w, ok := m.workers[name]
	m.mu.Unlock()
	if !ok {
		return false
	}
	w.mu.Lock()
	stdin := w.stdin
	alive := w.alive
	seq := w.lastSeq + 1
	w.mu.Unlock()
	if !alive || stdin == nil {
		return false
	}

	env := envelope.Envelope{
		Version: envelope.SchemaVersion,
		Type:    typ,
		Src:     "core",
		Seq:     seq,
		TNS:     uint64(m.nowFn()),
		Payload: payload,
	}
	line, err := env.ToLine()
	if err != nil {
		return false
	}
	_, err = stdin.Write(line)
	return err == nil
}

// WorkerAlive reports whether the named worker is currently alive.
func (m *Manager) WorkerAlive(name string) bool {
	m.mu.Lock()
	w, ok := m.workers[name]
	m.mu.Unlock()
	if !ok {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alive
}

// WorkerSnapshot returns a copy-safe status map for telemetry.
func (m *Manager) WorkerSnapshot() map[string]Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Snapshot, len(m.workers))
	for name, w := range m.workers {
		w.mu.Lock()
		out[name] = Snapshot{
			Name: name, Module: w.module, Alive: w.alive, Starting: w.starting,
			RestartCount: w.restartCount, LastHeartbeatNS: w.lastHeartbeatNS,
			LastSeq: w.lastSeq, LastHealth: w.lastHealth, Dead: w.dead,
		}
		w.mu.Unlock()
	}
	return out
}

// Stop sends a shutdown envelope to every worker, waits up to
// shutdownGrace for natural exit, then SIGKILLs survivors and unlinks
// audio sockets (spec.md §4.5).
func (m *Manager) Stop() {
	m.mu.Lock()
	names := make([]string, 0, len(m.workers))
	for name := range m.workers {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.SendTo(name, "system.lifecycle.shutdown", nil)
	}

	deadline := time.After(shutdownGrace)
	for _, name := range names {
		m.mu.Lock()
		w := m.workers[name]
		m.mu.Unlock()
		if w == nil {
			continue
		}
		w.mu.Lock()
		cmd := w.cmd
		w.mu.Unlock()
		if cmd == nil || cmd.Process == nil {
			continue
		}
		select {
		case <-deadline:
			_ = cmd.Process.Kill()
		default:
		}
	}
	for _, name := range names {
		m.mu.Lock()
		w := m.workers[name]
		m.mu.Unlock()
		if w != nil && w.cancel != nil {
			w.cancel()
		}
	}
	audio.NewPaths(os.Getpid()).UnlinkStale()
}
