package worker

import (
	"context"
	"time"
)

// heartbeatMonitor runs every second, killing and restarting workers
// whose heartbeat has gone stale (spec.md §4.5).
func (m *Manager) heartbeatMonitor(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkHeartbeats(ctx)
		}
	}
}

func (m *Manager) checkHeartbeats(ctx context.Context) {
	now := m.nowFn()

	m.mu.Lock()
	names := make([]string, 0, len(m.workers))
	for name := range m.workers {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.mu.Lock()
		w := m.workers[name]
		m.mu.Unlock()
		if w == nil {
			continue
		}

		w.mu.Lock()
		stale := w.alive && !w.starting && w.lastHeartbeatNS != 0 &&
			time.Duration(now-w.lastHeartbeatNS) > m.heartbeatTimeout
		cmd := w.cmd
		dead := w.dead
		w.mu.Unlock()
		if dead || !stale {
			continue
		}

		m.logger.Warn("worker heartbeat stale, killing", "worker", name, "timeout", m.heartbeatTimeout)
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		m.restart(ctx, name)
	}
}

// restart applies the linear-growing backoff policy: wait
// min(backoffMax, backoffMin * restartCount) then relaunch, unless
// maxRestarts has been exceeded, in which case the worker is left dead.
func (m *Manager) restart(ctx context.Context, name string) {
	if ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	w := m.workers[name]
	m.mu.Unlock()
	if w == nil {
		return
	}

	w.mu.Lock()
	if w.dead {
		w.mu.Unlock()
		return
	}
	w.restartCount++
	count := w.restartCount
	w.mu.Unlock()

	if count > m.maxRestarts {
		w.mu.Lock()
		w.dead = true
		w.alive = false
		w.mu.Unlock()
		m.logger.Error("worker exceeded max restarts, leaving dead", "worker", name, "max_restarts", m.maxRestarts)
		return
	}

	backoff := m.backoffMin * time.Duration(count)
	if backoff > m.backoffMax {
		backoff = m.backoffMax
	}

	go func() {
		// The per-worker limiter enforces a floor of one restart per
		// backoffMin even if the linear schedule below is skipped by a
		// future caller; the explicit sleep applies the linear-growing
		// portion of the policy on top of that floor.
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		m.logger.Info("restarting worker", "worker", name, "attempt", count, "backoff", backoff)
		m.launch(ctx, name)
	}()
}
