package worker

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// workerStderrLevelRE extracts a leading severity word, grounded in
// _examples/original_source/supervisor/core/worker_manager.py's
// _WORKER_STDERR_LEVEL_RE.
var workerStderrLevelRE = regexp.MustCompile(`^(DEBUG|INFO|WARNING|ERROR|CRITICAL)\b(?:\s+|$)(.*)`)

// stderrLoop re-emits a worker's stderr lines at the matching slog
// level. Lines beginning with "Traceback" or leading whitespace
// (continuation lines) inherit the previous line's severity.
func (m *Manager) stderrLoop(name string, stderr io.ReadCloser) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	lastLevel := slog.LevelInfo
	for scanner.Scan() {
		line := scanner.Text()
		level, msg, matched := parseWorkerStderrLevel(line)
		if !matched {
			level = lastLevel
			msg = line
		} else {
			lastLevel = level
		}
		logWorkerStderrLine(m.logger, name, level, msg)
	}
}

// parseWorkerStderrLevel reports the severity and remainder of line, and
// whether a leading severity word was found.
func parseWorkerStderrLevel(line string) (slog.Level, string, bool) {
	if strings.HasPrefix(line, "Traceback") || (len(line) > 0 && (line[0] == ' ' || line[0] == '\t')) {
		return slog.LevelInfo, line, false
	}
	m := workerStderrLevelRE.FindStringSubmatch(line)
	if m == nil {
		return slog.LevelInfo, line, false
	}
	switch m[1] {
	case "DEBUG":
		return slog.LevelDebug, m[2], true
	case "INFO":
		return slog.LevelInfo, m[2], true
	case "WARNING":
		return slog.LevelWarn, m[2], true
	case "ERROR", "CRITICAL":
		return slog.LevelError, m[2], true
	default:
		return slog.LevelInfo, m[2], true
	}
}

func logWorkerStderrLine(logger *slog.Logger, name string, level slog.Level, msg string) {
	logger.Log(context.Background(), level, msg, "worker", name, "stream", "stderr")
}
