//go:build !linux

package scheduler

import "log/slog"

// elevatePriority is a no-op on platforms where the priority syscalls are
// not wired up.
func elevatePriority(logger *slog.Logger) {
	logger.Debug("process priority elevation is not supported on this platform")
}
