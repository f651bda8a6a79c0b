//go:build linux

package scheduler

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

// ioprio_set constants, see ioprio_set(2).
const (
	ioprioWhoProcess = 1
	ioprioClassBE    = 2
	ioprioClassShift = 13
)

// elevatePriority raises the CPU and IO scheduling priority of the whole
// process. Raising priority above the default needs CAP_SYS_NICE, so both
// calls are best-effort: a refusal is logged and the run proceeds at normal
// priority.
func elevatePriority(logger *slog.Logger) {
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, -10); err != nil {
		logger.Warn("cannot raise CPU priority", "error", err)
	}

	ioprio := uintptr(ioprioClassBE << ioprioClassShift)
	if _, _, errno := unix.Syscall(unix.SYS_IOPRIO_SET, ioprioWhoProcess, 0, ioprio); errno != 0 {
		logger.Warn("cannot raise IO priority", "error", errno)
	}
}
