// Package fence wraps the device fence lifecycle: place, poll until
// signaled, destroy.
package fence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/quadstream/gpucore"
)

// DefaultPollTimeout is the timeout of a single ClientWait attempt.
const DefaultPollTimeout = time.Millisecond

// Gate places and waits on fences of one device.
//
// Waiting is a bounded-retry loop: every attempt waits at most the poll
// timeout, and attempts repeat until the device reports one of the two
// completion statuses. Some drivers never report completion from a single
// long wait, so a long timeout is never used.
type Gate struct {
	dev     gpucore.FenceDevice
	timeout time.Duration
	logger  func() *slog.Logger

	polls    uint64
	failures uint64
}

// New creates a gate. A non-positive timeout selects DefaultPollTimeout.
// logger is called at log time so the caller can swap loggers; nil disables
// logging.
func New(dev gpucore.FenceDevice, timeout time.Duration, logger func() *slog.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	if logger == nil {
		logger = func() *slog.Logger { return slog.New(slog.DiscardHandler) }
	}
	return &Gate{dev: dev, timeout: timeout, logger: logger}
}

// Timeout returns the per-attempt poll timeout.
func (g *Gate) Timeout() time.Duration { return g.timeout }

// Place creates a fence covering all work submitted so far.
func (g *Gate) Place() (gpucore.Fence, error) {
	f, err := g.dev.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("create fence: device returned nil fence")
	}
	return f, nil
}

// Wait blocks until f signals and destroys it. It returns the number of
// poll attempts, zero when f is nil.
//
// There is no cancellation: once started, Wait runs until the fence
// signals. Statuses other than the two completion codes are retried.
func (g *Gate) Wait(f gpucore.Fence) int {
	if f == nil {
		return 0
	}
	defer g.dev.DestroyFence(f)

	for attempt := 1; ; attempt++ {
		status := g.dev.ClientWait(f, g.timeout)
		g.polls++
		if status.Signaled() {
			return attempt
		}
		if status != gpucore.FenceTimeoutExpired {
			g.failures++
			g.logger().Warn("fence: unexpected wait status, retrying",
				"status", status.String(), "attempt", attempt)
		}
	}
}

// Destroy releases f without waiting. Nil is ignored.
func (g *Gate) Destroy(f gpucore.Fence) {
	if f == nil {
		return
	}
	g.dev.DestroyFence(f)
}

// Polls returns the total number of ClientWait calls made by the gate.
func (g *Gate) Polls() uint64 { return g.polls }

// Failures returns the number of polls that returned a status other than
// completion or timeout.
func (g *Gate) Failures() uint64 { return g.failures }
