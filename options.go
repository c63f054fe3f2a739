package uringrt

import "github.com/joeycumines/logiface"

// runtimeOptions holds configuration resolved from RuntimeOption values.
type runtimeOptions struct {
	queueEntries        uint32
	spawnInboxCapacity  int
	submitDrainInterval uint64
	inboxDrainLimit     int
	logger              *logiface.Logger[logiface.Event]
	metricsEnabled      bool
}

// RuntimeOption configures a Runtime at construction.
type RuntimeOption interface {
	applyRuntime(*runtimeOptions)
}

type runtimeOptionFunc func(*runtimeOptions)

func (f runtimeOptionFunc) applyRuntime(o *runtimeOptions) { f(o) }

// WithQueueEntries sets the kernel ring's SQ/CQ depth. Default 256.
func WithQueueEntries(n uint32) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.queueEntries = n })
}

// WithSpawnInboxCapacity sets the buffer size of the cross-goroutine
// spawn inbox channel. Default 1024.
func WithSpawnInboxCapacity(n int) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.spawnInboxCapacity = n })
}

// WithSubmitDrainInterval sets how many consecutive Poll tick outcomes
// elapse between non-blocking driver.SubmitAndDrain calls, keeping a
// hot, never-yielding task from starving submission and completion
// draining. Default 128, matching the original worker's cadence.
func WithSubmitDrainInterval(n uint64) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.submitDrainInterval = n })
}

// WithInboxDrainLimit bounds how many spawn-inbox entries are moved into
// the task table in a single tick, guaranteeing forward progress on
// already-runnable tasks. Default 64.
func WithInboxDrainLimit(n int) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.inboxDrainLimit = n })
}

// WithLogger overrides the runtime's structured logger. Pass a nil
// *logiface.Logger[logiface.Event] to disable logging entirely (logiface
// loggers are nil-safe).
func WithLogger(l *logiface.Logger[logiface.Event]) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.logger = l })
}

// WithMetrics enables the runtime's counters (see Metrics).
func WithMetrics(enabled bool) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.metricsEnabled = enabled })
}

func resolveRuntimeOptions(opts []RuntimeOption) *runtimeOptions {
	cfg := &runtimeOptions{
		queueEntries:        256,
		spawnInboxCapacity:  1024,
		submitDrainInterval: 128,
		inboxDrainLimit:     64,
		logger:              newDefaultLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyRuntime(cfg)
	}
	return cfg
}
