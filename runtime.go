package uringrt

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/joeycumines/go-uringrt/internal/ring"
	"github.com/joeycumines/go-uringrt/internal/slab"
	"github.com/joeycumines/logiface"
)

// tickResult classifies the outcome of one worker tick.
type tickResult uint8

const (
	tickPoll tickResult = iota
	tickQueueEmpty
	tickTasksEmpty
)

// Runtime is the public façade: one kernel ring, one Scheduler, one task
// table, driven by a single worker goroutine pinned to its own OS thread
// while Run executes.
//
// Scheduler, Driver, and the task table are not protected by a mutex.
// This is deliberate, not an oversight: the worker's tick loop only ever
// resumes one task goroutine at a time and blocks on that goroutine's
// parked/finished signal before doing anything else (see tick below), so
// every touch of this shared state happens strictly serialized through
// the resume/parked channel handoff — those channel operations are
// themselves the synchronization the Go memory model requires. The one
// genuinely concurrent surface is inbox, an ordinary buffered channel,
// because Runtime.Spawn/SpawnOn may be called from arbitrary goroutines.
type Runtime struct {
	opts      *runtimeOptions
	scheduler *scheduler
	driver    *Driver
	tasks     *slab.Slab[*taskEntry]
	inbox     chan *taskEntry
	logger    *logiface.Logger[logiface.Event]
	metrics   *Metrics
	closed    atomic.Bool
}

// New constructs a Runtime with a kernel ring sized per WithQueueEntries
// (default 256).
func New(opts ...RuntimeOption) (*Runtime, error) {
	cfg := resolveRuntimeOptions(opts)

	r, err := ring.New(cfg.queueEntries)
	if err != nil {
		return nil, &RingSetupError{Cause: err}
	}

	rt := &Runtime{
		opts:      cfg,
		scheduler: newScheduler(),
		tasks:     slab.New[*taskEntry](64),
		inbox:     make(chan *taskEntry, cfg.spawnInboxCapacity),
		logger:    cfg.logger,
		metrics:   newMetrics(cfg.metricsEnabled),
	}
	rt.driver = newDriver(r, rt, cfg.logger, rt.metrics)
	return rt, nil
}

// Close tears down the runtime's kernel ring. It is idempotent and safe
// to call from any goroutine; Run calls it itself on the way out, so
// callers that always call Run don't need to call Close separately. Any
// SubmitOp/PrepareBatch call that observes the runtime closed — whether
// Close raced it or it followed Run's own teardown — returns
// ErrRuntimeClosed instead of touching the (by then invalid) ring.
func (rt *Runtime) Close() error {
	if rt.closed.Swap(true) {
		return nil
	}
	return rt.driver.ring.Close()
}

// drainInbox moves up to opts.inboxDrainLimit freshly spawned tasks from
// the cross-goroutine inbox into the task table, spawning each into the
// scheduler.
func (rt *Runtime) drainInbox() {
	limit := rt.opts.inboxDrainLimit
	for i := 0; i < limit; i++ {
		select {
		case te := <-rt.inbox:
			key := rt.tasks.Insert(te)
			te.key = key
			rt.scheduler.spawn(key)
			logSpawn(rt.logger, key)
		default:
			return
		}
	}
}

// tick runs one iteration of the worker loop: drain newly spawned tasks,
// resume the next runnable one, and wait for it to yield or finish.
func (rt *Runtime) tick() tickResult {
	rt.drainInbox()

	key, ok := rt.scheduler.fetchNext()
	if !ok {
		if rt.tasks.Len() == 0 {
			return tickTasksEmpty
		}
		return tickQueueEmpty
	}

	tePtr, ok := rt.tasks.Get(key)
	if !ok {
		panicPrecondition(fmt.Errorf("scheduler returned task key %d not present in task table", key))
	}
	te := *tePtr

	te.resume <- struct{}{}
	msg := <-te.parked
	if msg.finished {
		rt.tasks.Remove(key)
	}
	return tickPoll
}

// Run installs the ambient context, pins the calling goroutine to its OS
// thread, and drives the worker loop until every task has completed.
func (rt *Runtime) Run() (err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	release := installAmbient(rt, nil)
	defer release()
	defer func() {
		closeErr := rt.Close()
		if err == nil {
			err = closeErr
		}
	}()

	var polled uint64
	for {
		if polled == rt.opts.submitDrainInterval {
			polled = 0
			if dErr := rt.driver.SubmitAndDrain(); dErr != nil {
				return dErr
			}
		}

		switch rt.tick() {
		case tickPoll:
			polled++
		case tickQueueEmpty:
			rt.metrics.incParkCount()
			logPark(rt.logger)
			if pErr := rt.driver.Park(); pErr != nil {
				return pErr
			}
			polled = 0
		case tickTasksEmpty:
			return nil
		}
	}
}
