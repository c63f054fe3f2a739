package uringrt

// taskEntry is the worker's record of one spawned task. Its goroutine is
// started at spawn time but blocks immediately on resume, so the user's
// function does not begin running until the worker's tick loop actually
// schedules it — the Go equivalent of a lazily-polled Future.
type taskEntry struct {
	key    taskKey
	resume chan struct{}
	parked chan parkMsg
	start  func()
}

// parkMsg is sent on taskEntry.parked each time the task's goroutine
// yields control back to the worker: either because it suspended at an
// Await point (finished == false) or because its function returned
// (finished == true).
type parkMsg struct {
	finished bool
}

// JoinHandle is a suspendable handle to a spawned task's eventual result.
// Awaiting it from within another task suspends that task using the
// same rendezvous protocol as PendingOp, without needing a
// mutex: resolve (called from the producer task's own goroutine, right
// before it reports "finished" to the worker) and Await (called from the
// consumer task's goroutine) can never execute concurrently, because the
// worker only ever lets one task goroutine run at a time system-wide —
// see runtime.go's tick loop.
type JoinHandle[T any] struct {
	rt      *Runtime
	ready   bool
	val     T
	waiter  taskKey
	hasWait bool
}

// Await blocks the calling task until the spawned task completes,
// returning its result. Dropping a JoinHandle (simply not calling Await)
// detaches the task: it runs to completion regardless.
func (h *JoinHandle[T]) Await() T {
	for {
		if h.ready {
			return h.val
		}
		tk, ok := currentTaskKey()
		if !ok {
			panic(ErrNoRuntimeContext)
		}
		h.waiter = tk
		h.hasWait = true
		parkCurrentTask()
	}
}

func (h *JoinHandle[T]) resolve(v T) {
	h.ready = true
	h.val = v
	if h.hasWait {
		h.rt.scheduler.wake(h.waiter)
	}
}

// newTaskEntry wires a task's goroutine: it waits for its first resume
// (by which point the worker has already inserted it into the task table
// and assigned te.key, via the happens-before edge the resume channel
// send establishes), runs fn, resolves the join handle, and reports
// finished.
func newTaskEntry[T any](rt *Runtime, fn func() T) (*taskEntry, *JoinHandle[T]) {
	te := &taskEntry{
		resume: make(chan struct{}),
		parked: make(chan parkMsg),
	}
	jh := &JoinHandle[T]{rt: rt}

	te.start = func() {
		<-te.resume
		release := installAmbient(rt, te)
		defer release()

		val := runTaskBody(rt, te.key, fn)

		jh.resolve(val)
		rt.metrics.incTasksCompleted()
		te.parked <- parkMsg{finished: true}
	}

	go te.start()
	return te, jh
}

// runTaskBody executes fn, logging and re-panicking on a recovered
// panic. The re-panic happens on the task's own goroutine, where nothing
// recovers it, so a task panic terminates the whole process: Run does not
// return, and its deferred teardown does not run.
func runTaskBody[T any](rt *Runtime, key taskKey, fn func() T) (result T) {
	defer func() {
		if r := recover(); r != nil {
			logTaskPanic(rt.logger, key, r)
			panic(r)
		}
	}()
	return fn()
}

// SpawnOn spawns fn as a new task on rt, returning its join handle.
// Unlike the ambient Spawn, this works even before Run has been called.
func SpawnOn[T any](rt *Runtime, fn func() T) *JoinHandle[T] {
	te, jh := newTaskEntry(rt, fn)
	rt.metrics.incTasksSpawned()
	rt.inbox <- te
	return jh
}

// Spawn is the ambient free function: usable from inside any running
// task (or, degenerately, the worker goroutine itself) to spawn a new
// task without an explicit Runtime reference. Calling it outside a
// running Runtime is a precondition violation.
func Spawn[T any](fn func() T) *JoinHandle[T] {
	rt, ok := currentRuntime()
	if !ok {
		panic(ErrNoRuntimeContext)
	}
	return SpawnOn(rt, fn)
}

// Spawn adds fn as a task before Run, or from any other goroutine while
// Run is executing. It returns a join handle with a fixed result type —
// Go methods cannot be generic, so a typed result from a pre-Run spawn
// needs the free SpawnOn function instead.
func (rt *Runtime) Spawn(fn func()) *JoinHandle[struct{}] {
	return SpawnOn(rt, func() struct{} {
		fn()
		return struct{}{}
	})
}
