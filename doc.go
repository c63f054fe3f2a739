// Package uringrt is a single-threaded asynchronous runtime built on top
// of a Linux io_uring kernel completion ring.
//
// # Architecture
//
// A [Runtime] owns exactly one worker goroutine, one kernel ring, and a
// cooperative task scheduler. Application code is written as ordinary
// Go functions that call Await-ing operations ([PendingOp.Await],
// [JoinHandle.Await]) to suspend; the worker never runs more than one
// task at a time, and no task is ever preempted mid-step.
//
// # Platform support
//
// Linux/amd64 only: the kernel ring wrapper in internal/ring talks
// directly to io_uring_setup/io_uring_enter.
//
// # Thread safety
//
// [Runtime.Spawn] and [SpawnOn] may be called from any goroutine. The
// ambient [Spawn]/[SubmitOp]/[PrepareBatch] functions work only on the
// goroutine running [Runtime.Run] or inside one of its tasks, and panic
// with [ErrNoRuntimeContext] anywhere else. Everything else in this
// package (the scheduler, the [Driver], the task table) is touched only
// from the single active goroutine in the worker/task rendezvous — see
// runtime.go for the argument that this needs no additional locking.
//
// # Usage
//
//	rt, err := uringrt.New(uringrt.WithQueueEntries(256))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt.Spawn(func() {
//	    h := uringrt.Spawn(func() int { return 42 })
//	    fmt.Println(h.Await())
//	})
//	if err := rt.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error types
//
// [ErrNoRuntimeContext] and the precondition-violation [PanicError]
// signal programming errors; all other errors ([RingSetupError],
// [ErrRuntimeClosed], [TimeoutError]) represent runtime conditions
// callers are expected to handle.
package uringrt
