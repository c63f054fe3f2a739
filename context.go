package uringrt

import (
	"sync"

	"github.com/joeycumines/go-uringrt/internal/gls"
)

// ambientContext is what's installed per-goroutine while a Runtime is
// running: a reference back to the runtime, and — for task goroutines
// only — the task's own key, letting Await/parkCurrentTask register
// themselves as a waiter without the caller threading either value
// through every call.
//
// Go has no thread-locals and a goroutine is not pinned to an OS thread,
// so this is genuinely goroutine-local storage keyed via internal/gls,
// not a literal translation of the original's per-OS-thread design;
// Runtime.Run still calls runtime.LockOSThread to honor "one Runtime per
// OS thread" at the OS level.
type ambientContext struct {
	rt   *Runtime
	task *taskEntry // nil for the worker goroutine itself
}

var (
	ambientMu  sync.RWMutex
	ambientMap = make(map[int64]*ambientContext)
)

// installAmbient registers ctx for the calling goroutine and returns a
// function that clears it; callers must defer the release so that the
// context is cleared on every exit path, including a panic.
func installAmbient(rt *Runtime, task *taskEntry) (release func()) {
	gid := gls.GoroutineID()
	ctx := &ambientContext{rt: rt, task: task}

	ambientMu.Lock()
	ambientMap[gid] = ctx
	ambientMu.Unlock()

	return func() {
		ambientMu.Lock()
		delete(ambientMap, gid)
		ambientMu.Unlock()
	}
}

func currentAmbient() (*ambientContext, bool) {
	gid := gls.GoroutineID()
	ambientMu.RLock()
	ctx, ok := ambientMap[gid]
	ambientMu.RUnlock()
	return ctx, ok
}

func currentRuntime() (*Runtime, bool) {
	ctx, ok := currentAmbient()
	if !ok {
		return nil, false
	}
	return ctx.rt, true
}

func currentTaskKey() (taskKey, bool) {
	ctx, ok := currentAmbient()
	if !ok || ctx.task == nil {
		return 0, false
	}
	return ctx.task.key, true
}

// parkCurrentTask suspends the calling task goroutine: it signals the
// worker that it has yielded, then blocks until the worker resumes it.
// Only valid from within a task goroutine (i.e. currentTaskKey must
// succeed); the worker goroutine itself never parks this way — it blocks
// on Driver.Park instead.
func parkCurrentTask() {
	ctx, ok := currentAmbient()
	if !ok || ctx.task == nil {
		panic(ErrNoRuntimeContext)
	}
	ctx.task.parked <- parkMsg{finished: false}
	<-ctx.task.resume
}
