package uringrt

import (
	"fmt"
	"runtime"

	"github.com/joeycumines/go-uringrt/internal/ring"
	"github.com/joeycumines/go-uringrt/internal/slab"
	"github.com/joeycumines/logiface"
)

// kernelRing is the surface Driver needs from the kernel ring wrapper.
// It exists so driver_test.go can exercise the op state machine against
// a fake, without a real kernel underneath — *ring.Ring satisfies it.
type kernelRing interface {
	Push(entry ring.Entry) bool
	Submit() (int, error)
	SubmitAndWait(minComplete uint32) error
	PeekCQE() (ring.CQE, bool)
	AdvanceCQ()
	WaitCQE() (ring.CQE, error)
	Remaining() int
	Close() error
}

type opState uint8

const (
	opSubmitted opState = iota
	opWaiting
	opCompleted
	opCancelled
)

// opSlot is the driver-held state cell for one in-flight operation. The
// payload itself lives in the PendingOp handle the caller holds, except
// once Cancel moves it here to keep it alive until the matching kernel
// completion actually arrives.
type opSlot struct {
	state   opState
	waiter  taskKey
	hasWait bool
	cqe     ring.CQE
	payload any
}

// Driver owns the kernel ring and the op table keyed by the ring's
// user_data. Like Scheduler, it is touched only from the worker/task
// rendezvous window and needs no internal locking — see runtime.go for
// the argument.
type Driver struct {
	ring    kernelRing
	slots   *slab.Slab[opSlot]
	rt      *Runtime
	logger  *logiface.Logger[logiface.Event]
	metrics *Metrics
}

func newDriver(r kernelRing, rt *Runtime, logger *logiface.Logger[logiface.Event], metrics *Metrics) *Driver {
	return &Driver{
		ring:    r,
		slots:   slab.New[opSlot](256),
		rt:      rt,
		logger:  logger,
		metrics: metrics,
	}
}

// Push submits entry, stamping its user_data with a freshly reserved op
// key, and returns a PendingOp owning data until the completion arrives.
func Push[T any](d *Driver, entry ring.Entry, data T) (*PendingOp[T], error) {
	key := d.slots.Insert(opSlot{state: opSubmitted})
	entry.UserData = uint64(key)
	for !d.ring.Push(entry) {
		if _, err := d.ring.Submit(); err != nil {
			d.slots.Remove(key)
			return nil, fmt.Errorf("uringrt: submit while pushing op %d: %w", key, err)
		}
	}
	d.metrics.incOpsSubmitted()
	logOpSubmit(d.logger, key, entry.Opcode)

	op := &PendingOp[T]{driver: d, key: key, data: data}
	runtime.SetFinalizer(op, func(leaked *PendingOp[T]) {
		if !leaked.done {
			logOpLeaked(d.logger, leaked.key)
		}
	})
	return op, nil
}

// Remaining reports free SQ slots.
func (d *Driver) Remaining() int {
	return d.ring.Remaining()
}

// SubmitAndDrain flushes pending submissions and non-blockingly drains
// whatever completions are already available.
func (d *Driver) SubmitAndDrain() error {
	if _, err := d.ring.Submit(); err != nil {
		return fmt.Errorf("uringrt: submit_and_drain: %w", err)
	}
	d.drain()
	return nil
}

// Park submits pending entries and blocks the calling goroutine until at
// least one completion arrives, then drains whatever else is available.
func (d *Driver) Park() error {
	if _, err := d.ring.Submit(); err != nil {
		return fmt.Errorf("uringrt: park (submit): %w", err)
	}
	cqe, err := d.ring.WaitCQE()
	if err != nil {
		return fmt.Errorf("uringrt: park (wait_cqe): %w", err)
	}
	d.complete(cqe)
	d.ring.AdvanceCQ()
	d.drain()
	return nil
}

// drain pulls every currently-available completion and applies its
// transition, returning whether any were found.
func (d *Driver) drain() bool {
	found := false
	for {
		cqe, ok := d.ring.PeekCQE()
		if !ok {
			break
		}
		found = true
		d.complete(cqe)
		d.ring.AdvanceCQ()
	}
	return found
}

func (d *Driver) complete(cqe ring.CQE) {
	key := taskKey(cqe.UserData)
	slot, ok := d.slots.Get(key)
	if !ok {
		panicPrecondition(fmt.Errorf("completion for unknown op key %d", key))
	}

	prev := slot.state
	slot.cqe = cqe
	slot.state = opCompleted
	d.metrics.incOpsCompleted()
	logOpComplete(d.logger, key, cqe.Res)

	switch prev {
	case opSubmitted:
		// nothing further: the op is waiting to be polled.
	case opWaiting:
		logWake(d.logger, slot.waiter)
		d.rt.scheduler.wake(slot.waiter)
	case opCancelled:
		d.slots.Remove(key) // releases the retained payload
	case opCompleted:
		panicPrecondition(fmt.Errorf("%w: key %d", ErrMultiShotCompletion, key))
	}
}

// PendingOp is the suspendable handle returned by Push/SubmitOp. Await
// blocks the calling task's goroutine until the matching completion
// arrives. Cancel is the idiomatic Go analogue of Rust's Future::drop:
// since Go has no destructors, callers that might abandon an in-flight
// op before Await returns must defer Cancel() explicitly to release it
// cleanly. A PendingOp that is neither awaited nor cancelled before it is
// garbage collected is logged as a leak via a diagnostic-only finalizer
// (it only logs — it never touches Driver/Scheduler state, so it can't
// violate the single-active-goroutine rule the rest of this package
// leans on).
type PendingOp[T any] struct {
	driver *Driver
	key    taskKey
	data   T
	done   bool
}

// Await blocks until the op's completion arrives, returning the raw CQE
// alongside the payload handed to Push/SubmitOp.
func (p *PendingOp[T]) Await() (ring.CQE, T) {
	d := p.driver
	for {
		slot, ok := d.slots.Get(p.key)
		if !ok {
			panicPrecondition(fmt.Errorf("Await on unknown/already-consumed op key %d", p.key))
		}
		switch slot.state {
		case opCompleted:
			cqe := slot.cqe
			d.slots.Remove(p.key)
			p.done = true
			runtime.SetFinalizer(p, nil)
			return cqe, p.data
		case opCancelled:
			panicPrecondition(fmt.Errorf("Await on cancelled op key %d", p.key))
		default:
			tk, ok := currentTaskKey()
			if !ok {
				panic(ErrNoRuntimeContext)
			}
			slot.state = opWaiting
			slot.waiter = tk
			slot.hasWait = true
			parkCurrentTask()
			// loop: re-check state after resume
		}
	}
}

// Cancel releases the op. If the completion has already arrived, the
// slot is freed immediately; otherwise the payload is retained on the
// slot (Cancelled) until the real kernel completion arrives. Safe to
// call after a successful Await (no-op).
func (p *PendingOp[T]) Cancel() {
	if p.done {
		return
	}
	p.done = true
	runtime.SetFinalizer(p, nil)
	d := p.driver
	slot, ok := d.slots.Get(p.key)
	if !ok {
		return
	}
	if slot.state == opCompleted {
		d.slots.Remove(p.key)
		return
	}
	d.metrics.incOpsCancelled()
	logOpCancel(d.logger, p.key)
	slot.state = opCancelled
	slot.payload = p.data
}
