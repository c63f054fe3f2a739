package uringrt

import (
	"errors"
	"testing"

	"github.com/joeycumines/go-uringrt/internal/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// errNoFakeCompletion is returned by fakeRing.WaitCQE when no test has
// queued a completion for it to hand back.
var errNoFakeCompletion = errors.New("fakeRing: WaitCQE called with nothing queued")

// fakeRing is a kernelRing that never touches the kernel: tests enqueue
// completions directly via deliver, letting driver_test.go exercise the
// op state machine without a real io_uring underneath.
type fakeRing struct {
	capacity  int
	inFlight  int
	completed []ring.CQE
	closed    bool
	pushed    []ring.Entry
}

func newFakeRing(capacity int) *fakeRing {
	return &fakeRing{capacity: capacity}
}

func (f *fakeRing) Push(entry ring.Entry) bool {
	if f.inFlight >= f.capacity {
		return false
	}
	f.inFlight++
	f.pushed = append(f.pushed, entry)
	return true
}

func (f *fakeRing) Submit() (int, error) { return 0, nil }

func (f *fakeRing) SubmitAndWait(minComplete uint32) error { return nil }

func (f *fakeRing) PeekCQE() (ring.CQE, bool) {
	if len(f.completed) == 0 {
		return ring.CQE{}, false
	}
	return f.completed[0], true
}

// WaitCQE blocks in real io_uring; the fake has no kernel to wait on, so
// tests that exercise Park pre-deliver a completion before calling it.
func (f *fakeRing) WaitCQE() (ring.CQE, error) {
	cqe, ok := f.PeekCQE()
	if !ok {
		return ring.CQE{}, errNoFakeCompletion
	}
	return cqe, nil
}

func (f *fakeRing) AdvanceCQ() {
	f.completed = f.completed[1:]
}

func (f *fakeRing) Remaining() int { return f.capacity - f.inFlight }

func (f *fakeRing) Close() error {
	f.closed = true
	return nil
}

// deliver queues cqe as the next completion a drain will observe.
func (f *fakeRing) deliver(cqe ring.CQE) {
	f.completed = append(f.completed, cqe)
}

func newTestDriver(capacity int) (*Driver, *fakeRing, *Runtime) {
	fr := newFakeRing(capacity)
	rt := &Runtime{scheduler: newScheduler(), logger: nil, metrics: newMetrics(true)}
	rt.driver = newDriver(fr, rt, nil, rt.metrics)
	return rt.driver, fr, rt
}

func TestDriverAwaitCompletedBeforeFirstPoll(t *testing.T) {
	d, fr, _ := newTestDriver(8)

	op, err := Push(d, ring.Entry{Opcode: ring.OpNop}, "payload")
	require.NoError(t, err)

	fr.deliver(ring.CQE{UserData: uint64(op.key), Res: 42})
	require.True(t, d.drain())

	cqe, data := op.Await()
	assert.EqualValues(t, 42, cqe.Res)
	assert.Equal(t, "payload", data)

	_, ok := d.slots.Get(op.key)
	assert.False(t, ok, "slot should be freed after Await consumes it")
}

func TestDriverCancelBeforeCompletionRetainsPayloadThenFreesOnArrival(t *testing.T) {
	d, fr, _ := newTestDriver(8)

	op, err := Push(d, ring.Entry{Opcode: ring.OpNop}, []byte("buf"))
	require.NoError(t, err)

	op.Cancel()

	slot, ok := d.slots.Get(op.key)
	require.True(t, ok, "cancelled slot stays present until the real completion arrives")
	assert.Equal(t, opCancelled, slot.state)
	assert.Equal(t, []byte("buf"), slot.payload)

	fr.deliver(ring.CQE{UserData: uint64(op.key), Res: 0})
	require.True(t, d.drain())

	_, ok = d.slots.Get(op.key)
	assert.False(t, ok, "slot must be released once the cancelled op's completion arrives")
}

func TestDriverCancelAfterCompletionIsNoop(t *testing.T) {
	d, fr, _ := newTestDriver(8)

	op, err := Push(d, ring.Entry{Opcode: ring.OpNop}, 7)
	require.NoError(t, err)

	fr.deliver(ring.CQE{UserData: uint64(op.key), Res: 1})
	require.True(t, d.drain())

	_, _ = op.Await()
	op.Cancel() // must not panic or double-free

	_, ok := d.slots.Get(op.key)
	assert.False(t, ok)
}

func TestDriverDoubleCompletionPanics(t *testing.T) {
	d, fr, _ := newTestDriver(8)

	op, err := Push(d, ring.Entry{Opcode: ring.OpNop}, 0)
	require.NoError(t, err)

	cqe := ring.CQE{UserData: uint64(op.key), Res: 0}
	fr.deliver(cqe)
	require.True(t, d.drain())

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic on a duplicate completion")
		pe, ok := r.(*PanicError)
		require.True(t, ok, "expected *PanicError, got %T", r)
		assert.ErrorIs(t, pe, ErrMultiShotCompletion)
	}()
	d.complete(cqe)
}

func TestDriverHardLinkedBatchPushesBothSQEsWithLinkFlag(t *testing.T) {
	d, fr, rt := newTestDriver(8)
	release := installAmbient(rt, nil)
	defer release()

	head := NewUnsubmitted(ring.Entry{Opcode: ring.OpPollAdd}, "poll", func(cqe ring.CQE, data string) (string, error) {
		return data, nil
	})
	head.ApplyFlags(ring.SQEFlagIOLink)
	tail := NewUnsubmitted(ring.Entry{Opcode: ring.OpLinkTimeout}, "timeout", func(cqe ring.CQE, data string) (string, error) {
		return data, nil
	})

	headSub, err := head.Submit()
	require.NoError(t, err)
	tailSub, err := tail.Submit()
	require.NoError(t, err)

	require.Len(t, fr.pushed, 2)
	assert.Equal(t, ring.OpPollAdd, fr.pushed[0].Opcode)
	assert.Equal(t, ring.SQEFlagIOLink, fr.pushed[0].Flags, "head of a hard-linked chain must carry IOSQE_IO_LINK")
	assert.Equal(t, ring.OpLinkTimeout, fr.pushed[1].Opcode)
	assert.Zero(t, fr.pushed[1].Flags, "the timeout is the tail of the chain; it needs no link flag of its own")

	fr.deliver(ring.CQE{UserData: uint64(headSub.op.key), Res: 0})
	fr.deliver(ring.CQE{UserData: uint64(tailSub.op.key), Res: 0})
	require.True(t, d.drain())

	headResult, err := headSub.Await()
	require.NoError(t, err)
	assert.Equal(t, "poll", headResult)

	tailResult, err := tailSub.Await()
	require.NoError(t, err)
	assert.Equal(t, "timeout", tailResult)
}

func TestDriverAwaitParksAndWakesOnCompletion(t *testing.T) {
	d, fr, rt := newTestDriver(8)

	op, err := Push(d, ring.Entry{Opcode: ring.OpNop}, "x")
	require.NoError(t, err)

	te := &taskEntry{key: 99, resume: make(chan struct{}), parked: make(chan parkMsg)}

	done := make(chan struct{})
	go func() {
		release := installAmbient(rt, te)
		defer release()
		_, _ = op.Await()
		close(done)
	}()

	// The awaiting goroutine should park: it reports finished=false on
	// te.parked before blocking on te.resume.
	msg := <-te.parked
	assert.False(t, msg.finished)

	slot, ok := d.slots.Get(op.key)
	require.True(t, ok)
	assert.Equal(t, opWaiting, slot.state)
	assert.Equal(t, te.key, slot.waiter)

	fr.deliver(ring.CQE{UserData: uint64(op.key), Res: 5})
	require.True(t, d.drain())

	assert.Equal(t, 1, rt.scheduler.len())

	te.resume <- struct{}{}
	<-done
}
