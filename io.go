package uringrt

import "github.com/joeycumines/go-uringrt/internal/ring"

// SubmitOp is the ambient free function: from within a running task,
// submit entry with owned payload data, delegating to Driver.Push via
// the current Runtime.
func SubmitOp[T any](entry ring.Entry, data T) (*PendingOp[T], error) {
	rt, ok := currentRuntime()
	if !ok {
		panic(ErrNoRuntimeContext)
	}
	if rt.closed.Load() {
		return nil, ErrRuntimeClosed
	}
	return Push(rt.driver, entry, data)
}

// PrepareBatch drains the ring if fewer than n SQ slots remain, letting a
// caller pre-reserve space for a batch of submissions it's about to issue
// (e.g. a hard-linked chain) without an intervening driver.SubmitAndDrain
// splitting the batch across two kernel submissions.
func PrepareBatch(n int) error {
	rt, ok := currentRuntime()
	if !ok {
		panic(ErrNoRuntimeContext)
	}
	if rt.closed.Load() {
		return ErrRuntimeClosed
	}
	if rt.driver.Remaining() < n {
		return rt.driver.SubmitAndDrain()
	}
	return nil
}

// PostOp converts a raw completion (and the payload submitted alongside
// it) into a caller's domain result, or an error derived from a negative
// CQE result.
type PostOp[D any, O any] func(cqe ring.CQE, data D) (O, error)

// Unsubmitted is the pre-submission half of the I/O builder: an opcode
// entry plus its owned payload and post-processing closure,
// which the caller may still decorate (e.g. ApplyFlags(ring.SQEFlagIOLink)
// to hard-link it to the next submission) before calling Submit.
type Unsubmitted[D any, O any] struct {
	entry  ring.Entry
	data   D
	postOp PostOp[D, O]
}

// NewUnsubmitted builds an Unsubmitted around entry, data, and the
// closure that will interpret the eventual completion.
func NewUnsubmitted[D any, O any](entry ring.Entry, data D, postOp PostOp[D, O]) Unsubmitted[D, O] {
	return Unsubmitted[D, O]{entry: entry, data: data, postOp: postOp}
}

// ApplyFlags ORs extra SQE flags (e.g. ring.SQEFlagIOLink) into the
// pending submission.
func (u *Unsubmitted[D, O]) ApplyFlags(flags uint8) {
	u.entry.Flags |= flags
}

// Submit hands the entry/data pair to SubmitOp, returning a Submitted
// whose Await applies postOp to the eventual completion.
func (u Unsubmitted[D, O]) Submit() (*Submitted[D, O], error) {
	op, err := SubmitOp(u.entry, u.data)
	if err != nil {
		return nil, err
	}
	return &Submitted[D, O]{op: op, postOp: u.postOp}, nil
}

// Submitted is the post-submission half of the I/O builder: a suspendable
// handle that resolves to the caller's domain result.
type Submitted[D any, O any] struct {
	op     *PendingOp[D]
	postOp PostOp[D, O]
}

// Await blocks until the completion arrives and applies postOp to it.
func (s *Submitted[D, O]) Await() (O, error) {
	cqe, data := s.op.Await()
	return s.postOp(cqe, data)
}

// Cancel releases the underlying pending op (see PendingOp.Cancel).
func (s *Submitted[D, O]) Cancel() {
	s.op.Cancel()
}
