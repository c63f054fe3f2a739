//go:build linux && amd64

package ring

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	offSQRing = 0x0
	offCQRing = 0x8000000
	offSQEs   = 0x10000000
)

// Ring is a thin wrapper over one io_uring instance: the mmap'd SQ/CQ
// ring pair plus the separately mmap'd SQE array. It is not safe for
// concurrent use — exactly like the kernel ring itself, it is meant to be
// driven by a single owner (the Driver).
type Ring struct {
	fd      int
	params  Params
	ringMem []byte
	sqeMem  []byte

	sqHead, sqTail, sqRingMask, sqRingEntries *uint32
	sqArray                                   []uint32
	sqes                                      []SQE
	sqLocalTail                               uint32

	cqHead, cqTail, cqRingMask *uint32
	cqes                       []CQE
}

// New creates an io_uring instance with room for entries submissions.
func New(entries uint32) (*Ring, error) {
	var params Params
	fd, err := setup(entries, &params)
	if err != nil {
		return nil, fmt.Errorf("ring: io_uring_setup: %w", err)
	}
	if params.Features&FeatSingleMMap == 0 {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ring: kernel does not support IORING_FEAT_SINGLE_MMAP")
	}

	sqRingSize := params.SQOff.Array + params.SQEntries*4
	cqRingSize := params.CQOff.CQEs + params.CQEntries*uint32(unsafe.Sizeof(CQE{}))
	ringSize := sqRingSize
	if cqRingSize > ringSize {
		ringSize = cqRingSize
	}

	ringMem, err := unix.Mmap(fd, offSQRing, int(ringSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ring: mmap sq/cq ring: %w", err)
	}

	sqeSize := params.SQEntries * uint32(unsafe.Sizeof(SQE{}))
	sqeMem, err := unix.Mmap(fd, offSQEs, int(sqeSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		_ = unix.Munmap(ringMem)
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ring: mmap sqes: %w", err)
	}

	r := &Ring{fd: fd, params: params, ringMem: ringMem, sqeMem: sqeMem}

	r.sqHead = (*uint32)(unsafe.Pointer(&ringMem[params.SQOff.Head]))
	r.sqTail = (*uint32)(unsafe.Pointer(&ringMem[params.SQOff.Tail]))
	r.sqRingMask = (*uint32)(unsafe.Pointer(&ringMem[params.SQOff.RingMask]))
	r.sqRingEntries = (*uint32)(unsafe.Pointer(&ringMem[params.SQOff.RingEntries]))
	r.sqArray = unsafe.Slice((*uint32)(unsafe.Pointer(&ringMem[params.SQOff.Array])), params.SQEntries)
	r.sqes = unsafe.Slice((*SQE)(unsafe.Pointer(&sqeMem[0])), params.SQEntries)
	r.sqLocalTail = atomic.LoadUint32(r.sqTail)

	r.cqHead = (*uint32)(unsafe.Pointer(&ringMem[params.CQOff.Head]))
	r.cqTail = (*uint32)(unsafe.Pointer(&ringMem[params.CQOff.Tail]))
	r.cqRingMask = (*uint32)(unsafe.Pointer(&ringMem[params.CQOff.RingMask]))
	r.cqes = unsafe.Slice((*CQE)(unsafe.Pointer(&ringMem[params.CQOff.CQEs])), params.CQEntries)

	runtime.SetFinalizer(r, func(r *Ring) { _ = r.Close() })
	return r, nil
}

// Push stages entry into the next free SQE slot. It returns false if the
// submission queue is currently full; the caller is expected to call
// Submit and retry.
func (r *Ring) Push(entry Entry) bool {
	head := atomic.LoadUint32(r.sqHead)
	if r.sqLocalTail-head >= *r.sqRingEntries {
		return false
	}
	idx := r.sqLocalTail & *r.sqRingMask
	r.sqes[idx] = entry.toSQE()
	r.sqArray[idx] = idx
	r.sqLocalTail++
	atomic.StoreUint32(r.sqTail, r.sqLocalTail)
	return true
}

// Remaining reports the number of free submission queue slots.
func (r *Ring) Remaining() int {
	head := atomic.LoadUint32(r.sqHead)
	return int(*r.sqRingEntries) - int(r.sqLocalTail-head)
}

// Submit flushes pending submissions to the kernel without waiting for
// any completions.
func (r *Ring) Submit() (int, error) {
	return r.submitAndWait(0)
}

// SubmitAndWait flushes pending submissions and blocks until at least
// minComplete completions are available.
func (r *Ring) SubmitAndWait(minComplete uint32) error {
	_, err := r.submitAndWait(minComplete)
	return err
}

func (r *Ring) submitAndWait(minComplete uint32) (int, error) {
	toSubmit := atomic.LoadUint32(r.sqTail) - atomic.LoadUint32(r.sqHead)
	var flags uint32
	if minComplete > 0 {
		flags |= EnterGetEvents
	}
	for {
		n, err := enter(r.fd, toSubmit, minComplete, flags)
		if err == nil {
			return n, nil
		}
		if err == unix.EINTR {
			continue
		}
		return n, fmt.Errorf("ring: io_uring_enter: %w", err)
	}
}

// PeekCQE returns the oldest unconsumed completion without advancing the
// completion queue head.
func (r *Ring) PeekCQE() (CQE, bool) {
	head := atomic.LoadUint32(r.cqHead)
	tail := atomic.LoadUint32(r.cqTail)
	if head == tail {
		return CQE{}, false
	}
	return r.cqes[head&*r.cqRingMask], true
}

// AdvanceCQ releases the completion queue slot returned by the most
// recent PeekCQE.
func (r *Ring) AdvanceCQ() {
	atomic.AddUint32(r.cqHead, 1)
}

// WaitCQE blocks until at least one completion is available and returns
// it without advancing the head (callers still call AdvanceCQ).
func (r *Ring) WaitCQE() (CQE, error) {
	for {
		if cqe, ok := r.PeekCQE(); ok {
			return cqe, nil
		}
		if err := r.SubmitAndWait(1); err != nil {
			return CQE{}, err
		}
	}
}

// Close tears down the ring's mmap regions and file descriptor.
func (r *Ring) Close() error {
	runtime.SetFinalizer(r, nil)
	var firstErr error
	if r.sqeMem != nil {
		if err := unix.Munmap(r.sqeMem); err != nil && firstErr == nil {
			firstErr = err
		}
		r.sqeMem = nil
	}
	if r.ringMem != nil {
		if err := unix.Munmap(r.ringMem); err != nil && firstErr == nil {
			firstErr = err
		}
		r.ringMem = nil
	}
	if r.fd >= 0 {
		if err := unix.Close(r.fd); err != nil && firstErr == nil {
			firstErr = err
		}
		r.fd = -1
	}
	return firstErr
}
