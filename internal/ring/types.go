// Package ring is a minimal wrapper around the Linux io_uring kernel
// interface: the io_uring_setup/io_uring_enter syscalls and the mmap'd
// submission/completion ring buffers they hand back. It exposes just
// enough surface for the driver above it to submit opcode entries and
// drain completions; it does not attempt fixed buffers, fixed files,
// SQPOLL, or any of the newer registration opcodes.
//
// The on-the-wire struct layouts (Params, SQE, CQE) mirror the stable
// kernel ABI from <linux/io_uring.h>; they are not re-derived from any
// single source file in this repository's reference material.
package ring

const (
	// OpNop performs no operation; useful for testing the ring plumbing.
	OpNop uint8 = 0
	// OpReadv submits a vectored read.
	OpReadv uint8 = 1
	// OpWritev submits a vectored write.
	OpWritev uint8 = 2
	// OpFsync requests an fsync.
	OpFsync uint8 = 3
	// OpPollAdd arms a poll on an fd for the given poll events.
	OpPollAdd uint8 = 6
	// OpPollRemove cancels a previously armed poll.
	OpPollRemove uint8 = 7
	// OpSendmsg submits sendmsg(2).
	OpSendmsg uint8 = 9
	// OpRecvmsg submits recvmsg(2).
	OpRecvmsg uint8 = 10
	// OpAccept submits accept4(2).
	OpAccept uint8 = 13
	// OpAsyncCancel requests cancellation of a previously submitted op.
	OpAsyncCancel uint8 = 14
	// OpLinkTimeout arms a deadline on the SQE it is hard-linked after:
	// whichever of the two completes first cancels the other.
	OpLinkTimeout uint8 = 15
	// OpConnect submits a non-blocking connect(2).
	OpConnect uint8 = 16
	// OpRead submits a plain buffer read.
	OpRead uint8 = 22
	// OpWrite submits a plain buffer write.
	OpWrite uint8 = 23
	// OpSend submits send(2).
	OpSend uint8 = 26
	// OpRecv submits recv(2).
	OpRecv uint8 = 27
	// OpClose submits close(2).
	OpClose uint8 = 19
)

const (
	// SetupCQSize indicates Params.CQEntries carries an explicit CQ size.
	SetupCQSize uint32 = 1 << 3
	// FeatSingleMMap indicates the SQ and CQ share one mmap region.
	FeatSingleMMap uint32 = 1 << 0
	// EnterGetEvents requests io_uring_enter to wait for completions.
	EnterGetEvents uint32 = 1 << 0
)

const (
	// SQEFlagIOLink hard-links this submission to the next one: the
	// kernel only starts the next submission after this one completes,
	// and a failure short-circuits the rest of the chain.
	SQEFlagIOLink uint8 = 1 << 2
)

// SQOffsets describes the byte offsets, within the mmap'd ring region, of
// the submission queue's control fields.
type SQOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	Resv1       uint32
	Resv2       uint64
}

// CQOffsets describes the byte offsets, within the mmap'd ring region, of
// the completion queue's control fields.
type CQOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	CQEs        uint32
	Flags       uint32
	Resv1       uint32
	Resv2       uint64
}

// Params is the argument/result struct for io_uring_setup.
type Params struct {
	SQEntries    uint32
	CQEntries    uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	Features     uint32
	WQFd         uint32
	Resv         [3]uint32
	SQOff        SQOffsets
	CQOff        CQOffsets
}

// SQE is the 64-byte submission queue entry layout.
type SQE struct {
	Opcode      uint8
	Flags       uint8
	IOPrio      uint16
	FD          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpFlags     uint32
	UserData    uint64
	BufIndex    uint16
	Personality uint16
	SpliceFDIn  int32
	pad         [2]uint64
}

// CQE is the 16-byte completion queue entry layout.
type CQE struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// Timespec mirrors the kernel's __kernel_timespec, the wire layout an
// OpLinkTimeout (or OpTimeout) SQE's Addr must point at.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// Entry is the caller-facing description of one submission; toSQE copies
// it into the raw kernel SQE layout. Driver.Push stamps UserData with the
// op key before the entry is pushed.
type Entry struct {
	Opcode   uint8
	Flags    uint8
	FD       int32
	Off      uint64
	Addr     uint64
	Len      uint32
	OpFlags  uint32
	UserData uint64
}

func (e Entry) toSQE() SQE {
	return SQE{
		Opcode:   e.Opcode,
		Flags:    e.Flags,
		FD:       e.FD,
		Off:      e.Off,
		Addr:     e.Addr,
		Len:      e.Len,
		OpFlags:  e.OpFlags,
		UserData: e.UserData,
	}
}
