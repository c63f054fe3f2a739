// Package net supplies a minimal non-blocking TCP listener/connection
// pair built on the same ambient submission surface the core runtime
// exposes (uringrt.SubmitOp, uringrt.Unsubmitted/Submitted), with two
// access paths mirroring the reference implementation this was grounded
// on: a readiness path (PollAdd, retried against a plain nonblocking
// socket) for Read/Write, and a completion path (Read/Write opcodes
// submitted directly) for callers that want the kernel to own the buffer
// for the duration of the operation, via ReadOwned/WriteOwned. Accept and
// Connect always submit their Accept/Connect opcodes directly.
//
// Only standard library net is used, and only for address resolution
// (net.ResolveTCPAddr) — all socket creation, binding, and I/O goes
// through golang.org/x/sys/unix and the ring opcodes, never through
// net.Listen/net.Dial.
package net

import (
	stdnet "net"
	"time"
	"unsafe"

	uringrt "github.com/joeycumines/go-uringrt"
	"github.com/joeycumines/go-uringrt/internal/ring"
	"golang.org/x/sys/unix"
)

// Listener accepts inbound TCP connections on a bound, listening socket.
type Listener struct {
	fd int
}

// Conn is a single connected TCP socket, readable and writable from
// within a task via either access path.
type Conn struct {
	fd int
}

func htons(port int) uint16 {
	return uint16(port<<8) | uint16(port>>8)
}

func sockaddrOf(addr *stdnet.TCPAddr) (unix.Sockaddr, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	return sa, nil
}

// Listen resolves address, binds a TCP socket to it, and starts
// listening with a backlog of 256 (matching the reference
// implementation's fixed backlog).
func Listen(address string, reusePort bool) (*Listener, error) {
	addr, err := stdnet.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}

	domain := unix.AF_INET
	if addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}

	if reusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			unix.Close(fd)
			return nil, uringrt.WrapError("uringrt/net: setsockopt SO_REUSEPORT", err)
		}
	}

	sa, err := sockaddrOf(addr)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, uringrt.WrapError("uringrt/net: bind "+address, err)
	}
	if err := unix.Listen(fd, 256); err != nil {
		unix.Close(fd)
		return nil, uringrt.WrapError("uringrt/net: listen "+address, err)
	}

	return &Listener{fd: fd}, nil
}

// Fd returns the listener's raw file descriptor.
func (l *Listener) Fd() int { return l.fd }

// Close releases the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.fd)
}

// Accept submits an OpAccept and suspends the calling task until a
// connection arrives, returning it as an already-nonblocking Conn
// (nonblocking so the readiness path's retry loop below is meaningful).
func (l *Listener) Accept() (*Conn, error) {
	entry := ring.Entry{Opcode: ring.OpAccept, FD: int32(l.fd)}
	op, err := uringrt.SubmitOp(entry, struct{}{})
	if err != nil {
		return nil, err
	}
	cqe, _ := op.Await()
	if cqe.Res < 0 {
		return nil, unix.Errno(-cqe.Res)
	}
	fd := int(cqe.Res)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Conn{fd: fd}, nil
}

// Connect creates a socket, submits an OpConnect against it, and suspends
// until the connection completes or fails; the socket is switched to
// nonblocking mode only once the connect has succeeded.
func Connect(address string) (*Conn, error) {
	addr, err := stdnet.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}

	domain := unix.AF_INET
	if addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}

	sa, err := sockaddrOf(addr)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	rawAddr, rawLen := rawSockaddr(sa)

	entry := ring.Entry{
		Opcode: ring.OpConnect,
		FD:     int32(fd),
		Addr:   uint64(uintptr(rawAddr)),
		Off:    uint64(rawLen),
	}
	// rawAddr must stay alive until the kernel has copied it, which is
	// guaranteed no later than the matching completion: op retains it as
	// payload for exactly that long (driver.go's opSlot/PendingOp).
	op, err := uringrt.SubmitOp(entry, rawSockaddrHolder{ptr: rawAddr})
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	cqe, _ := op.Await()
	if cqe.Res < 0 {
		unix.Close(fd)
		return nil, unix.Errno(-cqe.Res)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Conn{fd: fd}, nil
}

// rawSockaddrHolder keeps the C-layout sockaddr reachable (and therefore
// un-GC'd) for as long as the op referencing it is outstanding.
type rawSockaddrHolder struct{ ptr unsafe.Pointer }

func rawSockaddr(sa unix.Sockaddr) (unsafe.Pointer, uint32) {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		raw := &unix.RawSockaddrInet4{
			Family: unix.AF_INET,
			Port:   htons(s.Port),
		}
		raw.Addr = s.Addr
		return unsafe.Pointer(raw), uint32(unsafe.Sizeof(*raw))
	case *unix.SockaddrInet6:
		raw := &unix.RawSockaddrInet6{
			Family: unix.AF_INET6,
			Port:   htons(s.Port),
		}
		raw.Addr = s.Addr
		return unsafe.Pointer(raw), uint32(unsafe.Sizeof(*raw))
	default:
		panic("uringrt/net: unsupported sockaddr type")
	}
}

// Fd returns the connection's raw file descriptor.
func (c *Conn) Fd() int { return c.fd }

// Close releases the connection's socket.
func (c *Conn) Close() error {
	return unix.Close(c.fd)
}

// Read is the readiness-path read: it tries a direct nonblocking read
// first, and only suspends behind a PollAdd(POLLIN) when the kernel
// isn't ready yet, looping until data (or EOF, or a real error) arrives.
func (c *Conn) Read(buf []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, buf)
		if err == nil {
			return n, nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return 0, err
		}
		if err := c.awaitPoll(unix.POLLIN); err != nil {
			return 0, err
		}
	}
}

// Write is the readiness-path write, the mirror of Read.
func (c *Conn) Write(buf []byte) (int, error) {
	for {
		n, err := unix.Write(c.fd, buf)
		if err == nil {
			return n, nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return 0, err
		}
		if err := c.awaitPoll(unix.POLLOUT); err != nil {
			return 0, err
		}
	}
}

func (c *Conn) awaitPoll(events int16) error {
	entry := ring.Entry{Opcode: ring.OpPollAdd, FD: int32(c.fd), OpFlags: uint32(events)}
	op, err := uringrt.SubmitOp(entry, struct{}{})
	if err != nil {
		return err
	}
	cqe, _ := op.Await()
	if cqe.Res < 0 {
		return unix.Errno(-cqe.Res)
	}
	return nil
}

// ReadTimeout is the deadline-aware counterpart to Read: it hard-links an
// OpLinkTimeout after the readiness OpPollAdd so the kernel races the two
// itself rather than a user-space timer goroutine racing the op. If the
// timeout wins, the poll comes back cancelled and this returns a
// *uringrt.TimeoutError; otherwise it behaves exactly like Read once the
// poll completes.
func (c *Conn) ReadTimeout(buf []byte, timeout time.Duration) (int, error) {
	for {
		n, err := unix.Read(c.fd, buf)
		if err == nil {
			return n, nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return 0, err
		}
		if err := c.awaitPollTimeout(unix.POLLIN, timeout); err != nil {
			return 0, err
		}
	}
}

// awaitPollTimeout submits a hard-linked PollAdd+LinkTimeout pair as one
// batch (PrepareBatch reserves both slots up front so no intervening
// submit splits the chain across two kernel submissions, which would
// break the link) and waits on the poll half.
func (c *Conn) awaitPollTimeout(events int16, timeout time.Duration) error {
	if err := uringrt.PrepareBatch(2); err != nil {
		return err
	}

	ts := &ring.Timespec{Sec: int64(timeout / time.Second), Nsec: int64(timeout % time.Second)}

	poll := ring.Entry{Opcode: ring.OpPollAdd, FD: int32(c.fd), OpFlags: uint32(events), Flags: ring.SQEFlagIOLink}
	pollOp, err := uringrt.SubmitOp(poll, struct{}{})
	if err != nil {
		return err
	}

	timeoutEntry := ring.Entry{
		Opcode: ring.OpLinkTimeout,
		Addr:   uint64(uintptr(unsafe.Pointer(ts))),
		Len:    1,
	}
	// ts must stay reachable until the kernel has read it; keeping it as
	// the timeout op's payload pins it for exactly that long, the same
	// trick Connect uses for its sockaddr.
	timeoutOp, err := uringrt.SubmitOp(timeoutEntry, ts)
	if err != nil {
		pollOp.Cancel()
		return err
	}

	cqe, _ := pollOp.Await()
	_, _ = timeoutOp.Await() // discard: its own result carries nothing the caller needs

	if cqe.Res == -int32(unix.ECANCELED) {
		return &uringrt.TimeoutError{Message: "uringrt/net: read deadline exceeded"}
	}
	if cqe.Res < 0 {
		return unix.Errno(-cqe.Res)
	}
	return nil
}

// ReadResult is the domain result ReadOwned's post-op closure produces:
// the byte count and the same buffer handed in, returned to the caller
// once the kernel is done writing into it.
type ReadResult struct {
	N   int
	Buf []byte
}

// ReadOwned submits a completion-path OpRead directly against buf,
// handing kernel ownership of the buffer for the duration of the op —
// unlike Read, it does not retry; a negative result surfaces as an
// error from Submitted.Await. Callers that abandon the returned
// Submitted before awaiting it must call Cancel to release buf.
func (c *Conn) ReadOwned(buf []byte) (*uringrt.Submitted[[]byte, ReadResult], error) {
	if len(buf) == 0 {
		panic("uringrt/net: ReadOwned requires a non-empty buffer")
	}
	entry := ring.Entry{
		Opcode: ring.OpRead,
		FD:     int32(c.fd),
		Addr:   uint64(uintptr(unsafe.Pointer(&buf[0]))),
		Len:    uint32(len(buf)),
	}
	u := uringrt.NewUnsubmitted(entry, buf, func(cqe ring.CQE, data []byte) (ReadResult, error) {
		if cqe.Res < 0 {
			return ReadResult{}, unix.Errno(-cqe.Res)
		}
		return ReadResult{N: int(cqe.Res), Buf: data}, nil
	})
	return u.Submit()
}

// WriteOwned submits a completion-path OpWrite directly against buf,
// the mirror of ReadOwned.
func (c *Conn) WriteOwned(buf []byte) (*uringrt.Submitted[[]byte, ReadResult], error) {
	if len(buf) == 0 {
		panic("uringrt/net: WriteOwned requires a non-empty buffer")
	}
	entry := ring.Entry{
		Opcode: ring.OpWrite,
		FD:     int32(c.fd),
		Addr:   uint64(uintptr(unsafe.Pointer(&buf[0]))),
		Len:    uint32(len(buf)),
	}
	u := uringrt.NewUnsubmitted(entry, buf, func(cqe ring.CQE, data []byte) (ReadResult, error) {
		if cqe.Res < 0 {
			return ReadResult{}, unix.Errno(-cqe.Res)
		}
		return ReadResult{N: int(cqe.Res), Buf: data}, nil
	})
	return u.Submit()
}
