package net

import (
	"testing"
	"time"

	uringrt "github.com/joeycumines/go-uringrt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTCPReadinessPath runs an echo exchange through Read/Write's
// readiness path (PollAdd retried against plain nonblocking
// reads/writes); the connection itself is set up with Accept/Connect.
func TestTCPReadinessPath(t *testing.T) {
	rt, err := uringrt.New(uringrt.WithQueueEntries(32))
	require.NoError(t, err)

	const addr = "127.0.0.1:18080"

	rt.Spawn(func() {
		ln, err := Listen(addr, true)
		require.NoError(t, err)
		defer ln.Close()

		conn, err := ln.Accept()
		require.NoError(t, err)
		defer conn.Close()

		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(buf[:n]))

		_, err = conn.Write([]byte("world"))
		require.NoError(t, err)
	})

	rt.Spawn(func() {
		conn, err := Connect(addr)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Write([]byte("hello"))
		require.NoError(t, err)

		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "world", string(buf[:n]))
	})

	require.NoError(t, rt.Run())
}

// TestTCPReadTimeoutExpires connects a client that never writes anything,
// so the server's ReadTimeout has nothing to read and must come back as
// a *uringrt.TimeoutError once its deadline elapses, exercising the
// hard-linked PollAdd+LinkTimeout chain end to end.
func TestTCPReadTimeoutExpires(t *testing.T) {
	rt, err := uringrt.New(uringrt.WithQueueEntries(32))
	require.NoError(t, err)

	const addr = "127.0.0.1:18081"

	rt.Spawn(func() {
		ln, err := Listen(addr, true)
		require.NoError(t, err)
		defer ln.Close()

		conn, err := ln.Accept()
		require.NoError(t, err)
		defer conn.Close()

		buf := make([]byte, 64)
		_, err = conn.ReadTimeout(buf, 50*time.Millisecond)
		var timeoutErr *uringrt.TimeoutError
		require.ErrorAs(t, err, &timeoutErr)
	})

	rt.Spawn(func() {
		conn, err := Connect(addr)
		require.NoError(t, err)
		defer conn.Close()

		buf := make([]byte, 64)
		_, err = conn.ReadTimeout(buf, time.Second)
		_ = err // client side just holds the connection open; its own read may also time out
	})

	require.NoError(t, rt.Run())
}

// TestTCPCompletionPathOwnedBuffers runs the same echo exchange, but
// through ReadOwned/WriteOwned, which hand the kernel a caller-owned
// buffer for the duration of the op instead of retrying against a
// readiness poll.
func TestTCPCompletionPathOwnedBuffers(t *testing.T) {
	rt, err := uringrt.New(uringrt.WithQueueEntries(32))
	require.NoError(t, err)

	const addr = "127.0.0.1:19000"

	rt.Spawn(func() {
		ln, err := Listen(addr, true)
		require.NoError(t, err)
		defer ln.Close()

		conn, err := ln.Accept()
		require.NoError(t, err)
		defer conn.Close()

		buf := make([]byte, 64)
		sub, err := conn.ReadOwned(buf)
		require.NoError(t, err)
		res, err := sub.Await()
		require.NoError(t, err)
		assert.Equal(t, "hello", string(res.Buf[:res.N]))

		wsub, err := conn.WriteOwned([]byte("world"))
		require.NoError(t, err)
		_, err = wsub.Await()
		require.NoError(t, err)
	})

	rt.Spawn(func() {
		conn, err := Connect(addr)
		require.NoError(t, err)
		defer conn.Close()

		wsub, err := conn.WriteOwned([]byte("hello"))
		require.NoError(t, err)
		_, err = wsub.Await()
		require.NoError(t, err)

		buf := make([]byte, 64)
		sub, err := conn.ReadOwned(buf)
		require.NoError(t, err)
		res, err := sub.Await()
		require.NoError(t, err)
		assert.Equal(t, "world", string(res.Buf[:res.N]))
	})

	require.NoError(t, rt.Run())
}
