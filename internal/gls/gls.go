// Package gls implements goroutine-local storage keyed by the runtime's
// internal goroutine id. Go has no supported public API for this; the id
// is extracted by parsing the header line of a captured stack trace, the
// same technique used by most goroutine-local-storage shims in the wider
// ecosystem. Treat the returned value only as an opaque, process-lifetime
// key — it is not part of any stable Go API and is reused once a
// goroutine exits.
package gls

import (
	"bytes"
	"runtime"
	"strconv"
)

const goroutinePrefix = "goroutine "

// GoroutineID returns the id of the calling goroutine.
func GoroutineID() int64 {
	buf := make([]byte, 64)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		buf = make([]byte, len(buf)*2)
	}

	if !bytes.HasPrefix(buf, []byte(goroutinePrefix)) {
		panic("gls: unexpected stack trace header: " + string(buf))
	}
	buf = buf[len(goroutinePrefix):]

	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		panic("gls: unexpected stack trace header: " + string(buf))
	}

	id, err := strconv.ParseInt(string(buf[:end]), 10, 64)
	if err != nil {
		panic("gls: unable to parse goroutine id: " + err.Error())
	}
	return id
}
