// Command echo-readiness serves a fixed HTTP response over the
// readiness-path TCP access methods (Read/Write), one task per
// connection accepted via Accept, as a smoke test of the runtime's core
// loop under real
// socket I/O.
package main

import (
	"log"

	uringrt "github.com/joeycumines/go-uringrt"
	uringnet "github.com/joeycumines/go-uringrt/net"
)

const response = "HTTP/1.1 200 OK\r\nContent-length: 12\r\n\r\nHello world\n"

func main() {
	rt, err := uringrt.New(uringrt.WithQueueEntries(256))
	if err != nil {
		log.Fatal(err)
	}

	rt.Spawn(func() {
		ln, err := uringnet.Listen("[::1]:3000", true)
		if err != nil {
			log.Fatal(err)
		}
		defer ln.Close()

		for {
			conn, err := ln.Accept()
			if err != nil {
				log.Fatal(err)
			}
			uringrt.Spawn(func() struct{} {
				handleConnection(conn)
				return struct{}{}
			})
		}
	})

	if err := rt.Run(); err != nil {
		log.Fatal(err)
	}
}

func handleConnection(conn *uringnet.Conn) {
	defer conn.Close()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			return
		}
		if _, err := conn.Write([]byte(response)); err != nil {
			return
		}
	}
}
