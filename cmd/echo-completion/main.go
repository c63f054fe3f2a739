// Command echo-completion is the completion-path twin of echo-readiness:
// it serves the same fixed response, but through ReadOwned/WriteOwned,
// handing the kernel a caller-owned buffer for each op instead of
// retrying against PollAdd.
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
		ln, err := uringnet.Listen("[::1]:9000", true)
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
		sub, err := conn.ReadOwned(buf)
		if err != nil {
			return
		}
		res, err := sub.Await()
		if err != nil || res.N == 0 {
			return
		}
		buf = res.Buf

		wsub, err := conn.WriteOwned([]byte(response))
		if err != nil {
			return
		}
		if _, err := wsub.Await(); err != nil {
			return
		}
	}
}
