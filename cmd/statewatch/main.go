// statewatch is a debug tool that tails the talk surface's state
// stream and prints every update.
//
// Usage:
//
//	go run ./cmd/statewatch -addr localhost:3000
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:3000", "Talk surface address")
	levels := flag.Bool("levels", false, "Also tail the binary level stream")
	flag.Parse()

	path := "/ws/state"
	if *levels {
		path = "/ws/levels"
	}
	u := url.URL{Scheme: "ws", Host: *addr, Path: path}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", u.String(), err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("connected to %s\n", u.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
		os.Exit(0)
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "read: %v\n", err)
			os.Exit(1)
		}
		switch msgType {
		case websocket.TextMessage:
			fmt.Printf("%s %s\n", time.Now().Format("15:04:05.000"), data)
		case websocket.BinaryMessage:
			fmt.Printf("%s levels frame (%d bytes)\n", time.Now().Format("15:04:05.000"), len(data))
		}
	}
}
