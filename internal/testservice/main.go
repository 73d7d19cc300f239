// Command testservice stands in for the service under test. It prints a ready
// marker, optionally listens on TCP, and exits with a chosen code once interrupted.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"
)

type conf struct {
	ExitCode        int           `name:"exit-code" default:"0" help:"Exit code to use once interrupted"`
	IgnoreInterrupt bool          `name:"ignore-interrupt" help:"Keep running when interrupted"`
	ReadyAfter      time.Duration `name:"ready-after" default:"0s" help:"Delay before printing the ready marker"`
	ReadyMarker     string        `name:"ready-marker" default:"service ready" help:"Line printed once ready"`
	Listen          string        `name:"listen" help:"TCP address to accept connections on once ready"`
	Flood           int           `name:"flood" default:"0" help:"Bytes of output to write before becoming ready"`
	CrashAfter      time.Duration `name:"crash-after" default:"0s" help:"Exit with code 9 after this long"`
	SignalFile      string        `name:"signal-file" help:"File to write when the interrupt arrives"`
}

func main() {
	c := &conf{}
	kong.Parse(c)

	os.Exit(run(c))
}

func run(c *conf) int {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)

	if c.CrashAfter > 0 {
		time.AfterFunc(c.CrashAfter, func() {
			fmt.Fprintln(os.Stderr, "crashing")
			os.Exit(9)
		})
	}

	if c.Flood > 0 {
		line := strings.Repeat("x", 79) + "\n"
		for written := 0; written < c.Flood; written += len(line) {
			fmt.Print(line)
		}
	}

	if c.ReadyAfter > 0 {
		time.Sleep(c.ReadyAfter)
	}

	if c.Listen != "" {
		ln, err := net.Listen("tcp", c.Listen)
		if err != nil {
			fmt.Fprintln(os.Stderr, "listen:", err)
			return 8
		}
		defer ln.Close()
		go accept(ln)
	}

	fmt.Println(c.ReadyMarker)

	for range quit {
		fmt.Println("interrupted")
		if c.SignalFile != "" {
			_ = os.WriteFile(c.SignalFile, []byte(time.Now().Format(time.RFC3339Nano)), 0o600)
		}
		if !c.IgnoreInterrupt {
			break
		}
	}
	return c.ExitCode
}

func accept(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("hello\n"))
		_ = conn.Close()
	}
}
