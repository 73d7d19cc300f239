// Command testclient stands in for the client program run against the service.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/alecthomas/kong"
)

type conf struct {
	ExitCode int           `name:"exit-code" default:"0" help:"Exit code to finish with"`
	Connect  string        `name:"connect" help:"TCP address that must accept a connection"`
	Touch    string        `name:"touch" help:"File to write the working directory and finish time to"`
	Sleep    time.Duration `name:"sleep" default:"0s" help:"How long to work for"`
}

func main() {
	c := &conf{}
	kong.Parse(c)

	os.Exit(run(c))
}

func run(c *conf) int {
	wd, _ := os.Getwd()
	fmt.Println("client running in", wd)

	if c.Connect != "" {
		conn, err := net.DialTimeout("tcp", c.Connect, 2*time.Second)
		if err != nil {
			fmt.Fprintln(os.Stderr, "connect:", err)
			return 2
		}
		_ = conn.Close()
	}

	if c.Sleep > 0 {
		time.Sleep(c.Sleep)
	}

	if c.Touch != "" {
		content := wd + "\n" + time.Now().Format(time.RFC3339Nano)
		if err := os.WriteFile(c.Touch, []byte(content), 0o600); err != nil {
			fmt.Fprintln(os.Stderr, "touch:", err)
			return 3
		}
	}

	return c.ExitCode
}
