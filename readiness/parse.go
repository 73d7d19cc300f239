package readiness

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
)

var Modes = []string{"delay", "marker", "tcp", "http"}

// Parse builds a waiter from command line values. The target is a regular
// expression for marker, host:port for tcp and a URL for http.
func Parse(mode, target string, delay, timeout time.Duration) (Waiter, error) {
	switch mode {
	case "", "delay":
		if delay < 0 {
			return nil, fmt.Errorf("negative ready delay: %s", delay)
		}
		return Delay{Duration: delay}, nil
	case "marker":
		if target == "" {
			return nil, fmt.Errorf("ready mode marker needs a pattern")
		}
		re, err := regexp.Compile(target)
		if err != nil {
			return nil, fmt.Errorf("bad ready marker: %w", err)
		}
		return Marker{Pattern: re, Timeout: timeout}, nil
	case "tcp":
		if target == "" {
			return nil, fmt.Errorf("ready mode tcp needs an address")
		}
		return TCP{Addr: target, Timeout: timeout}, nil
	case "http":
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("bad ready url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("ready url must be http or https: %q", target)
		}
		return HTTP{URL: target, Timeout: timeout}, nil
	}
	return nil, fmt.Errorf("unknown ready mode %q", mode)
}
