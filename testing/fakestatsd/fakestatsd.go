// Package fakestatsd is a UDP statsd sink that records what the harness emits.
package fakestatsd

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
)

type FakeStatsd struct {
	connection *net.UDPConn

	mu      sync.RWMutex
	metrics []Metric
}

func New(t testing.TB) *FakeStatsd {
	t.Helper()

	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	assert.Assert(t, err)

	conn, err := net.ListenUDP("udp", addr)
	assert.Assert(t, err)

	s := &FakeStatsd{
		connection: conn,
	}
	go s.listen()
	t.Cleanup(func() {
		_ = s.connection.Close()
	})

	return s
}

func (s *FakeStatsd) Addr() string {
	return s.connection.LocalAddr().String()
}

// Metric is one datagram line, eg. "harness.phase:12|ms|#phase:client,result:success"
type Metric struct {
	Name  string
	Value string
	Type  string
	Tags  []string
}

func (s *FakeStatsd) Metrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := make([]Metric, len(s.metrics))
	copy(metrics, s.metrics)
	return metrics
}

// Named returns the recorded metrics with the given name, in arrival order.
func (s *FakeStatsd) Named(name string) []Metric {
	var found []Metric
	for _, m := range s.Metrics() {
		if m.Name == name {
			found = append(found, m)
		}
	}
	return found
}

func (s *FakeStatsd) listen() {
	buffer := make([]byte, 65535)

	for {
		n, err := s.connection.Read(buffer)
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			continue
		}

		for _, raw := range bytes.Split(buffer[:n], []byte("\n")) {
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 {
				continue
			}
			s.record(parse(string(raw)))
		}
	}
}

func (s *FakeStatsd) record(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, m)
}

func parse(raw string) Metric {
	m := Metric{}
	name, rest, _ := strings.Cut(raw, ":")
	m.Name = name

	for i, part := range strings.Split(rest, "|") {
		switch {
		case i == 0:
			m.Value = part
		case i == 1:
			m.Type = part
		case strings.HasPrefix(part, "#"):
			m.Tags = strings.Split(part[1:], ",")
		}
	}
	return m
}
