// Package syncbuffer holds output written by a child process while other
// goroutines inspect it.
package syncbuffer

import (
	"bytes"
	"regexp"
	"sync"
)

// SyncBuffer is safe for concurrent use. The zero value keeps everything; with
// Limit set only the most recent Limit bytes are kept.
type SyncBuffer struct {
	Limit int

	mu  sync.Mutex
	buf bytes.Buffer
	// dropped counts bytes discarded from the front, so offsets stay absolute
	dropped int64
	// scanned is, per pattern, the absolute offset of the first line not yet ruled out
	scanned map[string]int64
}

func (b *SyncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, err = b.buf.Write(p)
	if b.Limit > 0 && b.buf.Len() > b.Limit {
		excess := b.buf.Len() - b.Limit
		b.buf.Next(excess)
		b.dropped += int64(excess)
	}
	return n, err
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// Len is the number of bytes currently held.
func (b *SyncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Len()
}

// Dropped is the number of bytes discarded to stay within Limit.
func (b *SyncBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dropped
}

// MatchLine returns the first complete or partial line that matches re. Lines
// already rejected for the same pattern are not scanned again.
func (b *SyncBuffer) MatchLine(re *regexp.Regexp) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.scanned == nil {
		b.scanned = map[string]int64{}
	}
	key := re.String()

	data := b.buf.Bytes()
	start := int(b.scanned[key] - b.dropped)
	if start < 0 {
		start = 0
	}
	for start < len(data) {
		line := data[start:]
		end := bytes.IndexByte(line, '\n')
		if end >= 0 {
			line = line[:end]
		}
		line = bytes.TrimSuffix(line, []byte("\r"))
		if re.Match(line) {
			return string(line), true
		}
		if end < 0 {
			// the trailing partial line may still grow into a match
			break
		}
		start += end + 1
	}
	b.scanned[key] = b.dropped + int64(start)
	return "", false
}
