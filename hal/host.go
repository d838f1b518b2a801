//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// New returns a host HAL that logs to stdout.
func New(cfg MachineConfig) HAL {
	return NewSim(&hostLogger{w: os.Stdout}, cfg)
}

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
