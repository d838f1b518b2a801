package hal

import "bytes"

type simHAL struct {
	logger Logger
	m      *SimMachine
	sw     Switcher
}

// NewSim returns a HAL built on a SimMachine and the goroutine switcher.
func NewSim(logger Logger, cfg MachineConfig) HAL {
	if logger == nil {
		logger = discardLogger{}
	}
	return &simHAL{
		logger: logger,
		m:      NewSimMachine(cfg),
		sw:     NewSwitcher(),
	}
}

func (h *simHAL) Logger() Logger     { return h.logger }
func (h *simHAL) Machine() Machine   { return h.m }
func (h *simHAL) Switcher() Switcher { return h.sw }

type discardLogger struct{}

func (discardLogger) WriteLineString(string) {}
func (discardLogger) WriteLineBytes([]byte)  {}

// LineWriter adapts a Logger to io.Writer. Each newline-terminated line of
// input becomes one log line; a trailing partial line is written as is.
type LineWriter struct {
	L Logger
}

func (w LineWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			w.L.WriteLineBytes(p)
			break
		}
		w.L.WriteLineBytes(p[:i])
		p = p[i+1:]
	}
	return n, nil
}
