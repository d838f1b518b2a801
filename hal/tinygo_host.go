//go:build tinygo && !baremetal

package hal

import (
	"context"
	"fmt"
	"runtime"
)

// New returns a TinyGo-on-host HAL.
//
// This is used by `tinygo run` targets like linux/wasm where there is no MCU
// pin mapping. The machine runs in real time, driven by a 1 kHz ticker.
func New(cfg MachineConfig) HAL {
	h := NewSim(tinyGoHostLogger{}, cfg).(*simHAL)
	if !cfg.Virtual {
		go h.m.Drive(context.Background(), 1000)
	}
	h.logger.WriteLineString(fmt.Sprintf("hal: tinygo/%s, %d ticks/s", runtime.GOOS, h.m.TicksPerSecond()))
	return h
}

type tinyGoHostLogger struct{}

func (tinyGoHostLogger) WriteLineString(s string) { println(s) }
func (tinyGoHostLogger) WriteLineBytes(b []byte)  { println(string(b)) }
