package hal

import (
	"context"
	"fmt"
	"time"
)

// Driver is implemented by machines whose clock follows wall time.
type Driver interface {
	Drive(ctx context.Context, hz int) error
}

// Drive advances a real-time machine's clock from a wall-clock ticker until
// ctx is done. hz is the ticker rate; the clock moves in bursts of the ticks
// that elapsed since the previous beat.
func (m *SimMachine) Drive(ctx context.Context, hz int) error {
	if m.cfg.Virtual {
		return fmt.Errorf("hal: drive of virtual machine")
	}
	if hz <= 0 {
		hz = 1000
	}
	d := time.Second / time.Duration(hz)
	if d <= 0 {
		return fmt.Errorf("invalid drive hz: %d", hz)
	}
	tick := time.Second / time.Duration(m.cfg.TicksPerSecond)
	if tick <= 0 {
		return fmt.Errorf("invalid ticks per second: %d", m.cfg.TicksPerSecond)
	}

	t := time.NewTicker(d)
	defer t.Stop()

	last := time.Now()
	var acc time.Duration
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			acc += now.Sub(last)
			last = now

			n := acc / tick
			if n == 0 {
				continue
			}
			acc %= tick
			m.Advance(uint64(n))
		}
	}
}
