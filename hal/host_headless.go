//go:build !tinygo

package hal

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// HeadlessConfig controls the host runner.
type HeadlessConfig struct {
	Machine MachineConfig
	// Hz is the wall-clock rate at which a real-time machine's clock is
	// advanced. Ignored in virtual mode.
	Hz int
}

// RunHeadless builds a host HAL and runs the system returned by newSystem on
// it. A real-time machine's clock is driven alongside; both stop when run
// returns or ctx is done.
func RunHeadless(ctx context.Context, newSystem func(HAL) func(context.Context) error, cfg HeadlessConfig) error {
	h := New(cfg.Machine)
	run := newSystem(h)

	g, ctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	if d, ok := h.Machine().(Driver); ok && !cfg.Machine.Virtual {
		g.Go(func() error {
			err := d.Drive(runCtx, cfg.Hz)
			if runCtx.Err() != nil && ctx.Err() == nil {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		defer stop()
		return run(ctx)
	})
	return g.Wait()
}
