//go:build !tinygo

package kernel

import "runtime/debug"

// captureStack returns the stack of the thread goroutine that is recovering
// from a panic, for the PanicInfo handed to Config.PanicHandler.
func captureStack() []byte { return debug.Stack() }
