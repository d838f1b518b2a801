package kernel

// PanicInfo contains details about a panic recovered from a thread entry.
type PanicInfo struct {
	Thread ThreadID
	Value  any
	Stack  []byte
}

// Panicked reports whether any thread entry has panicked.
func (k *Kernel) Panicked() bool {
	return k.panicked.Load()
}

// triggerPanic reports a recovered panic. Config.PanicHandler sees only the
// first one; the panicking thread terminates either way.
func (k *Kernel) triggerPanic(info PanicInfo) {
	info.Stack = captureStack()
	k.log.WithField("thread", info.Thread).WithField("panic", info.Value).Error("thread panicked")

	k.panicOnce.Do(func() {
		k.panicked.Store(true)
		if fn := k.cfg.PanicHandler; fn != nil {
			fn(info)
		}
	})
}
