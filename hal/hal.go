package hal

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// SleepTimer is the 16-bit free-running counter behind the sleep facility.
//
// The overflow interrupt is always enabled. The compare interrupt is enabled
// by Arm and disabled by Disarm.
type SleepTimer interface {
	// Count reads the counter.
	Count() uint16
	// OverflowPending reports whether the overflow flag is latched.
	OverflowPending() bool
	// Arm sets the compare register and enables the compare interrupt.
	Arm(compare uint16)
	// Disarm disables the compare interrupt and clears its flag.
	Disarm()
}

// QuantumTimer raises a periodic compare interrupt that marks the end of a
// time slice.
type QuantumTimer interface {
	// Restart zeroes the counter and clears a pending compare flag.
	Restart()
}

// IRQ identifies an interrupt source. Lower values are serviced first.
type IRQ uint8

const (
	IRQNone IRQ = iota
	IRQQuantum
	IRQSleepCompare
	IRQSleepOverflow
	IRQExternal
)

func (q IRQ) String() string {
	switch q {
	case IRQNone:
		return "none"
	case IRQQuantum:
		return "quantum"
	case IRQSleepCompare:
		return "sleep_compare"
	case IRQSleepOverflow:
		return "sleep_overflow"
	case IRQExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Interrupt is an acknowledged interrupt request.
//
// Handler is set only for IRQExternal.
type Interrupt struct {
	Line    IRQ
	Handler func()
}

// Machine is the CPU-side view of the hardware the kernel runs on.
type Machine interface {
	SleepTimer() SleepTimer
	QuantumTimer() QuantumTimer
	TicksPerSecond() uint32

	// DisableInterrupts clears the global interrupt flag and returns its
	// previous state.
	DisableInterrupts() bool
	// RestoreInterrupts sets the global interrupt flag to enabled.
	RestoreInterrupts(enabled bool)
	// Take acknowledges the highest-priority pending interrupt. It reports
	// false when interrupts are disabled or nothing is pending.
	Take() (Interrupt, bool)
	// WaitForInterrupt parks the CPU until an interrupt is pending. It
	// reports false if done is closed first.
	WaitForInterrupt(done <-chan struct{}) bool
	// Trigger raises an external interrupt whose handler runs in interrupt
	// context. Safe to call from any goroutine.
	Trigger(handler func())
}

// Context is a saved execution context. Only the Switcher that produced it
// may inspect it.
type Context interface{}

// Switcher moves the CPU between the kernel context and thread contexts.
type Switcher interface {
	// NewContext returns a context that runs start the first time it is
	// resumed.
	NewContext(start func()) Context
	// EnterKernel saves c, which must be the running thread context, and
	// resumes the kernel. It returns when c is resumed again.
	EnterKernel(c Context)
	// LeaveKernel saves the kernel context and resumes c. It returns when a
	// thread enters the kernel.
	LeaveKernel(c Context)
	// Discard releases c. c is never resumed again.
	Discard(c Context)
}

// HAL provides the only contact point between the kernel and the outside
// world.
type HAL interface {
	Logger() Logger
	Machine() Machine
	Switcher() Switcher
}
