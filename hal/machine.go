package hal

import "sync"

const (
	// DefaultTicksPerSecond is a 16 MHz clock behind a /64 prescaler.
	DefaultTicksPerSecond = 250000
	// DefaultQuantumTicks is 10 ms at DefaultTicksPerSecond.
	DefaultQuantumTicks = 2500
)

// MachineConfig describes a simulated machine.
type MachineConfig struct {
	// TicksPerSecond is the sleep timer rate. Zero selects
	// DefaultTicksPerSecond.
	TicksPerSecond uint32
	// QuantumTicks is the time slice in sleep timer ticks. Zero disables the
	// quantum interrupt and with it preemption.
	QuantumTicks uint32
	// Virtual runs the machine in virtual time: the clock only moves on
	// Advance, and WaitForInterrupt jumps straight to the next timer event.
	Virtual bool
}

// DefaultMachineConfig returns a preemptive real-time configuration.
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		TicksPerSecond: DefaultTicksPerSecond,
		QuantumTicks:   DefaultQuantumTicks,
	}
}

// SimMachine is a software model of a single-core microcontroller with a
// 16-bit sleep timer, a quantum timer and an external interrupt line.
//
// Interrupt flags latch the way the hardware latches them: the compare flag
// is set whenever the counter passes the compare register, even while the
// compare interrupt is disabled, and several overflows collapse into one
// pending flag.
type SimMachine struct {
	mu  sync.Mutex
	cfg MachineConfig

	now uint64
	ie  bool

	ovf        bool
	cmp        uint16
	cmpEnabled bool
	cmpFlag    bool

	quantum     uint32
	quantumFlag bool

	ext []func()

	wake chan struct{}
}

// NewSimMachine creates a machine with interrupts disabled, the way a CPU
// comes out of reset.
func NewSimMachine(cfg MachineConfig) *SimMachine {
	if cfg.TicksPerSecond == 0 {
		cfg.TicksPerSecond = DefaultTicksPerSecond
	}
	return &SimMachine{
		cfg:  cfg,
		wake: make(chan struct{}, 1),
	}
}

func (m *SimMachine) SleepTimer() SleepTimer     { return simSleepTimer{m: m} }
func (m *SimMachine) QuantumTimer() QuantumTimer { return simQuantumTimer{m: m} }
func (m *SimMachine) TicksPerSecond() uint32     { return m.cfg.TicksPerSecond }

// Config returns the machine configuration.
func (m *SimMachine) Config() MachineConfig { return m.cfg }

// Now returns the number of ticks since reset.
func (m *SimMachine) Now() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// InterruptsEnabled reports the global interrupt flag.
func (m *SimMachine) InterruptsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ie
}

func (m *SimMachine) DisableInterrupts() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.ie
	m.ie = false
	return prev
}

func (m *SimMachine) RestoreInterrupts(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ie = enabled
}

// Advance moves the clock forward by n ticks and latches every interrupt
// flag the move crosses.
func (m *SimMachine) Advance(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceLocked(n)
}

func (m *SimMachine) advanceLocked(n uint64) {
	if n == 0 {
		return
	}
	old := m.now
	m.now += n

	if old>>16 != m.now>>16 {
		m.ovf = true
	}
	if old+compareDistance(uint16(old), m.cmp) <= m.now {
		m.cmpFlag = true
	}
	if q := uint64(m.cfg.QuantumTicks); q > 0 {
		c := uint64(m.quantum) + n
		if c >= q {
			m.quantumFlag = true
		}
		m.quantum = uint32(c % q)
	}

	if m.pendingLocked() {
		m.notify()
	}
}

// compareDistance returns how many ticks pass before a counter at cur next
// equals cmp.
func compareDistance(cur, cmp uint16) uint64 {
	d := uint64(cmp - cur)
	if d == 0 {
		return 1 << 16
	}
	return d
}

func (m *SimMachine) pendingLocked() bool {
	switch {
	case m.cfg.QuantumTicks > 0 && m.quantumFlag:
		return true
	case m.cmpEnabled && m.cmpFlag:
		return true
	case m.ovf:
		return true
	}
	return len(m.ext) > 0
}

func (m *SimMachine) nextEventLocked() uint64 {
	d := uint64(1<<16) - m.now&0xFFFF
	if m.cmpEnabled {
		d = min(d, compareDistance(uint16(m.now), m.cmp))
	}
	if q := m.cfg.QuantumTicks; q > 0 {
		d = min(d, uint64(q-m.quantum))
	}
	return d
}

func (m *SimMachine) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *SimMachine) Take() (Interrupt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ie {
		return Interrupt{}, false
	}
	switch {
	case m.cfg.QuantumTicks > 0 && m.quantumFlag:
		m.quantumFlag = false
		return Interrupt{Line: IRQQuantum}, true
	case m.cmpEnabled && m.cmpFlag:
		m.cmpFlag = false
		return Interrupt{Line: IRQSleepCompare}, true
	case m.ovf:
		m.ovf = false
		return Interrupt{Line: IRQSleepOverflow}, true
	case len(m.ext) > 0:
		h := m.ext[0]
		copy(m.ext, m.ext[1:])
		m.ext[len(m.ext)-1] = nil
		m.ext = m.ext[:len(m.ext)-1]
		return Interrupt{Line: IRQExternal, Handler: h}, true
	}
	return Interrupt{}, false
}

func (m *SimMachine) WaitForInterrupt(done <-chan struct{}) bool {
	for {
		select {
		case <-done:
			return false
		default:
		}

		m.mu.Lock()
		if m.pendingLocked() {
			m.mu.Unlock()
			return true
		}
		if m.cfg.Virtual {
			m.advanceLocked(m.nextEventLocked())
			m.mu.Unlock()
			return true
		}
		m.mu.Unlock()

		select {
		case <-m.wake:
		case <-done:
			return false
		}
	}
}

func (m *SimMachine) Trigger(handler func()) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ext = append(m.ext, handler)
	m.notify()
}

type simSleepTimer struct {
	m *SimMachine
}

func (t simSleepTimer) Count() uint16 {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return uint16(t.m.now)
}

func (t simSleepTimer) OverflowPending() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.ovf
}

func (t simSleepTimer) Arm(compare uint16) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.cmp = compare
	t.m.cmpEnabled = true
	if t.m.cmpFlag {
		t.m.notify()
	}
}

func (t simSleepTimer) Disarm() {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.cmpEnabled = false
	t.m.cmpFlag = false
}

type simQuantumTimer struct {
	m *SimMachine
}

func (t simQuantumTimer) Restart() {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.quantum = 0
	t.m.quantumFlag = false
}
