package kernel

import "kestrel/hal"

// trap is the syscall trampoline. It runs on the calling thread, stages f
// with interrupts off and switches to the kernel. The trap result is copied
// into the thread's last-error slot.
func (k *Kernel) trap(f frame) Errno {
	k.Checkpoint()

	prev := k.m.DisableInterrupts()
	id := k.current
	f.staged = true
	k.frame = f
	k.enterKernel(id)

	t := &k.threads[id]
	res := t.trapErr
	t.lastErr = res
	t.lastSyscall = f.num

	k.m.RestoreInterrupts(prev)
	k.Checkpoint()
	return res
}

// enterKernel suspends the running thread id and resumes the dispatch loop.
func (k *Kernel) enterKernel(id ThreadID) {
	k.tracer.UserSpaceExit(id)
	k.sw.EnterKernel(k.threads[id].ctx)
	k.tracer.UserSpaceEnter(id)
}

// Checkpoint services pending interrupts on the calling thread. Threads on a
// simulated machine that compute for long stretches without syscalls call it
// to stay preemptible.
func (k *Kernel) Checkpoint() {
	for {
		irq, ok := k.m.Take()
		if !ok {
			return
		}
		k.m.DisableInterrupts()
		k.interrupt(irq)
		k.m.RestoreInterrupts(true)
	}
}

func (k *Kernel) interrupt(irq hal.Interrupt) {
	switch irq.Line {
	case hal.IRQQuantum:
		k.tracer.Quantum(k.current)
		k.quantumExpired = true
		k.enterKernel(k.current)

	case hal.IRQSleepOverflow:
		k.tracer.SleepOverflow()
		k.overflows++
		if k.sleepNoWork() {
			return
		}
		k.maintainSleepPending = true
		k.enterKernel(k.current)

	case hal.IRQSleepCompare:
		k.tracer.SleepTimer()
		k.maintainSleepPending = true
		k.enterKernel(k.current)

	case hal.IRQExternal:
		if irq.Handler != nil {
			irq.Handler()
		}
		if k.signalPending {
			k.enterKernel(k.current)
		}
	}
}

// SignalFromISR posts a signal on e from an interrupt handler. The signal is
// performed by the kernel before the interrupted thread resumes. It never
// touches any thread's last-error slot.
func (k *Kernel) SignalFromISR(e EventID) Errno {
	if int(e) >= len(k.events) || !k.events[e].valid {
		return EInval
	}
	k.pendingSignals[e] = true
	k.signalPending = true
	return ENone
}

// start is the first code a new thread context runs.
func (k *Kernel) start(id ThreadID) {
	k.tracer.UserSpaceEnter(id)
	k.m.RestoreInterrupts(true)
	k.Checkpoint()

	k.runEntry(id)
	k.Exit()
}

func (k *Kernel) runEntry(id ThreadID) {
	defer func() {
		if r := recover(); r != nil {
			k.triggerPanic(PanicInfo{Thread: id, Value: r})
		}
	}()
	t := &k.threads[id]
	t.entry(t.arg)
}

// idle runs when nothing else can. It parks the CPU until an interrupt is
// pending and yields once the kernel is shutting down.
func (k *Kernel) idle(any) {
	for {
		if !k.m.WaitForInterrupt(k.done) {
			k.Yield()
			continue
		}
		k.Checkpoint()
	}
}
