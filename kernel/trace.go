package kernel

import "github.com/sirupsen/logrus"

// Tracer receives instrumentation events from the kernel. Hooks run on the
// kernel or the current thread with interrupts disabled and must not block
// or make syscalls.
type Tracer interface {
	KernelEnter()
	KernelExit()
	UserSpaceEnter(t ThreadID)
	UserSpaceExit(t ThreadID)
	// ContextSwitch reports that the CPU passes from one thread to another.
	ContextSwitch(from, to ThreadID)
	Quantum(t ThreadID)
	SleepTimer()
	SleepOverflow()
	Syscall(t ThreadID, num Syscall)
	MaintainSleepEnter()
	MaintainSleepExit()
	// ThreadSignal reports that an event signal woke t.
	ThreadSignal(t ThreadID)
}

// NopTracer ignores every event.
type NopTracer struct{}

func (NopTracer) KernelEnter()                {}
func (NopTracer) KernelExit()                 {}
func (NopTracer) UserSpaceEnter(ThreadID)     {}
func (NopTracer) UserSpaceExit(ThreadID)      {}
func (NopTracer) ContextSwitch(_, _ ThreadID) {}
func (NopTracer) Quantum(ThreadID)            {}
func (NopTracer) SleepTimer()                 {}
func (NopTracer) SleepOverflow()              {}
func (NopTracer) Syscall(ThreadID, Syscall)   {}
func (NopTracer) MaintainSleepEnter()         {}
func (NopTracer) MaintainSleepExit()          {}
func (NopTracer) ThreadSignal(ThreadID)       {}

// LogTracer writes every event to Log at trace level. The user-space
// enter/exit pair fires on every trap and is left out unless Verbose is set.
type LogTracer struct {
	Log     logrus.Ext1FieldLogger
	Verbose bool
}

func (l LogTracer) KernelEnter() {
	if l.Verbose {
		l.Log.Trace("kernel enter")
	}
}

func (l LogTracer) KernelExit() {
	if l.Verbose {
		l.Log.Trace("kernel exit")
	}
}

func (l LogTracer) UserSpaceEnter(t ThreadID) {
	if l.Verbose {
		l.Log.WithField("thread", t).Trace("user space enter")
	}
}

func (l LogTracer) UserSpaceExit(t ThreadID) {
	if l.Verbose {
		l.Log.WithField("thread", t).Trace("user space exit")
	}
}

func (l LogTracer) ContextSwitch(from, to ThreadID) {
	l.Log.WithFields(logrus.Fields{"from": from, "to": to}).Trace("context switch")
}

func (l LogTracer) Quantum(t ThreadID) {
	l.Log.WithField("thread", t).Trace("quantum expired")
}

func (l LogTracer) SleepTimer()    { l.Log.Trace("sleep timer") }
func (l LogTracer) SleepOverflow() { l.Log.Trace("sleep overflow") }

func (l LogTracer) Syscall(t ThreadID, num Syscall) {
	l.Log.WithFields(logrus.Fields{"thread": t, "syscall": num}).Trace("syscall")
}

func (l LogTracer) MaintainSleepEnter() { l.Log.Trace("maintain sleep enter") }
func (l LogTracer) MaintainSleepExit()  { l.Log.Trace("maintain sleep exit") }

func (l LogTracer) ThreadSignal(t ThreadID) {
	l.Log.WithField("thread", t).Trace("thread signaled")
}
