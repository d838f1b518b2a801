package kernel

import (
	"math"
	"time"
)

// The methods in this file are the syscall surface. They must be called
// from a kernel thread, never from the goroutine that runs Run.

// Syscall traps with a raw syscall number and buffers. Buffers of the wrong
// length fail with EInval before anything runs. thread_create needs an
// entry and always fails here; use CreateThread.
func (k *Kernel) Syscall(num Syscall, args, out []byte) error {
	return k.trap(frame{num: num, args: args, out: out}).err()
}

// Yield rotates the caller behind the other ready threads of its priority.
func (k *Kernel) Yield() {
	k.trap(frame{num: SysYield})
}

// CreateThread starts entry(arg) on a new thread. A thread more urgent than
// the caller runs before CreateThread returns.
func (k *Kernel) CreateThread(entry Entry, prio Priority, arg any) (ThreadID, error) {
	var out [1]byte
	f := frame{
		num:   SysThreadCreate,
		args:  []byte{byte(prio)},
		out:   out[:],
		entry: entry,
		arg:   arg,
	}
	if errno := k.trap(f); errno != ENone {
		return noThread, errno
	}
	return ThreadID(out[0]), nil
}

// Self returns the caller's handle.
func (k *Kernel) Self() ThreadID {
	var out [1]byte
	k.trap(frame{num: SysThreadSelf, out: out[:]})
	return ThreadID(out[0])
}

// Exit terminates the caller. Mutexes it holds pass to their waiters.
func (k *Kernel) Exit() {
	k.trap(frame{num: SysThreadTerminate})
	panic("kernel: terminated thread resumed")
}

func (k *Kernel) SetPriority(t ThreadID, prio Priority) error {
	return k.trap(frame{num: SysThreadSetPriority, args: []byte{byte(t), byte(prio)}}).err()
}

// Priority returns the base priority of t, ignoring inheritance.
func (k *Kernel) Priority(t ThreadID) (Priority, error) {
	return k.getPriorityCall(t, false)
}

// EffectivePriority returns the priority t is scheduled at.
func (k *Kernel) EffectivePriority(t ThreadID) (Priority, error) {
	return k.getPriorityCall(t, true)
}

func (k *Kernel) getPriorityCall(t ThreadID, effective bool) (Priority, error) {
	var out [1]byte
	args := []byte{byte(t), 0}
	if effective {
		args[1] = 1
	}
	if errno := k.trap(frame{num: SysThreadGetPriority, args: args, out: out[:]}); errno != ENone {
		return 0, errno
	}
	return Priority(out[0]), nil
}

// Suspend keeps t from being scheduled until Resume. A blocked thread still
// receives its wakeup but does not run.
func (k *Kernel) Suspend(t ThreadID) error {
	return k.trap(frame{num: SysThreadSuspend, args: []byte{byte(t)}}).err()
}

func (k *Kernel) Resume(t ThreadID) error {
	return k.trap(frame{num: SysThreadResume, args: []byte{byte(t)}}).err()
}

func (k *Kernel) NewMutex() (MutexID, error) {
	var out [1]byte
	if errno := k.trap(frame{num: SysMutexCreate, out: out[:]}); errno != ENone {
		return noMutex, errno
	}
	return MutexID(out[0]), nil
}

// DestroyMutex frees m. Destroying a mutex with waiters abandons them.
func (k *Kernel) DestroyMutex(m MutexID) error {
	return k.trap(frame{num: SysMutexDestroy, args: []byte{byte(m)}}).err()
}

func (k *Kernel) Lock(m MutexID) error {
	return k.trap(frame{num: SysMutexLock, args: []byte{byte(m)}}).err()
}

func (k *Kernel) Unlock(m MutexID) error {
	return k.trap(frame{num: SysMutexUnlock, args: []byte{byte(m)}}).err()
}

func (k *Kernel) NewEvent() (EventID, error) {
	var out [1]byte
	if errno := k.trap(frame{num: SysEventCreate, out: out[:]}); errno != ENone {
		return noEvent, errno
	}
	return EventID(out[0]), nil
}

// DestroyEvent frees e. Destroying an event with a waiter abandons it.
func (k *Kernel) DestroyEvent(e EventID) error {
	return k.trap(frame{num: SysEventDestroy, args: []byte{byte(e)}}).err()
}

// Wait consumes a pending signal on e or blocks until one arrives.
func (k *Kernel) Wait(e EventID) error {
	return k.trap(frame{num: SysEventWait, args: []byte{byte(e)}}).err()
}

// Signal wakes the waiter on e or, with no waiter, leaves e signaled for
// the next Wait.
func (k *Kernel) Signal(e EventID) error {
	var out [1]byte
	return k.trap(frame{num: SysEventSignal, args: []byte{byte(e)}, out: out[:]}).err()
}

// Sleep blocks the caller for sec seconds plus nsec nanoseconds.
func (k *Kernel) Sleep(sec, nsec uint32) error {
	return k.trap(frame{num: SysSleep, args: encodeSleep(sec, nsec)}).err()
}

// SleepFor blocks the caller for d. Negative durations sleep for zero.
func (k *Kernel) SleepFor(d time.Duration) error {
	if d < 0 {
		d = 0
	}
	sec := d / time.Second
	if sec > math.MaxUint32 {
		return EInval
	}
	return k.Sleep(uint32(sec), uint32(d%time.Second))
}

// Current returns the handle of the thread holding the CPU without
// trapping.
func (k *Kernel) Current() ThreadID { return k.current }

// LastError returns the result of the caller's most recent syscall.
func (k *Kernel) LastError() Errno { return k.threads[k.current].lastErr }

// LastSyscall returns the caller's most recent syscall number.
func (k *Kernel) LastSyscall() Syscall { return k.threads[k.current].lastSyscall }
