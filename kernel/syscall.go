package kernel

import "encoding/binary"

// Syscall is a trap number.
type Syscall uint8

const (
	SysYield Syscall = iota
	SysThreadCreate
	SysThreadSelf
	SysThreadSetPriority
	SysMutexCreate
	SysMutexDestroy
	SysMutexLock
	SysMutexUnlock
	SysEventCreate
	SysEventDestroy
	SysEventWait
	SysEventSignal
	SysSleep
	SysThreadSuspend
	SysThreadResume
	SysThreadGetPriority
	SysThreadTerminate

	numSyscalls
)

var syscallNames = [numSyscalls]string{
	SysYield:             "yield",
	SysThreadCreate:      "thread_create",
	SysThreadSelf:        "thread_self",
	SysThreadSetPriority: "thread_set_priority",
	SysMutexCreate:       "mutex_create",
	SysMutexDestroy:      "mutex_destroy",
	SysMutexLock:         "mutex_lock",
	SysMutexUnlock:       "mutex_unlock",
	SysEventCreate:       "event_create",
	SysEventDestroy:      "event_destroy",
	SysEventWait:         "event_wait",
	SysEventSignal:       "event_signal",
	SysSleep:             "sleep",
	SysThreadSuspend:     "thread_suspend",
	SysThreadResume:      "thread_resume",
	SysThreadGetPriority: "thread_get_priority",
	SysThreadTerminate:   "thread_terminate",
}

func (s Syscall) String() string {
	if s >= numSyscalls {
		return "unknown"
	}
	return syscallNames[s]
}

// Argument and result buffer sizes in bytes. Multi-byte fields are little
// endian.
//
//	thread_create        args: prio                 out: thread
//	thread_self          args: -                    out: thread
//	thread_set_priority  args: thread, prio
//	thread_get_priority  args: thread, effective    out: prio
//	mutex_create         args: -                    out: mutex
//	mutex_*              args: mutex
//	event_create         args: -                    out: event
//	event_signal         args: event                out: errno
//	event_*              args: event
//	sleep                args: u32 sec, u32 nsec
//	thread_suspend/resume args: thread
var syscallShapes = [numSyscalls]struct{ args, out int }{
	SysYield:             {0, 0},
	SysThreadCreate:      {1, 1},
	SysThreadSelf:        {0, 1},
	SysThreadSetPriority: {2, 0},
	SysMutexCreate:       {0, 1},
	SysMutexDestroy:      {1, 0},
	SysMutexLock:         {1, 0},
	SysMutexUnlock:       {1, 0},
	SysEventCreate:       {0, 1},
	SysEventDestroy:      {1, 0},
	SysEventWait:         {1, 0},
	SysEventSignal:       {1, 1},
	SysSleep:             {8, 0},
	SysThreadSuspend:     {1, 0},
	SysThreadResume:      {1, 0},
	SysThreadGetPriority: {2, 1},
	SysThreadTerminate:   {0, 0},
}

// frame is the staging area a thread fills before trapping. A thread entry
// cannot travel as bytes, so thread_create carries it beside the buffers.
type frame struct {
	staged bool
	num    Syscall
	args   []byte
	out    []byte
	entry  Entry
	arg    any
}

func (f *frame) valid() bool {
	if f.num >= numSyscalls {
		return false
	}
	shape := syscallShapes[f.num]
	return len(f.args) == shape.args && len(f.out) == shape.out
}

// execute runs the syscall staged by caller and records its result for the
// caller's trampoline.
func (k *Kernel) execute(caller ThreadID) {
	f := k.frame
	k.frame = frame{}
	k.err = ENone
	k.tracer.Syscall(caller, f.num)

	if !f.valid() {
		k.err = EInval
		k.threads[caller].trapErr = k.err
		return
	}

	switch f.num {
	case SysYield:
		k.dispatch()

	case SysThreadCreate:
		id, errno := k.createThread(f.entry, Priority(f.args[0]), f.arg)
		if errno != ENone {
			k.err = errno
			break
		}
		f.out[0] = byte(id)

	case SysThreadSelf:
		f.out[0] = byte(caller)

	case SysThreadSetPriority:
		k.setPriority(ThreadID(f.args[0]), Priority(f.args[1]))

	case SysThreadGetPriority:
		p := k.getPriority(ThreadID(f.args[0]), f.args[1] != 0)
		if k.err == ENone {
			f.out[0] = byte(p)
		}

	case SysThreadSuspend:
		k.suspend(ThreadID(f.args[0]))

	case SysThreadResume:
		k.resume(ThreadID(f.args[0]))

	case SysMutexCreate:
		id, errno := k.createMutex()
		if errno != ENone {
			k.err = errno
			break
		}
		f.out[0] = byte(id)

	case SysMutexDestroy:
		k.destroyMutex(MutexID(f.args[0]))

	case SysMutexLock:
		k.lock(MutexID(f.args[0]))

	case SysMutexUnlock:
		k.unlock(MutexID(f.args[0]))

	case SysEventCreate:
		id, errno := k.createEvent()
		if errno != ENone {
			k.err = errno
			break
		}
		f.out[0] = byte(id)

	case SysEventDestroy:
		k.destroyEvent(EventID(f.args[0]))

	case SysEventWait:
		k.wait(EventID(f.args[0]))

	case SysEventSignal:
		k.signal(EventID(f.args[0]))
		f.out[0] = byte(k.err)

	case SysSleep:
		sec := binary.LittleEndian.Uint32(f.args[0:4])
		nsec := binary.LittleEndian.Uint32(f.args[4:8])
		k.sleep(sec, nsec)

	case SysThreadTerminate:
		k.terminate(caller)
	}

	k.threads[caller].trapErr = k.err
}

func encodeSleep(sec, nsec uint32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], sec)
	binary.LittleEndian.PutUint32(b[4:8], nsec)
	return b
}
