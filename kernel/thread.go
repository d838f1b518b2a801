package kernel

import (
	"fmt"

	"kestrel/hal"

	"github.com/sirupsen/logrus"
)

// ThreadID is a handle into the thread table.
type ThreadID uint8

// Priority orders threads for scheduling. Larger values are more urgent.
type Priority uint8

// Entry is the body of a thread.
type Entry func(arg any)

const (
	// IdleThread is the slot permanently held by the idle thread.
	IdleThread ThreadID = 0
	// IdlePriority is the priority of the idle thread. The idle thread
	// always orders below every other thread, even ones of equal priority.
	IdlePriority Priority = 0

	noThread ThreadID = 0xFF
)

func (id ThreadID) String() string {
	if id == noThread {
		return "none"
	}
	return fmt.Sprintf("t%d", uint8(id))
}

// State is the execution state of a thread.
type State uint8

const (
	Dead State = iota
	Ready
	Running
	Blocked
)

func (s State) String() string {
	switch s {
	case Dead:
		return "dead"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

type thread struct {
	state State
	ctx   hal.Context
	entry Entry
	arg   any
	idle  bool

	prio       Priority
	original   Priority
	inheriting bool
	suspended  bool

	// Ready queue link.
	next   ThreadID
	queued bool

	// Wait queue links. waitq is the queue the thread sits in, if any.
	wprev ThreadID
	wnext ThreadID
	waitq *waitQueue

	ownedHead MutexID
	ownedTail MutexID
	waitingOn MutexID

	deadline Time

	trapErr     Errno
	lastErr     Errno
	lastSyscall Syscall
}

func (t *thread) reset() {
	*t = thread{
		next:      noThread,
		wprev:     noThread,
		wnext:     noThread,
		ownedHead: noMutex,
		ownedTail: noMutex,
		waitingOn: noMutex,
	}
}

// effective returns the priority the scheduler uses; base returns the
// priority the thread would have without inheritance.
func (t *thread) effective() Priority { return t.prio }

func (t *thread) base() Priority {
	if t.inheriting {
		return t.original
	}
	return t.prio
}

// createThread allocates the first dead slot and queues the new thread.
func (k *Kernel) createThread(entry Entry, prio Priority, arg any) (ThreadID, Errno) {
	if entry == nil {
		return noThread, EInval
	}

	id := noThread
	for i := range k.threads {
		if k.threads[i].state == Dead {
			id = ThreadID(i)
			break
		}
	}
	if id == noThread {
		k.log.WithField("max_threads", len(k.threads)).Debug("thread pool exhausted")
		return noThread, EAgain
	}

	t := &k.threads[id]
	t.reset()
	t.state = Ready
	t.entry = entry
	t.arg = arg
	t.prio = prio
	t.ctx = k.sw.NewContext(func() { k.start(id) })
	if id != IdleThread {
		k.live++
	} else {
		t.idle = true
	}

	k.enqueue(id)

	k.log.WithFields(logrus.Fields{
		"thread":   id,
		"priority": prio,
	}).Debug("thread created")
	return id, ENone
}

// getThread resolves a user-supplied handle. The idle thread is not
// addressable.
func (k *Kernel) getThread(id ThreadID) *thread {
	if id == IdleThread || int(id) >= len(k.threads) {
		k.err = EInval
		return nil
	}
	t := &k.threads[id]
	if t.state == Dead {
		k.err = EInval
		return nil
	}
	return t
}

func (k *Kernel) block(id ThreadID) {
	k.threads[id].state = Blocked
	if k.current == id {
		k.dispatch()
	}
}

func (k *Kernel) setPriority(id ThreadID, prio Priority) {
	t := k.getThread(id)
	if t == nil {
		return
	}

	// An inherited priority only gives way to a higher base priority.
	if t.inheriting && t.prio >= prio {
		t.original = prio
		return
	}

	t.prio = prio
	t.inheriting = false
	if t.waitingOn != noMutex {
		k.waitPush(&k.mutexes[t.waitingOn].queue, id)
	}
	k.enqueue(id)
}

func (k *Kernel) getPriority(id ThreadID, effective bool) Priority {
	t := k.getThread(id)
	if t == nil {
		return 0
	}
	if effective {
		return t.effective()
	}
	return t.base()
}

func (k *Kernel) suspend(id ThreadID) {
	t := k.getThread(id)
	if t == nil {
		return
	}
	if t.suspended {
		k.err = EAlready
		return
	}
	t.suspended = true
	if k.current == id {
		k.dispatch()
	} else if t.queued {
		k.unlinkReady(id)
	}
}

func (k *Kernel) resume(id ThreadID) {
	t := k.getThread(id)
	if t == nil {
		return
	}
	if !t.suspended {
		k.err = EAlready
		return
	}
	t.suspended = false
	k.enqueue(id)
}

// terminate retires the current thread. Mutexes it still owns pass to their
// head waiters.
func (k *Kernel) terminate(id ThreadID) {
	t := &k.threads[id]
	t.state = Dead
	if k.current == id {
		k.dispatch()
	}

	for t.ownedHead != noMutex {
		mid := t.ownedHead
		k.unown(id, mid)
		k.handOff(mid)
	}

	k.live--
	if t.ctx != nil {
		k.sw.Discard(t.ctx)
		t.ctx = nil
	}
	t.entry, t.arg = nil, nil

	k.log.WithField("thread", id).Debug("thread terminated")
}
