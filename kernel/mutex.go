package kernel

import "math"

// MutexID is a handle into the mutex pool.
type MutexID uint8

const noMutex MutexID = 0xFF

type mutex struct {
	valid bool
	owner ThreadID
	count uint16
	queue waitQueue

	// Links in the owner's list of held mutexes.
	prev MutexID
	next MutexID
}

func (m *mutex) reset() {
	*m = mutex{
		owner: noThread,
		queue: newWaitQueue(),
		prev:  noMutex,
		next:  noMutex,
	}
}

func (k *Kernel) createMutex() (MutexID, Errno) {
	for i := range k.mutexes {
		m := &k.mutexes[i]
		if m.valid {
			continue
		}
		m.reset()
		m.valid = true
		return MutexID(i), ENone
	}
	k.log.WithField("max_mutexes", len(k.mutexes)).Debug("mutex pool exhausted")
	return noMutex, EAgain
}

func (k *Kernel) getMutex(id MutexID) *mutex {
	if int(id) >= len(k.mutexes) || !k.mutexes[id].valid {
		k.err = EInval
		return nil
	}
	return &k.mutexes[id]
}

// destroyMutex invalidates the handle. Waiters, if any, are abandoned.
func (k *Kernel) destroyMutex(id MutexID) {
	m := k.getMutex(id)
	if m == nil {
		return
	}
	m.valid = false
}

func (k *Kernel) own(tid ThreadID, mid MutexID) {
	t := &k.threads[tid]
	m := &k.mutexes[mid]
	m.next = noMutex
	if t.ownedHead == noMutex {
		m.prev = noMutex
		t.ownedHead, t.ownedTail = mid, mid
		return
	}
	k.mutexes[t.ownedTail].next = mid
	m.prev = t.ownedTail
	t.ownedTail = mid
}

func (k *Kernel) unown(tid ThreadID, mid MutexID) {
	t := &k.threads[tid]
	m := &k.mutexes[mid]
	if m.prev != noMutex {
		k.mutexes[m.prev].next = m.next
	} else {
		t.ownedHead = m.next
	}
	if m.next != noMutex {
		k.mutexes[m.next].prev = m.prev
	} else {
		t.ownedTail = m.prev
	}
	m.prev, m.next = noMutex, noMutex
}

func (k *Kernel) lock(mid MutexID) {
	m := k.getMutex(mid)
	if m == nil {
		return
	}
	cur := k.current

	if m.owner == noThread {
		m.owner = cur
		m.count = 1
		k.own(cur, mid)
		return
	}

	if m.owner == cur {
		if m.count == math.MaxUint16 {
			k.err = EAgain
			return
		}
		m.count++
		return
	}

	waiting := cur
	k.threads[waiting].waitingOn = mid
	k.waitPush(&m.queue, waiting)

	// Lend the waiter's priority down the chain of owners. The walk is
	// bounded by the pool size so a lock cycle cannot spin forever.
	prio := k.threads[waiting].effective()
	boost := m.owner
	for i := 0; i < len(k.mutexes) && boost != noThread; i++ {
		b := &k.threads[boost]
		if b.effective() >= prio {
			break
		}

		prev := b.prio
		b.prio = prio
		if !b.inheriting {
			b.inheriting = true
			b.original = prev
		}

		if b.waitingOn != noMutex {
			wm := &k.mutexes[b.waitingOn]
			k.waitPush(&wm.queue, boost)
			boost = wm.owner
			continue
		}

		k.enqueue(boost)
		break
	}
}

func (k *Kernel) unlock(mid MutexID) {
	m := k.getMutex(mid)
	if m == nil {
		return
	}
	cur := k.current
	if m.owner != cur {
		k.err = EPerm
		return
	}

	m.count--
	if m.count != 0 {
		return
	}

	k.unown(cur, mid)

	t := &k.threads[cur]
	if t.inheriting {
		t.prio = t.original
		t.inheriting = false

		// Waiters on the mutexes still held may require a smaller boost.
		var top Priority
		for o := t.ownedHead; o != noMutex; o = k.mutexes[o].next {
			h := k.mutexes[o].queue.head
			if h == noThread {
				continue
			}
			if p := k.threads[h].prio; p > top {
				top = p
			}
		}
		if top > t.prio {
			t.inheriting = true
			t.original = t.prio
			t.prio = top
		}

		k.enqueue(cur)
	}

	k.handOff(mid)
}

// handOff passes a released mutex to its head waiter, if any. Ownership
// never lapses while threads are queued.
func (k *Kernel) handOff(mid MutexID) {
	m := &k.mutexes[mid]
	next := k.waitPop(&m.queue)
	m.owner = next
	if next == noThread {
		m.count = 0
		return
	}
	k.own(next, mid)
	k.threads[next].waitingOn = noMutex
	m.count = 1
}
