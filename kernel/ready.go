package kernel

// readyQueue is a singly linked list of runnable threads in decreasing
// priority order. Its head is the current thread.
type readyQueue struct {
	head ThreadID
	tail ThreadID
}

func (k *Kernel) lowerPriority(a, b ThreadID) bool {
	ta, tb := &k.threads[a], &k.threads[b]
	return ta.prio < tb.prio || ta.idle
}

func (k *Kernel) higherPriority(a, b ThreadID) bool {
	ta, tb := &k.threads[a], &k.threads[b]
	return ta.prio > tb.prio || tb.idle
}

func (k *Kernel) equalPriority(a, b ThreadID) bool {
	ta, tb := &k.threads[a], &k.threads[b]
	return ta.prio == tb.prio && !ta.idle && !tb.idle
}

func (k *Kernel) runnable(id ThreadID) bool {
	t := &k.threads[id]
	return t.state == Ready && !t.suspended
}

// enqueue inserts or repositions id and makes the new head current. A change
// of head restarts the quantum.
func (k *Kernel) enqueue(id ThreadID) {
	prev := k.current
	k.insertReady(id)
	k.current = k.ready.head
	if k.current != prev {
		k.m.QuantumTimer().Restart()
	}
}

func (k *Kernel) insertReady(id ThreadID) {
	q := &k.ready
	t := &k.threads[id]
	if !k.runnable(id) {
		if t.queued && q.head != id {
			k.unlinkReady(id)
		}
		return
	}

	if q.head == noThread {
		t.next = noThread
		t.queued = true
		q.head, q.tail = id, id
		return
	}

	if t.queued {
		// Leave a queued thread alone while every predecessor is at least
		// as urgent and every successor at most as urgent. Equal neighbours
		// keep their rotation order.
		highBefore, lowAfter, after := true, true, false
		prev := noThread
		for loc := q.head; loc != noThread; loc = k.threads[loc].next {
			if loc == id {
				after = true
				continue
			}
			if k.threads[loc].next == id {
				prev = loc
			}
			if k.equalPriority(loc, id) {
				continue
			}
			if after {
				if k.lowerPriority(loc, id) {
					continue
				}
				lowAfter = false
				break
			} else if !k.higherPriority(loc, id) {
				highBefore = false
			}
		}
		if highBefore && lowAfter {
			return
		}
		k.unlinkReadyAfter(prev, id)
		k.insertReady(id)
		return
	}

	t.queued = true
	if k.lowerPriority(q.head, id) {
		t.next = q.head
		q.head = id
		return
	}

	after := q.head
	for loc := q.head; loc != noThread; loc = k.threads[loc].next {
		if k.lowerPriority(loc, id) {
			break
		}
		after = loc
	}
	t.next = k.threads[after].next
	k.threads[after].next = id
	if t.next == noThread {
		q.tail = id
	}
}

// unlinkReady removes a queued thread from the ready queue.
func (k *Kernel) unlinkReady(id ThreadID) {
	prev := noThread
	for loc := k.ready.head; loc != noThread && loc != id; loc = k.threads[loc].next {
		prev = loc
	}
	k.unlinkReadyAfter(prev, id)
}

func (k *Kernel) unlinkReadyAfter(prev, id ThreadID) {
	q := &k.ready
	t := &k.threads[id]
	if prev != noThread {
		k.threads[prev].next = t.next
		if t.next == noThread {
			q.tail = prev
		}
	} else {
		q.head = t.next
		if q.head == noThread {
			q.tail = noThread
		}
	}
	t.next = noThread
	t.queued = false
}

// dispatch rotates the current thread to the back of its priority band and
// selects the next runnable head. Threads that stopped being runnable drop
// out of the queue as they reach the head.
func (k *Kernel) dispatch() {
	for {
		id := k.current
		t := &k.threads[id]
		k.ready.head = t.next
		if k.ready.head == noThread {
			k.ready.tail = noThread
		}
		t.next = noThread
		t.queued = false

		k.enqueue(id)
		if k.runnable(k.current) {
			return
		}
	}
}
