package kernel

// waitQueue is a doubly linked list of blocked threads threaded through the
// thread table. Mutex queues keep decreasing priority order; the sleep queue
// keeps increasing deadline order.
type waitQueue struct {
	head ThreadID
	tail ThreadID
}

func newWaitQueue() waitQueue {
	return waitQueue{head: noThread, tail: noThread}
}

func (q *waitQueue) empty() bool { return q.head == noThread }

// waitInsert blocks id and links it into q after the given thread, or at
// the head when after is noThread.
func (k *Kernel) waitInsert(q *waitQueue, after, id ThreadID) {
	k.block(id)

	t := &k.threads[id]
	if after != noThread {
		a := &k.threads[after]
		t.wnext = a.wnext
		t.wprev = after
		a.wnext = id
	} else {
		t.wnext = q.head
		t.wprev = noThread
		q.head = id
	}
	if t.wnext != noThread {
		k.threads[t.wnext].wprev = id
	} else {
		q.tail = id
	}
	t.waitq = q
}

// waitRemove unlinks id from whatever wait queue holds it.
func (k *Kernel) waitRemove(id ThreadID) {
	t := &k.threads[id]
	q := t.waitq
	if q == nil {
		return
	}
	if t.wprev != noThread {
		k.threads[t.wprev].wnext = t.wnext
	} else {
		q.head = t.wnext
	}
	if t.wnext != noThread {
		k.threads[t.wnext].wprev = t.wprev
	} else {
		q.tail = t.wprev
	}
	t.wprev, t.wnext, t.waitq = noThread, noThread, nil
}

// waitPop removes the head of q and makes it ready.
func (k *Kernel) waitPop(q *waitQueue) ThreadID {
	id := q.head
	if id == noThread {
		return noThread
	}
	k.waitRemove(id)
	k.threads[id].state = Ready
	k.enqueue(id)
	return id
}

// waitPush places id in q by priority, behind threads of equal priority.
// A thread already in q is repositioned.
func (k *Kernel) waitPush(q *waitQueue, id ThreadID) {
	k.waitRemove(id)

	prio := k.threads[id].prio
	if q.head == noThread || k.threads[q.head].prio < prio {
		k.waitInsert(q, noThread, id)
		return
	}
	loc := q.head
	for next := k.threads[loc].wnext; next != noThread; next = k.threads[loc].wnext {
		if k.threads[next].prio < prio {
			break
		}
		loc = next
	}
	k.waitInsert(q, loc, id)
}
