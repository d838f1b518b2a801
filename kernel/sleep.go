package kernel

// now samples the wide clock. An overflow that is latched but not yet
// serviced counts; if the counter wrapped between the two reads the smaller
// reading is the one taken after the wrap.
func (k *Kernel) now() Time {
	st := k.m.SleepTimer()
	t := Time{Remainder: st.Count()}
	pending := st.OverflowPending()
	t.Overflows = k.overflows
	if pending {
		t.Overflows++
		if r := st.Count(); r < t.Remainder {
			t.Remainder = r
		}
	}
	return t
}

// Now returns the current wide time.
func (k *Kernel) Now() Time { return k.now() }

func (k *Kernel) sleepNoWork() bool {
	h := k.sleepq.head
	return h == noThread || k.threads[h].deadline.Overflows > k.overflows
}

// maintainSleep wakes every due sleeper and arms the compare interrupt for
// the next one. It only runs against an overflow count that is known to be
// current and leaves a pending overflow to the overflow interrupt.
func (k *Kernel) maintainSleep() {
	k.tracer.MaintainSleepEnter()
	defer k.tracer.MaintainSleepExit()

	st := k.m.SleepTimer()
	for {
		st.Disarm()
		if k.sleepNoWork() {
			return
		}

		ticks := st.Count()
		if st.OverflowPending() {
			return
		}

		now := Time{Overflows: k.overflows, Remainder: ticks}
		for h := k.sleepq.head; h != noThread && now.Cmp(k.threads[h].deadline) >= 0; h = k.sleepq.head {
			k.waitPop(&k.sleepq)
		}
		if k.sleepNoWork() {
			return
		}

		next := k.threads[k.sleepq.head].deadline.Remainder
		ticks = st.Count()
		if st.OverflowPending() {
			return
		}
		if ticks >= next {
			continue
		}

		st.Arm(next)
		ticks = st.Count()
		if st.OverflowPending() {
			st.Disarm()
			return
		}
		if ticks >= next {
			continue
		}
		return
	}
}

func (k *Kernel) sleep(sec, nsec uint32) {
	if nsec >= 1e9 {
		k.err = EInval
		return
	}

	id := k.current
	t := &k.threads[id]
	t.deadline = k.now().Add(TicksFor(sec, nsec, k.m.TicksPerSecond()))

	q := &k.sleepq
	if q.head == noThread || t.deadline.Before(k.threads[q.head].deadline) {
		k.waitInsert(q, noThread, id)
		k.maintainSleep()
		return
	}

	loc := q.head
	for next := k.threads[loc].wnext; next != noThread; next = k.threads[loc].wnext {
		if t.deadline.Before(k.threads[next].deadline) {
			break
		}
		loc = next
	}
	k.waitInsert(q, loc, id)
}
