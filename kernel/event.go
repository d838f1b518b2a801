package kernel

// EventID is a handle into the event pool.
type EventID uint8

const noEvent EventID = 0xFF

type event struct {
	valid  bool
	set    bool
	waiter ThreadID
}

func (k *Kernel) createEvent() (EventID, Errno) {
	for i := range k.events {
		e := &k.events[i]
		if e.valid {
			continue
		}
		*e = event{valid: true, waiter: noThread}
		return EventID(i), ENone
	}
	k.log.WithField("max_events", len(k.events)).Debug("event pool exhausted")
	return noEvent, EAgain
}

func (k *Kernel) getEvent(id EventID) *event {
	if int(id) >= len(k.events) || !k.events[id].valid {
		k.err = EInval
		return nil
	}
	return &k.events[id]
}

// destroyEvent invalidates the handle. A registered waiter is abandoned.
func (k *Kernel) destroyEvent(id EventID) {
	e := k.getEvent(id)
	if e == nil {
		return
	}
	e.valid = false
}

func (k *Kernel) wait(id EventID) {
	e := k.getEvent(id)
	if e == nil {
		return
	}
	if e.set {
		e.set = false
		return
	}
	if e.waiter != noThread {
		k.err = EBusy
		return
	}
	e.waiter = k.current
	k.block(k.current)
}

func (k *Kernel) signal(id EventID) {
	e := k.getEvent(id)
	if e == nil {
		return
	}
	if w := e.waiter; w != noThread {
		e.waiter = noThread
		k.threads[w].state = Ready
		k.enqueue(w)
		k.tracer.ThreadSignal(w)
		return
	}
	e.set = true
}

// deliverSignals performs the signals posted from interrupt handlers.
func (k *Kernel) deliverSignals() {
	k.signalPending = false
	for i, posted := range k.pendingSignals {
		if !posted {
			continue
		}
		k.pendingSignals[i] = false
		k.signal(EventID(i))
	}
}
