package app

import (
	"sort"
	"time"

	"kestrel/hal"
	"kestrel/kernel"
)

// Scenario is a demo workload. Its threads record the order in which they
// reach their checkpoints; a run passes when the order matches Want.
type Scenario struct {
	Name        string
	Description string
	Want        []string
	main        func(e *env)
}

// env is what a scenario's boot thread gets to work with.
type env struct {
	k   *kernel.Kernel
	m   hal.Machine
	rec *recorder
}

func (e *env) spawn(name string, prio kernel.Priority, body func()) kernel.ThreadID {
	id, err := e.k.CreateThread(func(any) { body() }, prio, nil)
	if err != nil {
		e.rec.fail(name, err)
	}
	return id
}

// recorder collects segment labels, folding repeats of the same label.
type recorder struct {
	got  []string
	errs []string
}

func (r *recorder) mark(label string) {
	if n := len(r.got); n > 0 && r.got[n-1] == label {
		return
	}
	r.got = append(r.got, label)
}

func (r *recorder) fail(who string, err error) {
	r.errs = append(r.errs, who+": "+err.Error())
}

// DefaultScenario is run when none is named.
const DefaultScenario = "mutex-event"

var scenarios = map[string]*Scenario{
	"mutex-event": {
		Name:        "mutex-event",
		Description: "P3 holds a mutex while waiting on an event that P2 signals; P1 queues on the mutex",
		Want:        []string{"P1", "P2", "P3", "P1", "P2", "P3", "P1"},
		main:        mutexEvent,
	},
	"suspend-resume": {
		Name:        "suspend-resume",
		Description: "P3 suspends itself while holding a mutex until P2 resumes it",
		Want:        []string{"P1", "P2", "P3", "P1", "P2", "P3", "P1"},
		main:        suspendResume,
	},
	"chained-mutex": {
		Name:        "chained-mutex",
		Description: "P2 holds M1 and queues on M2 held by P3; P1 queues on M1",
		Want:        []string{"P1", "P2", "P3", "P2", "P1", "P3", "P2", "P1"},
		main:        chainedMutex,
	},
	"isr-signal": {
		Name:        "isr-signal",
		Description: "an external interrupt signals P0, which signals P2 and P1 in turn",
		Want:        []string{"P1", "P2", "P3", "TIMER", "P0", "P2", "P1"},
		main:        isrSignal,
	},
	"panic": {
		Name:        "panic",
		Description: "P2 panics while holding a mutex; P1 inherits the mutex",
		Want:        []string{"P2", "P1", "P1 locked"},
		main:        panicking,
	},
}

// Scenarios lists the registered scenarios by name.
func Scenarios() []*Scenario {
	out := make([]*Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the named scenario.
func Lookup(name string) (*Scenario, bool) {
	s, ok := scenarios[name]
	return s, ok
}

func ms(n uint32) uint32 { return n * 1e6 }

func mutexEvent(e *env) {
	k, rec := e.k, e.rec
	m, err := k.NewMutex()
	if err != nil {
		rec.fail("main", err)
		return
	}
	ev, err := k.NewEvent()
	if err != nil {
		rec.fail("main", err)
		return
	}

	e.spawn("P1", 1, func() {
		rec.mark("P1")
		k.Sleep(0, ms(100))
		rec.mark("P1")
		k.Lock(m)
		rec.mark("P1")
		k.Unlock(m)
	})
	e.spawn("P2", 2, func() {
		rec.mark("P2")
		k.Sleep(0, ms(200))
		rec.mark("P2")
		k.Signal(ev)
	})
	e.spawn("P3", 3, func() {
		rec.mark("P3")
		k.Lock(m)
		k.Wait(ev)
		rec.mark("P3")
		k.Unlock(m)
	})
}

func suspendResume(e *env) {
	k, rec := e.k, e.rec
	m, err := k.NewMutex()
	if err != nil {
		rec.fail("main", err)
		return
	}

	var p3 kernel.ThreadID
	e.spawn("P1", 1, func() {
		rec.mark("P1")
		k.Sleep(0, ms(100))
		rec.mark("P1")
		k.Lock(m)
		rec.mark("P1")
		k.Unlock(m)
	})
	e.spawn("P2", 2, func() {
		rec.mark("P2")
		k.Sleep(0, ms(200))
		rec.mark("P2")
		if err := k.Resume(p3); err != nil {
			rec.fail("P2", err)
		}
	})
	p3 = e.spawn("P3", 3, func() {
		rec.mark("P3")
		k.Lock(m)
		k.Suspend(k.Self())
		rec.mark("P3")
		k.Unlock(m)
	})
}

func chainedMutex(e *env) {
	k, rec := e.k, e.rec
	m1, err := k.NewMutex()
	if err != nil {
		rec.fail("main", err)
		return
	}
	m2, err := k.NewMutex()
	if err != nil {
		rec.fail("main", err)
		return
	}

	e.spawn("P1", 1, func() {
		rec.mark("P1")
		k.Sleep(0, ms(30))
		rec.mark("P1")
		k.Lock(m1)
		rec.mark("P1")
		k.Unlock(m1)
	})
	e.spawn("P2", 2, func() {
		rec.mark("P2")
		k.Lock(m1)
		k.Sleep(0, ms(20))
		rec.mark("P2")
		k.Lock(m2)
		rec.mark("P2")
		k.Sleep(0, ms(10))
		rec.mark("P2")
		k.Unlock(m2)
		k.Unlock(m1)
	})
	e.spawn("P3", 3, func() {
		rec.mark("P3")
		k.Sleep(0, ms(10))
		rec.mark("P3")
		k.Lock(m2)
		k.Sleep(0, ms(25))
		rec.mark("P3")
		k.Unlock(m2)
	})
}

// isrSignal raises an external interrupt from a wall-clock timer while P3
// computes. P3 polls for interrupts between steps of its loop.
func isrSignal(e *env) {
	k, rec := e.k, e.rec
	var evs [3]kernel.EventID
	for i := range evs {
		id, err := k.NewEvent()
		if err != nil {
			rec.fail("main", err)
			return
		}
		evs[i] = id
	}
	evt1, evt2, evt3 := evs[0], evs[1], evs[2]

	var fired bool
	handler := func() {
		rec.mark("TIMER")
		fired = true
		if errno := k.SignalFromISR(evt3); errno != kernel.ENone {
			rec.fail("TIMER", errno)
		}
	}

	e.spawn("P1", 1, func() {
		rec.mark("P1")
		k.Wait(evt1)
		rec.mark("P1")
	})
	e.spawn("P2", 2, func() {
		rec.mark("P2")
		k.Wait(evt2)
		rec.mark("P2")
	})
	e.spawn("P0", 0, func() {
		k.Wait(evt3)
		rec.mark("P0")
		k.Signal(evt2)
		k.Signal(evt1)
	})
	e.spawn("P3", 3, func() {
		rec.mark("P3")
		time.AfterFunc(100*time.Millisecond, func() { e.m.Trigger(handler) })
		for !fired {
			k.Checkpoint()
			time.Sleep(time.Millisecond)
		}
	})
}

// panicking shows a thread dying with a mutex held: the kernel terminates
// it and hands the mutex to the waiter.
func panicking(e *env) {
	k, rec := e.k, e.rec
	m, err := k.NewMutex()
	if err != nil {
		rec.fail("main", err)
		return
	}
	e.spawn("P2", 2, func() {
		rec.mark("P2")
		k.Lock(m)
		k.Sleep(0, ms(10))
		panic("P2 gave up")
	})
	e.spawn("P1", 1, func() {
		rec.mark("P1")
		if err := k.Lock(m); err != nil {
			rec.fail("P1", err)
			return
		}
		rec.mark("P1 locked")
		k.Unlock(m)
	})
}
