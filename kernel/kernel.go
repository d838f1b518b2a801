package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"kestrel/hal"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxThreads = 17
	DefaultMaxMutexes = 8
	DefaultMaxEvents  = 8

	// Handles are bytes and 0xFF means none.
	maxPool = 0xFF
)

// Config sizes the kernel pools and wires its diagnostics. Zero values
// select the defaults.
type Config struct {
	// MaxThreads counts the idle thread.
	MaxThreads int
	MaxMutexes int
	MaxEvents  int

	// HaltOnStall makes Run return ErrStalled once only the idle thread
	// can run and no thread sleeps. Leave it unset when interrupt handlers
	// signal events.
	HaltOnStall bool

	// Logger receives lifecycle logs. Defaults to an info-level logger
	// writing to the HAL log.
	Logger logrus.FieldLogger
	// Tracer receives instrumentation events. Defaults to NopTracer.
	Tracer Tracer
	// PanicHandler is called for the first panic recovered from a thread
	// entry. It must not panic.
	PanicHandler func(PanicInfo)
}

// Kernel is a preemptive priority scheduler with mutexes, events and
// sleep on a single simulated CPU.
//
// Kernel state is only touched by the dispatch loop and by the thread
// holding the CPU; the switcher guarantees at most one of them runs.
type Kernel struct {
	cfg    Config
	log    logrus.FieldLogger
	tracer Tracer
	m      hal.Machine
	sw     hal.Switcher

	threads []thread
	mutexes []mutex
	events  []event

	ready   readyQueue
	sleepq  waitQueue
	current ThreadID
	live    int

	overflows            uint64
	maintainSleepPending bool
	quantumExpired       bool
	signalPending        bool
	pendingSignals       []bool

	frame frame
	err   Errno

	done    chan struct{}
	started bool

	panicOnce sync.Once
	panicked  atomic.Bool
}

// New creates a kernel on h with the idle thread in slot 0.
func New(h hal.HAL, cfg Config) (*Kernel, error) {
	if cfg.MaxThreads == 0 {
		cfg.MaxThreads = DefaultMaxThreads
	}
	if cfg.MaxMutexes == 0 {
		cfg.MaxMutexes = DefaultMaxMutexes
	}
	if cfg.MaxEvents == 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if cfg.MaxThreads < 2 || cfg.MaxThreads > maxPool {
		return nil, fmt.Errorf("kernel: MaxThreads %d out of range [2, %d]", cfg.MaxThreads, maxPool)
	}
	if cfg.MaxMutexes < 0 || cfg.MaxMutexes > maxPool {
		return nil, fmt.Errorf("kernel: MaxMutexes %d out of range [0, %d]", cfg.MaxMutexes, maxPool)
	}
	if cfg.MaxEvents < 0 || cfg.MaxEvents > maxPool {
		return nil, fmt.Errorf("kernel: MaxEvents %d out of range [0, %d]", cfg.MaxEvents, maxPool)
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(hal.LineWriter{L: h.Logger()})
		cfg.Logger = l
	}
	if cfg.Tracer == nil {
		cfg.Tracer = NopTracer{}
	}

	k := &Kernel{
		cfg:            cfg,
		log:            cfg.Logger,
		tracer:         cfg.Tracer,
		m:              h.Machine(),
		sw:             h.Switcher(),
		threads:        make([]thread, cfg.MaxThreads),
		mutexes:        make([]mutex, cfg.MaxMutexes),
		events:         make([]event, cfg.MaxEvents),
		ready:          readyQueue{head: noThread, tail: noThread},
		sleepq:         newWaitQueue(),
		current:        noThread,
		pendingSignals: make([]bool, cfg.MaxEvents),
		done:           make(chan struct{}),
	}
	for i := range k.threads {
		k.threads[i].reset()
	}
	for i := range k.mutexes {
		k.mutexes[i].reset()
	}
	for i := range k.events {
		k.events[i].waiter = noThread
	}

	k.m.DisableInterrupts()
	if _, errno := k.createThread(k.idle, IdlePriority, nil); errno != ENone {
		return nil, fmt.Errorf("kernel: create idle thread: %w", errno)
	}
	return k, nil
}

// Boot creates a thread before Run starts the scheduler.
func (k *Kernel) Boot(entry Entry, prio Priority, arg any) (ThreadID, error) {
	if k.started {
		return noThread, EPerm
	}
	id, errno := k.createThread(entry, prio, arg)
	return id, errno.err()
}

// Run is the dispatch loop. It returns nil once every thread but the idle
// thread has terminated, ctx.Err() when ctx is done, or ErrStalled (see
// Config.HaltOnStall). All thread contexts are discarded on return. Run
// may be called once.
func (k *Kernel) Run(ctx context.Context) error {
	if k.started {
		return errors.New("kernel: already started")
	}
	k.started = true

	stop := context.AfterFunc(ctx, func() { close(k.done) })
	defer stop()
	defer k.shutdown()

	k.log.WithFields(logrus.Fields{
		"threads":          len(k.threads) - 1,
		"mutexes":          len(k.mutexes),
		"events":           len(k.events),
		"ticks_per_second": k.m.TicksPerSecond(),
	}).Info("kernel started")

	last := noThread
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if k.live == 0 {
			k.log.Info("all threads terminated")
			return nil
		}
		if !k.runnable(k.current) {
			k.dispatch()
		}
		if k.cfg.HaltOnStall && k.current == IdleThread && k.sleepq.empty() && !k.signalPending {
			k.log.WithField("live", k.live).Warn("no runnable threads")
			return ErrStalled
		}

		cur := k.current
		t := &k.threads[cur]
		if cur != last {
			k.tracer.ContextSwitch(last, cur)
			last = cur
		}

		t.state = Running
		k.tracer.KernelExit()
		k.sw.LeaveKernel(t.ctx)
		k.tracer.KernelEnter()
		if t.state == Running {
			t.state = Ready
		}

		switch {
		case k.maintainSleepPending:
			k.maintainSleepPending = false
			k.maintainSleep()
		case k.quantumExpired:
			k.quantumExpired = false
			k.dispatch()
		default:
			if k.signalPending {
				k.deliverSignals()
			}
			if k.frame.staged {
				k.execute(cur)
			}
		}
	}
}

func (k *Kernel) shutdown() {
	for i := range k.threads {
		t := &k.threads[i]
		if t.ctx != nil {
			k.sw.Discard(t.ctx)
			t.ctx = nil
		}
	}
}
