package kernel

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"kestrel/hal"

	"github.com/sirupsen/logrus"
)

// newTestKernel returns a kernel on a virtual machine where one tick is one
// millisecond and preemption is off unless mc asks for it.
func newTestKernel(t *testing.T, mc hal.MachineConfig, cfg Config) (*Kernel, *hal.SimMachine) {
	t.Helper()
	mc.Virtual = true
	if mc.TicksPerSecond == 0 {
		mc.TicksPerSecond = 1000
	}
	h := hal.NewSim(nil, mc)
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}
	cfg.HaltOnStall = true

	k, err := New(h, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return k, h.Machine().(*hal.SimMachine)
}

func runKernel(t *testing.T, k *Kernel) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return k.Run(ctx)
}

// runMain boots main at priority 0, so every thread it creates preempts it,
// and runs the kernel to completion.
func runMain(t *testing.T, k *Kernel, main func()) {
	t.Helper()
	if _, err := k.Boot(func(any) { main() }, 0, nil); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if err := runKernel(t, k); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	h := hal.NewSim(nil, hal.MachineConfig{Virtual: true})
	tests := []Config{
		{MaxThreads: 1},
		{MaxThreads: 256},
		{MaxMutexes: -1},
		{MaxEvents: 300},
	}
	for _, cfg := range tests {
		if _, err := New(h, cfg); err == nil {
			t.Fatalf("New(%+v) error = nil, want error", cfg)
		}
	}
}

func TestRunReturnsWhenThreadsFinish(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	ran := false
	runMain(t, k, func() { ran = true })
	if !ran {
		t.Fatal("main did not run")
	}
	if _, err := k.Boot(func(any) {}, 1, nil); !errors.Is(err, EPerm) {
		t.Fatalf("Boot() after Run error = %v, want %v", err, EPerm)
	}
	if err := k.Run(context.Background()); err == nil {
		t.Fatal("second Run() = nil, want error")
	}
}

func TestRunWithoutThreads(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	if err := runKernel(t, k); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
}

func TestRunStalls(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	_, err := k.Boot(func(any) {
		e, err := k.NewEvent()
		if err != nil {
			t.Errorf("NewEvent() error = %v", err)
			return
		}
		k.Wait(e)
	}, 1, nil)
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if err := runKernel(t, k); !errors.Is(err, ErrStalled) {
		t.Fatalf("Run() = %v, want %v", err, ErrStalled)
	}
}

func TestRunCanceled(t *testing.T) {
	h := hal.NewSim(nil, hal.MachineConfig{Virtual: true, TicksPerSecond: 1000})
	l := logrus.New()
	l.SetOutput(io.Discard)
	k, err := New(h, Config{Logger: l})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	// Without HaltOnStall a thread blocked forever leaves the idle thread
	// spinning through virtual time until the context ends.
	k.Boot(func(any) {
		e, _ := k.NewEvent()
		k.Wait(e)
	}, 1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := k.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestThreadHandlesReused(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{MaxThreads: 4})
	var first, second []ThreadID
	var full error
	runMain(t, k, func() {
		self := k.Self()
		for i := 0; i < 2; i++ {
			// Equal priority: the new threads wait for main to block.
			id, err := k.CreateThread(func(any) {}, 0, nil)
			if err != nil {
				t.Errorf("CreateThread() error = %v", err)
				return
			}
			first = append(first, id)
		}
		_, full = k.CreateThread(func(any) {}, 0, nil)

		k.Sleep(0, 1e6)

		id, err := k.CreateThread(func(any) {}, 0, nil)
		if err != nil {
			t.Errorf("CreateThread() after exit error = %v", err)
			return
		}
		second = append(second, id)
		if id == self {
			t.Errorf("CreateThread() = %v, the caller's handle", id)
		}
	})

	if !errors.Is(full, EAgain) {
		t.Fatalf("CreateThread() on full table error = %v, want %v", full, EAgain)
	}
	if len(first) != 2 || first[0] == first[1] {
		t.Fatalf("handles = %v, want two distinct", first)
	}
	if len(second) != 1 || (second[0] != first[0] && second[0] != first[1]) {
		t.Fatalf("reused handle = %v, want one of %v", second, first)
	}
}

func TestCreateThreadNilEntry(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	var err error
	runMain(t, k, func() {
		_, err = k.CreateThread(nil, 1, nil)
	})
	if !errors.Is(err, EInval) {
		t.Fatalf("CreateThread(nil) error = %v, want %v", err, EInval)
	}
}

func TestThreadHandleValidation(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{MaxThreads: 4})
	var errs []error
	runMain(t, k, func() {
		errs = append(errs,
			k.Suspend(IdleThread),
			k.Resume(ThreadID(4)),
			k.SetPriority(ThreadID(3), 1), // dead slot
		)
		_, err := k.Priority(ThreadID(200))
		errs = append(errs, err)
	})
	for i, err := range errs {
		if !errors.Is(err, EInval) {
			t.Fatalf("call %d error = %v, want %v", i, err, EInval)
		}
	}
}

func TestSuspendResume(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	var got []string
	var errResume, errSuspend error
	runMain(t, k, func() {
		w, _ := k.CreateThread(func(any) {
			got = append(got, "w1")
			k.Suspend(k.Self())
			got = append(got, "w2")
		}, 1, nil)

		got = append(got, "main")
		errSuspend = k.Suspend(w)
		if err := k.Resume(w); err != nil {
			t.Errorf("Resume() error = %v", err)
		}
		errResume = k.Resume(w)
		got = append(got, "end")
	})

	want := []string{"w1", "main", "w2", "end"}
	if !equalStrings(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if !errors.Is(errSuspend, EAlready) {
		t.Fatalf("Suspend() of suspended thread error = %v, want %v", errSuspend, EAlready)
	}
	if !errors.Is(errResume, EInval) {
		t.Fatalf("Resume() of exited thread error = %v, want %v", errResume, EInval)
	}
}

func TestSuspendReadyThreadSkipped(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	var got []string
	runMain(t, k, func() {
		// Same priority as main: w stays queued behind it.
		w, _ := k.CreateThread(func(any) { got = append(got, "w") }, 0, nil)
		if err := k.Suspend(w); err != nil {
			t.Errorf("Suspend() error = %v", err)
		}
		k.Yield()
		got = append(got, "main")
		k.Resume(w)
		k.Yield()
		got = append(got, "end")
	})
	want := []string{"main", "w", "end"}
	if !equalStrings(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestSetPriority(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	var got []string
	runMain(t, k, func() {
		w, _ := k.CreateThread(func(any) {
			got = append(got, "w")
		}, 0, nil)
		got = append(got, "main")
		if err := k.SetPriority(w, 5); err != nil {
			t.Errorf("SetPriority() error = %v", err)
		}
		got = append(got, "end")
	})
	want := []string{"main", "w", "end"}
	if !equalStrings(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestLoweringOwnPriorityYields(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	var got []string
	runMain(t, k, func() {
		self := k.Self()
		k.SetPriority(self, 2)
		k.CreateThread(func(any) { got = append(got, "w") }, 1, nil)
		got = append(got, "main")
		k.SetPriority(self, 0)
		got = append(got, "end")
	})
	want := []string{"main", "w", "end"}
	if !equalStrings(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestYieldRoundRobin(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	var got []string
	for _, name := range []string{"A", "B", "C"} {
		name := name
		_, err := k.Boot(func(any) {
			for i := 0; i < 2; i++ {
				got = append(got, name)
				k.Yield()
			}
		}, 1, nil)
		if err != nil {
			t.Fatalf("Boot() error = %v", err)
		}
	}
	if err := runKernel(t, k); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	want := []string{"A", "B", "C", "A", "B", "C"}
	if !equalStrings(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestQuantumRoundRobin(t *testing.T) {
	k, m := newTestKernel(t, hal.MachineConfig{QuantumTicks: 10}, Config{})
	var got []string
	for _, name := range []string{"A", "B"} {
		name := name
		k.Boot(func(any) {
			for i := 0; i < 3; i++ {
				got = append(got, name)
				// Burn a full time slice.
				m.Advance(10)
				k.Checkpoint()
			}
		}, 1, nil)
	}
	if err := runKernel(t, k); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	want := []string{"A", "B", "A", "B", "A", "B"}
	if !equalStrings(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestQuantumDoesNotPreemptHigherPriority(t *testing.T) {
	k, m := newTestKernel(t, hal.MachineConfig{QuantumTicks: 10}, Config{})
	var got []string
	k.Boot(func(any) {
		for i := 0; i < 3; i++ {
			got = append(got, "hi")
			m.Advance(10)
			k.Checkpoint()
		}
	}, 2, nil)
	k.Boot(func(any) { got = append(got, "lo") }, 1, nil)
	if err := runKernel(t, k); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	want := []string{"hi", "hi", "hi", "lo"}
	if !equalStrings(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestPanicTerminatesThread(t *testing.T) {
	var infos []PanicInfo
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{
		PanicHandler: func(info PanicInfo) { infos = append(infos, info) },
	})
	var bad ThreadID
	after := false
	runMain(t, k, func() {
		m, _ := k.NewMutex()
		bad, _ = k.CreateThread(func(any) {
			k.Lock(m)
			panic("boom")
		}, 1, nil)
		k.CreateThread(func(any) { panic("second") }, 1, nil)
		// The panicking thread released m as it died.
		if err := k.Lock(m); err != nil {
			t.Errorf("Lock() after owner panic error = %v", err)
		}
		after = true
	})

	if !after {
		t.Fatal("main did not survive the panic")
	}
	if !k.Panicked() {
		t.Fatal("Panicked() = false, want true")
	}
	if len(infos) != 1 {
		t.Fatalf("PanicHandler calls = %d, want 1", len(infos))
	}
	if infos[0].Thread != bad || infos[0].Value != "boom" {
		t.Fatalf("PanicInfo = {%v %v}, want {%v boom}", infos[0].Thread, infos[0].Value, bad)
	}
	if len(infos[0].Stack) == 0 {
		t.Fatal("PanicInfo.Stack empty")
	}
}

func TestTracerSeesSyscalls(t *testing.T) {
	tr := &countTracer{}
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{Tracer: tr})
	runMain(t, k, func() {
		k.Yield()
		k.Sleep(0, 5e6)
	})
	if tr.syscalls[SysYield] != 1 || tr.syscalls[SysSleep] != 1 || tr.syscalls[SysThreadTerminate] != 1 {
		t.Fatalf("syscalls = %v", tr.syscalls)
	}
	if tr.maintain == 0 {
		t.Fatal("MaintainSleepEnter not called")
	}
	if tr.switches == 0 {
		t.Fatal("ContextSwitch not called")
	}
}

type countTracer struct {
	NopTracer
	syscalls map[Syscall]int
	maintain int
	switches int
}

func (c *countTracer) Syscall(_ ThreadID, num Syscall) {
	if c.syscalls == nil {
		c.syscalls = make(map[Syscall]int)
	}
	c.syscalls[num]++
}

func (c *countTracer) MaintainSleepEnter()         { c.maintain++ }
func (c *countTracer) ContextSwitch(_, _ ThreadID) { c.switches++ }

func TestLogTracer(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.TraceLevel)
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{Tracer: LogTracer{Log: l, Verbose: true}})
	runMain(t, k, func() { k.Sleep(0, 1e6) })
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
