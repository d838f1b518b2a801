package kernel

import (
	"errors"
	"testing"
	"time"

	"kestrel/hal"
)

func TestSleepWakeOrder(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	var got []string
	var at []uint64
	runMain(t, k, func() {
		for _, s := range []struct {
			name string
			ms   uint32
		}{{"a", 30}, {"b", 10}, {"c", 20}, {"d", 10}} {
			s := s
			k.CreateThread(func(any) {
				k.Sleep(0, s.ms*1e6)
				got = append(got, s.name)
				at = append(at, k.Now().Ticks())
			}, 1, nil)
		}
	})
	want := []string{"b", "d", "c", "a"}
	if !equalStrings(got, want) {
		t.Fatalf("wake order = %v, want %v", got, want)
	}
	wantAt := []uint64{10, 10, 20, 30}
	for i := range wantAt {
		if at[i] != wantAt[i] {
			t.Fatalf("wake ticks = %v, want %v", at, wantAt)
		}
	}
}

func TestSleepAcrossOverflow(t *testing.T) {
	k, m := newTestKernel(t, hal.MachineConfig{}, Config{})
	var before, after Time
	runMain(t, k, func() {
		before = k.Now()
		if err := k.Sleep(70, 0); err != nil {
			t.Errorf("Sleep() error = %v", err)
		}
		after = k.Now()
	})
	if got := after.Ticks() - before.Ticks(); got != 70000 {
		t.Fatalf("slept %d ticks, want 70000", got)
	}
	if after.Overflows != 1 {
		t.Fatalf("Overflows = %d, want 1", after.Overflows)
	}
	if got := m.Now(); got != 70000 {
		t.Fatalf("machine clock = %d, want 70000", got)
	}
}

func TestSleepManyOverflows(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	var woke []uint64
	runMain(t, k, func() {
		k.CreateThread(func(any) {
			k.Sleep(300, 0)
			woke = append(woke, k.Now().Ticks())
		}, 1, nil)
		k.Sleep(131, 72e6)
		woke = append(woke, k.Now().Ticks())
	})
	want := []uint64{131072, 300000}
	if len(woke) != len(want) || woke[0] != want[0] || woke[1] != want[1] {
		t.Fatalf("wake ticks = %v, want %v", woke, want)
	}
}

func TestSleepInvalid(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	var err error
	var last Errno
	runMain(t, k, func() {
		err = k.Sleep(0, 1e9)
		last = k.LastError()
	})
	if !errors.Is(err, EInval) || last != EInval {
		t.Fatalf("Sleep(0, 1e9) = %v, LastError() = %v, want %v", err, last, EInval)
	}
}

func TestSleepZero(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	var err error
	var now uint64
	runMain(t, k, func() {
		err = k.Sleep(0, 0)
		now = k.Now().Ticks()
	})
	if err != nil || now != 0 {
		t.Fatalf("Sleep(0, 0) = %v at %d, want nil at 0", err, now)
	}
}

func TestSleepFor(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{}, Config{})
	var got []uint64
	runMain(t, k, func() {
		k.SleepFor(15 * time.Millisecond)
		got = append(got, k.Now().Ticks())
		k.SleepFor(-time.Second)
		got = append(got, k.Now().Ticks())
		k.SleepFor(1500 * time.Millisecond)
		got = append(got, k.Now().Ticks())
	})
	want := []uint64{15, 15, 1515}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ticks = %v, want %v", got, want)
		}
	}
}

func TestSleepWithQuantum(t *testing.T) {
	k, _ := newTestKernel(t, hal.MachineConfig{QuantumTicks: 7}, Config{})
	var woke uint64
	runMain(t, k, func() {
		k.Sleep(0, 100e6)
		woke = k.Now().Ticks()
	})
	if woke != 100 {
		t.Fatalf("woke at %d, want 100", woke)
	}
}

// scriptedTimer replays counter readings so a test can place the overflow
// between the two reads in now.
type scriptedTimer struct {
	counts  []uint16
	pending bool
}

func (s *scriptedTimer) Count() uint16 {
	c := s.counts[0]
	if len(s.counts) > 1 {
		s.counts = s.counts[1:]
	}
	return c
}

func (s *scriptedTimer) OverflowPending() bool { return s.pending }
func (s *scriptedTimer) Arm(uint16)            {}
func (s *scriptedTimer) Disarm()               {}

type scriptedMachine struct {
	hal.Machine
	st hal.SleepTimer
}

func (m scriptedMachine) SleepTimer() hal.SleepTimer { return m.st }

func TestNowOverflowRace(t *testing.T) {
	tests := []struct {
		name    string
		counts  []uint16
		pending bool
		want    Time
	}{
		{"no overflow", []uint16{0xFFFE}, false, Time{Overflows: 5, Remainder: 0xFFFE}},
		{"wrapped between reads", []uint16{0xFFFE, 3}, true, Time{Overflows: 6, Remainder: 3}},
		{"wrapped before first read", []uint16{2, 3}, true, Time{Overflows: 6, Remainder: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, m := newTestKernel(t, hal.MachineConfig{}, Config{})
			k.overflows = 5
			k.m = scriptedMachine{Machine: m, st: &scriptedTimer{counts: tt.counts, pending: tt.pending}}
			if got := k.now(); got != tt.want {
				t.Fatalf("now() = %v, want %v", got, tt.want)
			}
		})
	}
}
