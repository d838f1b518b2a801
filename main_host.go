//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"kestrel/app"
	"kestrel/hal"
)

func main() {
	var cfg hal.HeadlessConfig
	var acfg app.Config
	var list bool
	var timeout time.Duration
	var tps, quantum uint

	flag.StringVar(&acfg.Scenario, "scenario", app.DefaultScenario, "Scenario to run (see -list).")
	flag.BoolVar(&list, "list", false, "List scenarios and exit.")
	flag.BoolVar(&cfg.Machine.Virtual, "virtual", false, "Run in virtual time instead of wall-clock time.")
	flag.UintVar(&tps, "tps", hal.DefaultTicksPerSecond, "Sleep timer ticks per second.")
	flag.UintVar(&quantum, "quantum", hal.DefaultQuantumTicks, "Time slice in timer ticks (0 = no preemption).")
	flag.IntVar(&cfg.Hz, "hz", 1000, "Clock drive rate in wall-clock mode.")
	flag.BoolVar(&acfg.Trace, "trace", false, "Log kernel instrumentation events.")
	flag.BoolVar(&acfg.Verbose, "v", false, "Verbose logging.")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Give up after this long (0 = never).")
	flag.Parse()

	if list {
		for _, sc := range app.Scenarios() {
			fmt.Printf("%-16s %s\n", sc.Name, sc.Description)
		}
		return
	}

	cfg.Machine.TicksPerSecond = uint32(tps)
	cfg.Machine.QuantumTicks = uint32(quantum)

	if err := run(cfg, acfg, timeout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg hal.HeadlessConfig, acfg app.Config, timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := hal.RunHeadless(ctx, func(h hal.HAL) func(context.Context) error {
		return app.New(h, acfg)
	}, cfg)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("kestrel: %w", err)
	}
	return nil
}
