package app

import (
	"context"
	"fmt"
	"strings"

	"kestrel/hal"
	"kestrel/internal/buildinfo"
	"kestrel/kernel"

	"github.com/sirupsen/logrus"
)

type Config struct {
	// Scenario names the workload to run. Empty selects DefaultScenario.
	Scenario string
	// Trace logs every kernel instrumentation event. Verbose adds the
	// per-trap user-space enter/exit pairs and debug lifecycle logs.
	Trace   bool
	Verbose bool
}

type system struct {
	h   hal.HAL
	cfg Config
	log *logrus.Logger
	sc  *Scenario
	k   *kernel.Kernel
	rec recorder
}

// New builds the system on h and returns a function that runs it to
// completion.
func New(h hal.HAL, cfg Config) func(context.Context) error {
	return func(ctx context.Context) error {
		s, err := newSystem(h, cfg)
		if err != nil {
			return err
		}
		return s.run(ctx)
	}
}

// Run starts the system and blocks forever (TinyGo entrypoint).
func Run(h hal.HAL, cfg Config) {
	if err := New(h, cfg)(context.Background()); err != nil {
		h.Logger().WriteLineString("kestrel: " + err.Error())
	}
	select {}
}

func newLogger(h hal.HAL, cfg Config) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(hal.LineWriter{L: h.Logger()})
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch {
	case cfg.Trace:
		l.SetLevel(logrus.TraceLevel)
	case cfg.Verbose:
		l.SetLevel(logrus.DebugLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

func newSystem(h hal.HAL, cfg Config) (*system, error) {
	if cfg.Scenario == "" {
		cfg.Scenario = DefaultScenario
	}
	sc, ok := Lookup(cfg.Scenario)
	if !ok {
		return nil, fmt.Errorf("app: unknown scenario %q", cfg.Scenario)
	}

	s := &system{h: h, cfg: cfg, sc: sc, log: newLogger(h, cfg)}

	kcfg := kernel.Config{
		HaltOnStall:  true,
		Logger:       s.log.WithField("component", "kernel"),
		PanicHandler: panicHandler(h),
	}
	if cfg.Trace {
		kcfg.Tracer = kernel.LogTracer{
			Log:     s.log.WithField("component", "trace"),
			Verbose: cfg.Verbose,
		}
	}
	k, err := kernel.New(h, kcfg)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	s.k = k

	e := &env{k: k, m: h.Machine(), rec: &s.rec}
	if _, err := k.Boot(func(any) { sc.main(e) }, 0, nil); err != nil {
		return nil, fmt.Errorf("app: boot %s: %w", sc.Name, err)
	}
	return s, nil
}

func (s *system) run(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{
		"build":    buildinfo.Short(),
		"scenario": s.sc.Name,
	}).Info("kestrel starting")

	if err := s.k.Run(ctx); err != nil {
		return fmt.Errorf("app: scenario %s: %w", s.sc.Name, err)
	}

	if len(s.rec.errs) > 0 {
		return fmt.Errorf("app: scenario %s: %s", s.sc.Name, strings.Join(s.rec.errs, "; "))
	}
	got := strings.Join(s.rec.got, ",")
	want := strings.Join(s.sc.Want, ",")
	if got != want {
		return fmt.Errorf("app: scenario %s: order %s, want %s", s.sc.Name, got, want)
	}
	s.log.WithFields(logrus.Fields{
		"scenario": s.sc.Name,
		"order":    got,
		"now":      s.k.Now(),
	}).Info("scenario passed")
	return nil
}
