package hal

import "runtime"

// goContext is a thread context backed by a goroutine. The goroutine only
// runs while it holds the CPU, which it receives on resume.
type goContext struct {
	start   func()
	started bool
	gone    bool

	resume chan struct{}
	dead   chan struct{}
}

// goSwitcher hands a single CPU permit between the kernel goroutine and the
// thread goroutines. Exactly one of them runs at any time.
type goSwitcher struct {
	kernel chan struct{}
}

// NewSwitcher returns a Switcher that runs every thread context on its own
// goroutine.
//
// The start function given to NewContext must never return: a thread leaves
// the CPU only through EnterKernel.
func NewSwitcher() Switcher {
	return &goSwitcher{kernel: make(chan struct{}, 1)}
}

func (s *goSwitcher) NewContext(start func()) Context {
	return &goContext{
		start:  start,
		resume: make(chan struct{}, 1),
		dead:   make(chan struct{}),
	}
}

func (s *goSwitcher) EnterKernel(c Context) {
	g := c.(*goContext)
	s.kernel <- struct{}{}
	g.park()
}

func (s *goSwitcher) LeaveKernel(c Context) {
	g := c.(*goContext)
	if g.gone {
		panic("hal: resume of discarded context")
	}
	if !g.started {
		g.started = true
		go func() {
			g.park()
			g.start()
		}()
	}
	g.resume <- struct{}{}
	<-s.kernel
}

func (s *goSwitcher) Discard(c Context) {
	g := c.(*goContext)
	if g.gone {
		return
	}
	g.gone = true
	close(g.dead)
}

func (g *goContext) park() {
	select {
	case <-g.resume:
	case <-g.dead:
		runtime.Goexit()
	}
}
