package kernel

import "errors"

// Errno is a kernel error code. ENone is success; every other value
// implements error, so callers can use errors.Is against the constants.
type Errno uint8

const (
	ENone Errno = iota
	// EAgain reports an exhausted pool or counter.
	EAgain
	// EInval reports a bad handle, argument or buffer length.
	EInval
	// EPerm reports an unlock by a thread that does not own the mutex.
	EPerm
	// EDeadlk is reserved.
	EDeadlk
	// EBusy reports a second waiter on an event.
	EBusy
	EOpNotSupp
	// EAlready reports suspend or resume of a thread already in that state.
	EAlready
)

func (e Errno) String() string {
	switch e {
	case ENone:
		return "ok"
	case EAgain:
		return "resource temporarily unavailable"
	case EInval:
		return "invalid argument"
	case EPerm:
		return "operation not permitted"
	case EDeadlk:
		return "resource deadlock would occur"
	case EBusy:
		return "resource busy"
	case EOpNotSupp:
		return "operation not supported"
	case EAlready:
		return "already in requested state"
	default:
		return "unknown"
	}
}

func (e Errno) Error() string { return "kernel: " + e.String() }

func (e Errno) err() error {
	if e == ENone {
		return nil
	}
	return e
}

// ErrStalled is returned by Run when Config.HaltOnStall is set and no thread
// other than the idle thread can ever run again.
var ErrStalled = errors.New("kernel: stalled: live threads but nothing runnable or sleeping")
