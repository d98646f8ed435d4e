package channel

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// Kind classifies channel failures.
type Kind int

const (
	KindNotConnected Kind = iota + 1
	KindIO
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotConnected:
		return "not connected"
	case KindIO:
		return "io"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

var (
	ErrNotConnected = errors.New("control channel not connected")
	ErrIO           = errors.New("control channel io failure")
	ErrTimeout      = errors.New("control channel timeout")
)

// Error is a channel failure. It never signals anything worse than a lost session.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotConnected:
		return e.Kind == KindNotConnected
	case ErrIO:
		return e.Kind == KindIO
	case ErrTimeout:
		return e.Kind == KindTimeout
	default:
		return false
	}
}

// classify maps a raw socket error onto Io or Timeout.
func classify(op string, err error) *Error {
	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindIO, Op: op, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
