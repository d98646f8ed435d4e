package protocol

import (
	"errors"
	"fmt"
)

// ErrViolation matches every *Violation through errors.Is.
var ErrViolation = errors.New("protocol violation")

// Violation reports a response that cannot be trusted for the rest of the session.
type Violation struct {
	Command string
	Reason  string
	Line    string
}

func (v *Violation) Error() string {
	msg := fmt.Sprintf("protocol violation in %s response: %s", v.Command, v.Reason)
	if v.Line != "" {
		msg += fmt.Sprintf(" (line %q)", v.Line)
	}
	return msg
}

func (v *Violation) Is(target error) bool {
	return target == ErrViolation
}

func violationf(command, line, format string, args ...any) *Violation {
	return &Violation{Command: command, Reason: fmt.Sprintf(format, args...), Line: line}
}
