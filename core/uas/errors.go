package uas

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/gcsproxy/core/link"
	"github.com/kilianp07/gcsproxy/core/model"
	"github.com/kilianp07/gcsproxy/core/protocol"
)

var (
	// ErrNoLinks is returned by a broadcast when the vehicle has no link.
	ErrNoLinks = errors.New("vehicle has no links")
	// ErrLinkNotRegistered is returned when sending on a link the vehicle
	// does not know or that the transport unregistered.
	ErrLinkNotRegistered = link.ErrNotRegistered
	// ErrLinkClosed is returned when the transport reports the link closed.
	ErrLinkClosed = link.ErrClosed
	// ErrUnmappedButton is returned for button indexes without an action.
	ErrUnmappedButton = errors.New("button not mapped")
	// ErrNoEncoder is returned when a command is issued without a codec.
	ErrNoEncoder = errors.New("no encoder configured")

	ErrInvalidCellCount    = model.ErrInvalidCellCount
	ErrInvalidVoltageRange = model.ErrInvalidVoltageRange
)

// LinkError is a send failure on a single link.
type LinkError struct {
	LinkID string
	Err    error
}

func (e LinkError) Error() string { return fmt.Sprintf("link %s: %v", e.LinkID, e.Err) }

func (e LinkError) Unwrap() error { return e.Err }

// DispatchError aggregates the per link failures of one broadcast. Links that
// are not listed received the message.
type DispatchError struct {
	Kind      protocol.MsgID
	Attempted int
	Failures  []LinkError
}

func (e *DispatchError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("dispatch %s failed on %d/%d links: %s", e.Kind, len(e.Failures), e.Attempted, strings.Join(parts, "; "))
}

// Unwrap exposes the per link errors to errors.Is and errors.As.
func (e *DispatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Delivered reports whether a send that returned err reached at least one
// link: err is nil or a *DispatchError with fewer failures than attempts.
func Delivered(err error) bool {
	if err == nil {
		return true
	}
	var derr *DispatchError
	return errors.As(err, &derr) && len(derr.Failures) < derr.Attempted
}
