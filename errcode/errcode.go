package errcode

import (
	"context"
	"errors"
	"strconv"
)

// Code is a stable, caller-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Claim protocol
	InvalidPort       Code = "invalid_port"
	NoDeviceInstalled Code = "no_device_installed"
	PortTypeMismatch  Code = "port_type_mismatch"
	PortBusy          Code = "port_busy"
	SlotOccupied      Code = "slot_occupied"

	// Device level
	StillCalibrating Code = "still_calibrating" // EAGAIN on the controller
	Timeout          Code = "timeout"
	InvalidParams    Code = "invalid_params"
	Unsupported      Code = "unsupported"
	NotInstalled     Code = "not_installed"
	BufferTooSmall   Code = "buffer_too_small"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside a Code.
// Port is the 0-indexed port, or -1 when not port related.
type E struct {
	C    Code
	Op   string
	Port int
	Msg  string
	Err  error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Port >= 0 {
		s += " (port " + strconv.Itoa(e.Port+1) + ")"
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.PortBusy) match a wrapped *E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap builds an *E for a port-scoped operation.
func Wrap(c Code, op string, port int, cause error) *E {
	return &E{C: c, Op: op, Port: port, Err: cause}
}

// New builds an *E that is not bound to a port.
func New(c Code, op, msg string) *E {
	return &E{C: c, Op: op, Port: -1, Msg: msg}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return MapDriverErr(err)
}

// MapDriverErr maps low-level driver errors to a Code.
func MapDriverErr(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	default:
		return Error
	}
}
