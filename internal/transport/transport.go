// Package transport provides the three send/receive backends a panel
// command list can target: a register-style two-wire bus, a command
// interface carrying DCS or generic packets, and a 3-wire synchronous
// serial bus with optional 9-bit framing. The command-list interpreter
// dispatches to a Backend without knowing which bus is behind it.
package transport

import "errors"

// ErrTooLong is returned when a payload exceeds a backend's staging buffer.
var ErrTooLong = errors.New("transport: payload exceeds staging buffer")

// ErrBusTurnaround is the protocol error a command-interface device reports
// when the bus direction switch for a read fails. It is expected transient
// behavior; backends retry the read exactly once.
var ErrBusTurnaround = errors.New("transport: bus turnaround error")

// Backend is one transport as seen by the command-list interpreter.
type Backend interface {
	// Write sends the payload. generic selects the generic-packet path on
	// the command interface; other backends ignore it.
	Write(p []byte, generic bool) error

	// Read sends the command bytes and fills dst with the response.
	// generic selects the generic read path on the command interface.
	Read(cmd, dst []byte, generic bool) error

	// SetMaxReturnSize caps the response size of subsequent reads. Only the
	// command interface implements it; other backends return nil.
	SetMaxReturnSize(n int) error

	// Flush transmits staged bits on the serial backend. No-op elsewhere.
	Flush() error
}

// DCS is the low-level command-interface device injected by the integrator.
// How its packets reach the wire is outside this module; implementations
// report ErrBusTurnaround (possibly wrapped) for the transient read fault.
type DCS interface {
	GenericWrite(p []byte) error
	DCSWrite(p []byte) error
	GenericRead(cmd, dst []byte) error
	DCSRead(cmd byte, dst []byte) error
	SetMaxReturnSize(n int) error
}
