package transport

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// CommandIface adapts a DCS device to the Backend interface. It owns the
// single retry after a bus-turnaround error on reads; everything else is a
// straight dispatch on the generic flag.
type CommandIface struct {
	dev DCS
	log zerolog.Logger
}

// NewCommandIface returns a backend over dev.
func NewCommandIface(dev DCS, log zerolog.Logger) *CommandIface {
	return &CommandIface{dev: dev, log: log}
}

// Write sends a generic packet or a DCS write depending on generic.
func (c *CommandIface) Write(p []byte, generic bool) error {
	if generic {
		return c.dev.GenericWrite(p)
	}
	return c.dev.DCSWrite(p)
}

// Read issues a generic or DCS read. A bus-turnaround error is retried
// exactly once; it is an expected transient, not a hard fault.
func (c *CommandIface) Read(cmd, dst []byte, generic bool) error {
	read := func() error {
		if generic {
			return c.dev.GenericRead(cmd, dst)
		}
		return c.dev.DCSRead(cmd[0], dst)
	}
	err := read()
	if errors.Is(err, ErrBusTurnaround) {
		c.log.Debug().Hex("cmd", cmd).Msg("bus turnaround on read, retrying")
		err = read()
	}
	if err != nil {
		return fmt.Errorf("command-interface read %#x: %w", cmd, err)
	}
	return nil
}

// SetMaxReturnSize forwards the cap to the device.
func (c *CommandIface) SetMaxReturnSize(n int) error {
	return c.dev.SetMaxReturnSize(n)
}

// Flush is a no-op; command-interface packets are never staged.
func (c *CommandIface) Flush() error { return nil }
