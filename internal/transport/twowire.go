package transport

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/i2c"
)

// retryBackoff is the fixed pause before the single write retry. Some
// panels depend on this exact margin; do not make it configurable.
const retryBackoff = 10 * time.Millisecond

const stagingSize = 63

// TwoWire drives a register-style two-wire bus device. The protocol wants
// the first two payload bytes in address/command order inverted, so writes
// and reads stage the payload and swap them before the transfer.
type TwoWire struct {
	bus   i2c.Bus
	addr  uint16
	clock clockwork.Clock
	log   zerolog.Logger
	buf   [stagingSize]byte
}

// NewTwoWire returns a backend for the device at addr on bus.
func NewTwoWire(bus i2c.Bus, addr uint16, clock clockwork.Clock, log zerolog.Logger) *TwoWire {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TwoWire{bus: bus, addr: addr, clock: clock, log: log}
}

func (t *TwoWire) stage(p []byte) ([]byte, error) {
	if len(p) > len(t.buf) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLong, len(p))
	}
	buf := t.buf[:len(p)]
	copy(buf, p)
	if len(buf) >= 2 {
		buf[0], buf[1] = buf[1], buf[0]
	}
	return buf, nil
}

// Write sends the payload, retrying exactly once after a short pause.
func (t *TwoWire) Write(p []byte, _ bool) error {
	buf, err := t.stage(p)
	if err != nil {
		return err
	}
	if err := t.bus.Tx(t.addr, buf, nil); err != nil {
		t.log.Debug().Err(err).Int("len", len(buf)).Msg("two-wire write failed, retrying")
		t.clock.Sleep(retryBackoff)
		if err := t.bus.Tx(t.addr, buf, nil); err != nil {
			return fmt.Errorf("two-wire write (addr 0x%02x, %d bytes): %w", t.addr, len(buf), err)
		}
	}
	return nil
}

// Read issues a combined write-then-read transaction. Reads do not retry.
func (t *TwoWire) Read(cmd, dst []byte, _ bool) error {
	if len(dst) > stagingSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLong, len(dst))
	}
	buf, err := t.stage(cmd)
	if err != nil {
		return err
	}
	if err := t.bus.Tx(t.addr, buf, dst); err != nil {
		return fmt.Errorf("two-wire read (addr 0x%02x, %d bytes): %w", t.addr, len(dst), err)
	}
	return nil
}

// SetMaxReturnSize has no meaning on a two-wire bus.
func (t *TwoWire) SetMaxReturnSize(int) error { return nil }

// Flush is a no-op; two-wire transfers are never staged across calls.
func (t *TwoWire) Flush() error { return nil }
