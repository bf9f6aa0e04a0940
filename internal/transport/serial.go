package transport

import (
	"fmt"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/spi"

	"panelseq/internal/bitstream"
)

// Serial drives the 3-wire synchronous serial bus. With 9-bit framing each
// payload byte is pushed through the bit-stream accumulator; with 8-bit
// framing bytes are staged verbatim. Writes transmit at instruction end,
// so every instruction starts on a fresh accumulator and its first byte
// carries the command marker.
type Serial struct {
	conn    spi.Conn
	nineBit bool
	acc     *bitstream.Accumulator
	log     zerolog.Logger
}

// NewSerial returns a backend over conn. acc is owned by the in-flight
// command-list run and must not be shared across runs.
func NewSerial(conn spi.Conn, nineBit bool, acc *bitstream.Accumulator, log zerolog.Logger) *Serial {
	return &Serial{conn: conn, nineBit: nineBit, acc: acc, log: log}
}

func (s *Serial) pack(p []byte) error {
	if s.nineBit {
		return s.acc.Pack(p, s.Flush)
	}
	return s.acc.PackRaw(p, s.Flush)
}

// Write stages the payload and transmits it.
func (s *Serial) Write(p []byte, _ bool) error {
	if err := s.pack(p); err != nil {
		return err
	}
	return s.Flush()
}

// Read transmits the command bytes followed by enough all-one bits to
// clock out len(dst) response bytes, then extracts the response from the
// receive buffer at the bit offset just past the command.
func (s *Serial) Read(cmd, dst []byte, _ bool) error {
	if err := s.Flush(); err != nil {
		return err
	}
	if err := s.pack(cmd); err != nil {
		return err
	}
	start := s.acc.Bits()
	if err := s.acc.PackHigh(len(dst) * 8); err != nil {
		return err
	}
	if err := s.transfer(true); err != nil {
		return err
	}
	bitstream.Unpack(dst, s.acc.RxBuf(), start)
	return nil
}

// SetMaxReturnSize has no meaning on the serial bus.
func (s *Serial) SetMaxReturnSize(int) error { return nil }

// Flush transmits any staged bits and resets the accumulator.
func (s *Serial) Flush() error {
	if s.acc.Bits() == 0 {
		return nil
	}
	return s.transfer(false)
}

func (s *Serial) transfer(duplex bool) error {
	tx := s.acc.TxBytes()
	var rx []byte
	if duplex {
		rx = s.acc.RxBytes(len(tx))
	}
	s.acc.Reset()
	if err := s.conn.Tx(tx, rx); err != nil {
		head := tx
		if len(head) > 6 {
			head = head[:6]
		}
		s.log.Error().Err(err).Int("len", len(tx)).Hex("head", head).Msg("serial transfer failed")
		return fmt.Errorf("serial transfer (%d bytes): %w", len(tx), err)
	}
	s.log.Debug().Int("len", len(tx)).Hex("tx", tx).Msg("serial transfer")
	return nil
}
