// Package bitstream implements the 9-bit framing used by 3-wire serial
// panels that have no command/data select line. Every payload byte is
// widened to 9 bits: the leading marker bit is 0 for the first byte staged
// since the last flush (the command byte) and 1 for every byte after it
// (data bytes). The package is pure bit arithmetic over fixed buffers and
// performs no I/O itself; flushing is delegated to the caller.
package bitstream

import (
	"errors"
	"fmt"
)

// BufSize is the size of the transmit and receive buffers in bytes. 63
// bytes give 504 bits, a whole number of 9-bit frames.
const BufSize = 63

// Capacity is the transmit buffer capacity in bits.
const Capacity = BufSize * 8

// ErrCapacity is returned when a single request cannot fit the transmit
// buffer even after a flush.
var ErrCapacity = errors.New("bitstream: request exceeds buffer capacity")

// Accumulator stages outgoing bits into a fixed transmit buffer and holds
// the matching receive buffer for full-duplex transfers. One accumulator
// belongs to exactly one in-flight command-list run; it is not safe for
// concurrent use.
type Accumulator struct {
	tx   [BufSize]byte
	rx   [BufSize]byte
	bits int
}

// Bits returns the number of bits currently staged.
func (a *Accumulator) Bits() int { return a.bits }

// Reset discards all staged bits. It is called at the start of each
// command-list run and after every flush.
func (a *Accumulator) Reset() { a.bits = 0 }

// Pack appends len(p) bytes in 9-bit framing at the current bit offset,
// big-endian within each frame. If the bytes do not fit, flush is invoked
// first and the offset restarts at zero; a request that cannot fit even an
// empty buffer fails with ErrCapacity. flush may be nil when the caller
// guarantees the data fits.
func (a *Accumulator) Pack(p []byte, flush func() error) error {
	need := len(p) * 9
	if a.bits+need > Capacity {
		if flush != nil {
			if err := flush(); err != nil {
				return err
			}
		}
		a.bits = 0
		if need > Capacity {
			return fmt.Errorf("%w: %d bytes need %d bits", ErrCapacity, len(p), need)
		}
	}
	for _, b := range p {
		frame := uint32(b)
		if a.bits > 0 {
			frame |= 0x100 // data marker
		}
		a.put(frame, 9)
	}
	return nil
}

// PackRaw appends len(p) plain 8-bit bytes with no marker bits, for buses
// configured for 8-bit framing. Flush semantics match Pack.
func (a *Accumulator) PackRaw(p []byte, flush func() error) error {
	need := len(p) * 8
	if a.bits+need > Capacity {
		if flush != nil {
			if err := flush(); err != nil {
				return err
			}
		}
		a.bits = 0
		if need > Capacity {
			return fmt.Errorf("%w: %d bytes need %d bits", ErrCapacity, len(p), need)
		}
	}
	for _, b := range p {
		a.put(uint32(b), 8)
	}
	return nil
}

// PackHigh appends n all-one bits without the 9-bit marker discipline.
// It is used to drive dummy clock cycles while the far end shifts out a
// response. Unlike Pack it never flushes: overflow is an error.
func (a *Accumulator) PackHigh(n int) error {
	if a.bits+n > Capacity {
		return fmt.Errorf("%w: %d high bits at offset %d", ErrCapacity, n, a.bits)
	}
	for n > 0 {
		c := n
		if c > 16 {
			c = 16
		}
		a.put(0xFFFF, c)
		n -= c
	}
	return nil
}

// put writes the low n bits of v at the current offset, most significant
// bit first.
func (a *Accumulator) put(v uint32, n int) {
	for n > 0 {
		idx := a.bits >> 3
		off := a.bits & 7
		take := 8 - off
		if take > n {
			take = n
		}
		chunk := byte(v>>uint(n-take)) & (1<<take - 1)
		shift := uint(8 - off - take)
		mask := byte(1<<take-1) << shift
		a.tx[idx] = a.tx[idx]&^mask | chunk<<shift
		a.bits += take
		n -= take
	}
}

// TxBytes returns the staged transmit bytes, rounded up to a whole byte.
func (a *Accumulator) TxBytes() []byte {
	return a.tx[:(a.bits+7)>>3]
}

// RxBytes returns the first n bytes of the receive buffer.
func (a *Accumulator) RxBytes(n int) []byte {
	return a.rx[:n]
}

// RxBuf returns the whole receive buffer for full-duplex transfers.
func (a *Accumulator) RxBuf() []byte {
	return a.rx[:]
}

// Unpack extracts len(dst) plain 8-bit bytes from src starting at startBit,
// big-endian. The receive path carries only data, never marker bits, so no
// framing is stripped here; callers skip markers by choosing startBit.
func Unpack(dst, src []byte, startBit int) {
	for i := range dst {
		bit := startBit + i*8
		idx := bit >> 3
		off := uint(bit & 7)
		b := src[idx] << off
		if off > 0 && idx+1 < len(src) {
			b |= src[idx+1] >> (8 - off)
		}
		dst[i] = b
	}
}
