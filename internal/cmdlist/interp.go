package cmdlist

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"panelseq/internal/transport"
)

// Env supplies what instruction dispatch needs beyond the stream itself.
type Env struct {
	// Lanes is the active data lane count gate instructions compare against.
	Lanes int
	// Timing backs computed patch values. May be nil when the stream
	// contains no timing patches.
	Timing Timing
	// Clock performs Delay instructions. Defaults to the real clock.
	Clock clockwork.Clock
	// Log receives per-instruction debug output and soft warnings.
	Log zerolog.Logger
}

// gate is the decoder's skip state, threaded explicitly through the loop.
type gate int

const (
	gateNormal gate = iota
	gateSkipNext
)

// Run executes one command stream against a backend. An empty stream is a
// no-op. Transport and decode failures abort immediately; a read whose
// value differs from the expected bytes is recorded and surfaces as the
// result only if the rest of the stream succeeds. Any bits still staged on
// the serial backend are flushed after the last instruction.
func Run(stream []byte, b transport.Backend, env Env) error {
	if len(stream) == 0 {
		return nil
	}
	if env.Clock == nil {
		env.Clock = clockwork.NewRealClock()
	}

	var staged [StagedSize]byte
	var mismatch error
	skip := gateNormal

	off := 0
	for off < len(stream) {
		ins, err := Decode(stream, off)
		if err != nil {
			return err
		}
		off += ins.Size

		if ins.Kind == KindLaneGate {
			if ins.Lanes != env.Lanes {
				skip = gateSkipNext
			}
			continue
		}
		if skip == gateSkipNext {
			skip = gateNormal
			env.Log.Debug().Int("offset", off-ins.Size).Msg("lane gate: instruction skipped")
			continue
		}

		if err := dispatch(ins, b, env, staged[:], &mismatch); err != nil {
			return err
		}
	}

	if err := b.Flush(); err != nil {
		return err
	}
	return mismatch
}

func dispatch(ins Instruction, b transport.Backend, env Env, staged []byte, mismatch *error) error {
	switch ins.Kind {
	case KindWrite:
		env.Log.Debug().Hex("data", ins.Payload).Bool("generic", ins.Generic).Msg("write")
		if err := b.Write(ins.Payload, ins.Generic); err != nil {
			return fmt.Errorf("write %#x: %w", ins.Payload, err)
		}

	case KindBufferedWrite:
		p := staged[:ins.BufLen]
		env.Log.Debug().Hex("data", p).Bool("generic", ins.Generic).Msg("buffered write")
		if err := b.Write(p, ins.Generic); err != nil {
			return fmt.Errorf("buffered write (%d bytes): %w", ins.BufLen, err)
		}

	case KindMaxReturn:
		if err := b.SetMaxReturnSize(ins.MaxReturn); err != nil {
			return fmt.Errorf("set max return size %d: %w", ins.MaxReturn, err)
		}

	case KindRead:
		var buf [8]byte
		data := buf[:ins.ReadLen]
		if err := b.Read(ins.Cmd, data, ins.Generic); err != nil {
			return fmt.Errorf("read %#x: %w", ins.Cmd, err)
		}
		got := littleEndian(data)
		want := littleEndian(ins.Expect)
		env.Log.Debug().Hex("cmd", ins.Cmd).
			Uint64("got", got).Uint64("want", want).Msg("read")
		if got != want && *mismatch == nil {
			*mismatch = fmt.Errorf("%w: cmd %#x got 0x%x want 0x%x",
				ErrVerification, ins.Cmd, got, want)
		}

	case KindDelay:
		// Delays partition command groups: staged serial bits go out first.
		if err := b.Flush(); err != nil {
			return err
		}
		env.Clock.Sleep(time.Duration(ins.DelayMS) * time.Millisecond)

	case KindPatch:
		ins.Patch.Apply(staged, env.Timing, env.Log)
	}
	return nil
}

func littleEndian(p []byte) uint64 {
	var v uint64
	for i, b := range p {
		v |= uint64(b) << (8 * i)
	}
	return v
}
