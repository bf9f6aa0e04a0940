package cmdlist

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op      string
	data    []byte
	generic bool
	n       int
}

type fakeBackend struct {
	calls      []call
	writeErrAt int // 1-based write index that fails; 0 = never
	readData   []byte
	flushes    int
}

func (f *fakeBackend) Write(p []byte, generic bool) error {
	f.calls = append(f.calls, call{op: "write", data: append([]byte(nil), p...), generic: generic})
	writes := 0
	for _, c := range f.calls {
		if c.op == "write" {
			writes++
		}
	}
	if f.writeErrAt != 0 && writes == f.writeErrAt {
		return errors.New("bus fault")
	}
	return nil
}

func (f *fakeBackend) Read(cmd, dst []byte, generic bool) error {
	f.calls = append(f.calls, call{op: "read", data: append([]byte(nil), cmd...), generic: generic, n: len(dst)})
	copy(dst, f.readData)
	return nil
}

func (f *fakeBackend) SetMaxReturnSize(n int) error {
	f.calls = append(f.calls, call{op: "mrps", n: n})
	return nil
}

func (f *fakeBackend) Flush() error {
	f.flushes++
	return nil
}

type recordingClock struct {
	clockwork.Clock
	sleeps []time.Duration
}

func newRecordingClock() *recordingClock {
	return &recordingClock{Clock: clockwork.NewRealClock()}
}

func (c *recordingClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
}

func env(b *fakeBackend) (Env, *recordingClock) {
	clk := newRecordingClock()
	return Env{Lanes: 4, Clock: clk, Log: zerolog.Nop()}, clk
}

func TestRunEmptyStream(t *testing.T) {
	b := &fakeBackend{}
	e, _ := env(b)
	require.NoError(t, Run(nil, b, e))
	assert.Empty(t, b.calls)
}

func TestRunWritesAndDelay(t *testing.T) {
	b := &fakeBackend{}
	e, clk := env(b)
	stream := []byte{
		0x02, 0x01, 0x02, // write [01 02]
		OpDelay, 5,
		0x01, 0x03, // write [03]
	}
	require.NoError(t, Run(stream, b, e))
	require.Len(t, b.calls, 2)
	assert.Equal(t, []byte{0x01, 0x02}, b.calls[0].data)
	assert.Equal(t, []byte{0x03}, b.calls[1].data)
	assert.Equal(t, []time.Duration{5 * time.Millisecond}, clk.sleeps)
	// One flush for the delay, one at stream end.
	assert.Equal(t, 2, b.flushes)
}

func TestRunReadVerifyMatch(t *testing.T) {
	b := &fakeBackend{readData: []byte{0x0F}}
	e, _ := env(b)
	stream := []byte{OpRead1, 0x0A, 0x0F}
	require.NoError(t, Run(stream, b, e))
}

func TestRunReadVerifyMismatchContinues(t *testing.T) {
	b := &fakeBackend{readData: []byte{0x0E}}
	e, _ := env(b)
	stream := []byte{
		OpRead1, 0x0A, 0x0F, // observed 0x0E != expected 0x0F
		0x01, 0x11, // still executed
	}
	err := Run(stream, b, e)
	require.ErrorIs(t, err, ErrVerification)
	require.Len(t, b.calls, 2)
	assert.Equal(t, "write", b.calls[1].op)
}

func TestRunTransportErrorAborts(t *testing.T) {
	b := &fakeBackend{writeErrAt: 1}
	e, _ := env(b)
	stream := []byte{
		0x01, 0x01,
		0x01, 0x02, // never reached
	}
	require.Error(t, Run(stream, b, e))
	assert.Len(t, b.calls, 1)
}

func TestRunTransportErrorBeatsMismatch(t *testing.T) {
	b := &fakeBackend{readData: []byte{0x00}, writeErrAt: 1}
	e, _ := env(b)
	stream := []byte{
		OpRead1, 0x0A, 0x0F, // mismatch recorded
		0x01, 0x01, // fatal write
	}
	err := Run(stream, b, e)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrVerification)
}

func TestRunLaneGateSkipsExactlyOne(t *testing.T) {
	b := &fakeBackend{}
	e, _ := env(b) // lanes = 4
	stream := []byte{
		OpLanes1 + 1, // requires 2 lanes, mismatch
		0x01, 0xAA,   // skipped
		0x01, 0xBB,   // executed
	}
	require.NoError(t, Run(stream, b, e))
	require.Len(t, b.calls, 1)
	assert.Equal(t, []byte{0xBB}, b.calls[0].data)
}

func TestRunLaneGateMatchDoesNotSkip(t *testing.T) {
	b := &fakeBackend{}
	e, _ := env(b)
	stream := []byte{
		OpLanes4, // matches active lane count
		0x01, 0xAA,
	}
	require.NoError(t, Run(stream, b, e))
	require.Len(t, b.calls, 1)
}

func TestRunSkippedInstructionConsumesBytes(t *testing.T) {
	b := &fakeBackend{readData: []byte{0x0F}}
	e, _ := env(b)
	stream := []byte{
		OpLanes1, // mismatch on 4 lanes
		OpRead1, 0x0A, 0x00, // skipped entirely, expected byte not misread
		0x01, 0xCC,
	}
	require.NoError(t, Run(stream, b, e))
	require.Len(t, b.calls, 1)
	assert.Equal(t, []byte{0xCC}, b.calls[0].data)
}

func TestRunPatchAndBufferedWrite(t *testing.T) {
	b := &fakeBackend{}
	e, _ := env(b)
	stream := []byte{
		OpPatchConst, 0, 8, 0x5A, 0x00, 0x00, 0x00, // staged[0] = 0x5A
		OpPatchConst, 8, 8, 0xC3, 0x00, 0x00, 0x00, // staged[1] = 0xC3
		OpWriteBuf, 2,
	}
	require.NoError(t, Run(stream, b, e))
	require.Len(t, b.calls, 1)
	assert.Equal(t, []byte{0x5A, 0xC3}, b.calls[0].data)
}

func TestRunMaxReturnSize(t *testing.T) {
	b := &fakeBackend{}
	e, _ := env(b)
	require.NoError(t, Run([]byte{OpMaxReturn, 3}, b, e))
	require.Len(t, b.calls, 1)
	assert.Equal(t, "mrps", b.calls[0].op)
	assert.Equal(t, 3, b.calls[0].n)
}

func TestRunTruncatedStreamFaults(t *testing.T) {
	b := &fakeBackend{}
	e, _ := env(b)
	err := Run([]byte{0x05, 0x01}, b, e)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestRunUnknownOpcodeFaults(t *testing.T) {
	b := &fakeBackend{}
	e, _ := env(b)
	err := Run([]byte{0x01, 0x11, 0x7F}, b, e)
	require.ErrorIs(t, err, ErrUnknownOpcode)
	// The write before the bad opcode still went out.
	assert.Len(t, b.calls, 1)
}
