package cmdlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDirectWrite(t *testing.T) {
	ins, err := Decode([]byte{0x02, 0xAA, 0xBB}, 0)
	require.NoError(t, err)
	assert.Equal(t, KindWrite, ins.Kind)
	assert.False(t, ins.Generic)
	assert.Equal(t, []byte{0xAA, 0xBB}, ins.Payload)
	assert.Equal(t, 3, ins.Size)
}

func TestDecodeGenericFlag(t *testing.T) {
	ins, err := Decode([]byte{FlagGeneric | 0x01, 0xB0}, 0)
	require.NoError(t, err)
	assert.True(t, ins.Generic)
	assert.Equal(t, []byte{0xB0}, ins.Payload)
}

func TestDecodeLengthPrefixedWrite(t *testing.T) {
	ins, err := Decode([]byte{OpWriteLen, 0x03, 0x01, 0x02, 0x03}, 0)
	require.NoError(t, err)
	assert.Equal(t, KindWrite, ins.Kind)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, ins.Payload)
	assert.Equal(t, 5, ins.Size)
}

func TestDecodeBufferedWriteClamped(t *testing.T) {
	ins, err := Decode([]byte{OpWriteBuf, 0x40}, 0)
	require.NoError(t, err)
	assert.Equal(t, KindBufferedWrite, ins.Kind)
	assert.Equal(t, StagedSize, ins.BufLen)
	assert.Equal(t, 2, ins.Size)
}

func TestDecodeRead(t *testing.T) {
	ins, err := Decode([]byte{OpRead1 + 1, 0x0A, 0x1C, 0x00}, 0)
	require.NoError(t, err)
	assert.Equal(t, KindRead, ins.Kind)
	assert.Equal(t, 2, ins.ReadLen)
	assert.Equal(t, []byte{0x0A}, ins.Cmd)
	assert.Equal(t, []byte{0x1C, 0x00}, ins.Expect)
	assert.Equal(t, 4, ins.Size)
}

func TestDecodeGenericReadTwoCommandBytes(t *testing.T) {
	ins, err := Decode([]byte{FlagGeneric | OpRead1, 0x45, 0x00, 0x0F}, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x45, 0x00}, ins.Cmd)
	assert.Equal(t, []byte{0x0F}, ins.Expect)
	assert.Equal(t, 4, ins.Size)
}

func TestDecodeDelayAndMaxReturn(t *testing.T) {
	ins, err := Decode([]byte{OpDelay, 120}, 0)
	require.NoError(t, err)
	assert.Equal(t, KindDelay, ins.Kind)
	assert.Equal(t, 120, ins.DelayMS)

	ins, err = Decode([]byte{OpMaxReturn, 4}, 0)
	require.NoError(t, err)
	assert.Equal(t, KindMaxReturn, ins.Kind)
	assert.Equal(t, 4, ins.MaxReturn)
}

func TestDecodeConstPatch(t *testing.T) {
	ins, err := Decode([]byte{OpPatchConst, 4, 12, 0xBC, 0x0A, 0x00, 0x00}, 0)
	require.NoError(t, err)
	assert.Equal(t, KindPatch, ins.Kind)
	assert.Equal(t, 4, ins.Patch.DestStart)
	assert.Equal(t, 12, ins.Patch.DestLen)
	assert.Equal(t, uint32(0x0ABC), ins.Patch.Const)
	assert.Equal(t, 7, ins.Size)
}

func TestDecodeTimingPatch(t *testing.T) {
	ins, err := Decode([]byte{OpPatchHActive, 8, 11, 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(OpPatchHActive), ins.Patch.Selector)
	assert.Equal(t, 1, ins.Patch.SrcShift)
	assert.Equal(t, 4, ins.Size)
}

func TestDecodeLaneGates(t *testing.T) {
	for i := 0; i < 4; i++ {
		ins, err := Decode([]byte{byte(OpLanes1 + i)}, 0)
		require.NoError(t, err)
		assert.Equal(t, KindLaneGate, ins.Kind)
		assert.Equal(t, i+1, ins.Lanes)
		assert.Equal(t, 1, ins.Size)
	}
}

func TestDecodeTruncated(t *testing.T) {
	cases := [][]byte{
		{0x04, 0x01, 0x02},                  // write wants 4 payload bytes
		{OpDelay},                           // delay wants its millisecond count
		{OpWriteLen, 0x05, 0x01},            // prefixed write wants 5
		{OpRead1 + 3, 0x0A, 0x00},           // read wants cmd + 4 expected
		{OpPatchConst, 0x00, 0x08, 0x01},    // const patch wants 6 operands
	}
	for _, stream := range cases {
		_, err := Decode(stream, 0)
		assert.ErrorIs(t, err, ErrTruncated, "stream %#x", stream)
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, err := Decode([]byte{0x70}, 0)
	require.ErrorIs(t, err, ErrUnknownOpcode)
}
