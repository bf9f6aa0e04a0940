package cmdlist

import (
	"encoding/binary"
	"fmt"
)

// Decode reads the instruction starting at off. It fails with ErrTruncated
// when the instruction's declared length runs past the stream end and with
// ErrUnknownOpcode for codes outside every defined range.
func Decode(stream []byte, off int) (Instruction, error) {
	op := stream[off]
	generic := op&FlagGeneric != 0
	code := op & 0x7F
	rest := stream[off+1:]

	need := func(n int) error {
		if len(rest) < n {
			return fmt.Errorf("%w: opcode 0x%02x at offset %d wants %d more bytes, %d left",
				ErrTruncated, op, off, n, len(rest))
		}
		return nil
	}

	switch {
	case code <= OpWriteMax:
		n := int(code)
		if err := need(n); err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: KindWrite, Generic: generic, Payload: rest[:n], Size: 1 + n}, nil

	case code == OpDelay:
		if err := need(1); err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: KindDelay, DelayMS: int(rest[0]), Size: 2}, nil

	case code == OpMaxReturn:
		if err := need(1); err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: KindMaxReturn, MaxReturn: int(rest[0]), Size: 2}, nil

	case code == OpWriteLen:
		if err := need(1); err != nil {
			return Instruction{}, err
		}
		n := int(rest[0])
		if err := need(1 + n); err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: KindWrite, Generic: generic, Payload: rest[1 : 1+n], Size: 2 + n}, nil

	case code == OpWriteBuf:
		if err := need(1); err != nil {
			return Instruction{}, err
		}
		n := int(rest[0])
		if n > StagedSize {
			n = StagedSize
		}
		return Instruction{Kind: KindBufferedWrite, Generic: generic, BufLen: n, Size: 2}, nil

	case code >= OpRead1 && code <= OpRead8:
		rl := int(code-OpRead1) + 1
		ci := 1
		if generic {
			ci = 2
		}
		if err := need(ci + rl); err != nil {
			return Instruction{}, err
		}
		return Instruction{
			Kind:    KindRead,
			Generic: generic,
			Cmd:     rest[:ci],
			Expect:  rest[ci : ci+rl],
			ReadLen: rl,
			Size:    1 + ci + rl,
		}, nil

	case code == OpPatchConst:
		if err := need(6); err != nil {
			return Instruction{}, err
		}
		return Instruction{
			Kind: KindPatch,
			Patch: PatchOp{
				Selector:  code,
				DestStart: int(rest[0]),
				DestLen:   int(rest[1]),
				Const:     binary.LittleEndian.Uint32(rest[2:6]),
			},
			Size: 7,
		}, nil

	case code > OpPatchConst && code <= OpPatchMax:
		if err := need(3); err != nil {
			return Instruction{}, err
		}
		return Instruction{
			Kind: KindPatch,
			Patch: PatchOp{
				Selector:  code,
				DestStart: int(rest[0]),
				DestLen:   int(rest[1]),
				SrcShift:  int(rest[2]),
			},
			Size: 4,
		}, nil

	case code >= OpLanes1 && code <= OpLanes4:
		return Instruction{Kind: KindLaneGate, Lanes: int(code-OpLanes1) + 1, Size: 1}, nil

	default:
		return Instruction{}, fmt.Errorf("%w: 0x%02x at offset %d", ErrUnknownOpcode, op, off)
	}
}
