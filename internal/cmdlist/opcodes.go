// Package cmdlist decodes and executes panel bring-up command lists: the
// compact bytecode vendors ship to initialize, enable and disable a display
// panel. A stream is consumed strictly left to right; the first byte of
// each instruction selects the variant and, for writes and reads, the
// payload length.
package cmdlist

import "errors"

// FlagGeneric marks a write or read as a generic packet rather than a DCS
// packet on the command interface. Other transports ignore it.
const FlagGeneric = 0x80

// Opcode values, after masking FlagGeneric. Codes 0x00..OpWriteMax are
// direct writes carrying the code itself as payload length.
const (
	OpWriteMax  = 0x3F
	OpDelay     = 0x40
	OpMaxReturn = 0x41
	OpWriteLen  = 0x42
	OpWriteBuf  = 0x43
	OpRead1     = 0x44
	OpRead8     = 0x4B

	// Field-patch selectors. The range extends past the last defined
	// selector: codes OpPatchVFront+1..OpPatchMax decode as patches with an
	// unknown source, which patch 0 and warn instead of aborting.
	OpPatchConst   = 0x4C
	OpPatchHSync   = 0x4D
	OpPatchHBack   = 0x4E
	OpPatchHActive = 0x4F
	OpPatchHFront  = 0x50
	OpPatchVSync   = 0x51
	OpPatchVBack   = 0x52
	OpPatchVActive = 0x53
	OpPatchVFront  = 0x54
	OpPatchMax     = 0x5F

	OpLanes1 = 0x78
	OpLanes4 = 0x7B
)

// StagedSize is the size of the staged output buffer assembled by patch
// instructions and transmitted by a buffered write.
const StagedSize = 32

var (
	// ErrTruncated reports an instruction whose declared length runs past
	// the end of the stream. Fatal.
	ErrTruncated = errors.New("cmdlist: truncated stream")

	// ErrUnknownOpcode reports an opcode outside every defined range. Fatal.
	ErrUnknownOpcode = errors.New("cmdlist: unknown opcode")

	// ErrVerification reports a read whose observed value differed from the
	// expected value in the stream. It does not abort decoding and surfaces
	// as the stream result only when nothing worse happened.
	ErrVerification = errors.New("cmdlist: read verification mismatch")
)

// Kind tags a decoded instruction.
type Kind uint8

const (
	KindWrite Kind = iota
	KindBufferedWrite
	KindMaxReturn
	KindRead
	KindDelay
	KindLaneGate
	KindPatch
)

// Instruction is one decoded unit of a command stream. Payload, Cmd and
// Expect alias the stream and must not be mutated.
type Instruction struct {
	Kind    Kind
	Generic bool

	Payload []byte // KindWrite
	BufLen  int    // KindBufferedWrite, clamped to StagedSize

	MaxReturn int // KindMaxReturn

	Cmd     []byte // KindRead: command bytes (2 when generic, else 1)
	Expect  []byte // KindRead: expected response
	ReadLen int    // KindRead: response length, 1..8

	DelayMS int // KindDelay

	Lanes int // KindLaneGate: required lane count, 1..4

	Patch PatchOp // KindPatch

	// Size is the total encoded length including the opcode byte.
	Size int
}
