package cmdlist

import "github.com/rs/zerolog"

// Timing is the panel's currently negotiated display timing, read-only
// input to patch instructions.
type Timing interface {
	HActive() int
	HSyncWidth() int
	HFrontPorch() int
	HBackPorch() int
	VActive() int
	VSyncWidth() int
	VFrontPorch() int
	VBackPorch() int
}

// PatchOp rewrites DestLen bits of the staged output buffer at bit offset
// DestStart, most significant bit first within each addressed byte. The
// value is either the Const literal (Selector == OpPatchConst) or a timing
// quantity, right-shifted by SrcShift before patching.
type PatchOp struct {
	Selector  byte
	DestStart int
	DestLen   int
	SrcShift  int
	Const     uint32
}

func (p PatchOp) value(t Timing, log zerolog.Logger) uint32 {
	var v int
	switch p.Selector {
	case OpPatchConst:
		return p.Const
	case OpPatchHSync:
		v = t.HSyncWidth()
	case OpPatchHBack:
		v = t.HBackPorch()
	case OpPatchHActive:
		v = t.HActive()
	case OpPatchHFront:
		v = t.HFrontPorch()
	case OpPatchVSync:
		v = t.VSyncWidth()
	case OpPatchVBack:
		v = t.VBackPorch()
	case OpPatchVActive:
		v = t.VActive()
	case OpPatchVFront:
		v = t.VFrontPorch()
	default:
		log.Warn().Uint8("selector", p.Selector).Msg("unknown patch selector, patching 0")
		return 0
	}
	return uint32(v)
}

// Apply resolves the patch value and writes it into buf. Bits outside the
// target range are preserved; bits past the end of buf are dropped.
func (p PatchOp) Apply(buf []byte, t Timing, log zerolog.Logger) {
	val := p.value(t, log) >> uint(p.SrcShift&31)

	pos := p.DestStart
	n := p.DestLen
	limit := len(buf) * 8
	for n > 0 && pos < limit {
		idx := pos >> 3
		off := pos & 7
		take := 8 - off
		if take > n {
			take = n
		}
		chunk := byte(val >> uint(n-take) & (1<<take - 1))
		shift := uint(8 - off - take)
		mask := byte(1<<take-1) << shift
		buf[idx] = buf[idx]&^mask | chunk<<shift
		pos += take
		n -= take
	}
}
