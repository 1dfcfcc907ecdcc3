// Package xinstr classifies x86 instructions for control-flow discovery.
// It wraps golang.org/x/arch/x86/x86asm for decoding and byte length, then
// applies the opcode-byte classification table that determines branch
// kind and static target independently of the decoder's structured
// operands — the same split the source disassembler makes between
// "what libopcodes printed" and "what the raw bytes mean for tracing".
package xinstr

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Kind classifies an instruction's control-flow behavior.
type Kind int

const (
	Misc Kind = iota
	Call
	Jump
	CondJump
	Ret
)

func (k Kind) String() string {
	switch k {
	case Call:
		return "CALL"
	case Jump:
		return "JUMP"
	case CondJump:
		return "COND_JUMP"
	case Ret:
		return "RET"
	default:
		return "MISC"
	}
}

// Instruction is the transient result of classifying one instruction.
type Instruction struct {
	Size   int
	Text   string
	Kind   Kind
	Target uint32 // 0 means no static target
}

// ErrDecode reports a hard decoder failure (spec.md's Fatal-decode).
var ErrDecode = errors.New("xinstr: decoder error")

// unacceptableText is the literal set of normalized instruction texts that
// must be treated as failed decodes even though the decoder did not
// report an error — segment-prefix decoder stubs that look like valid
// one-byte instructions but are not meaningful as code.
var unacceptableText = map[string]bool{
	"(bad)": true,
	"ss":    true,
	"gs":    true,
}

// Classify decodes one instruction from data (which must start at the
// instruction boundary) and classifies it per spec.md §4.2. addr is the
// instruction's absolute address, used to compute branch targets.
func Classify(addr uint32, data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{}, fmt.Errorf("xinstr: empty input at 0x%x", addr)
	}

	inst, err := x86asm.Decode(data, 32)
	if err != nil {
		// An unrecognized or truncated instruction is the Go decoder's
		// equivalent of libopcodes printing "(bad)": a non-fatal decode
		// failure that retypes the region as DATA rather than aborting
		// the trace (original analyser.cpp's is_valid_acceptable_instruction
		// path). It still consumes at least one byte so the trace makes
		// forward progress.
		size := inst.Len
		if size <= 0 {
			size = 1
		}
		return Instruction{Size: size, Text: "(bad)", Kind: Misc}, nil
	}
	if inst.Len <= 0 {
		return Instruction{}, fmt.Errorf("%w: at 0x%x: non-positive length", ErrDecode, addr)
	}

	// A 0x66 prefix on a relative branch is skipped rather than narrowing
	// the displacement to 16 bits: the branch is decoded again without the
	// prefix, and the prefix byte is counted in its length.
	if data[0] == 0x66 && inst.DataSize == 16 && len(data) > 1 {
		if _, rel := inst.Args[0].(x86asm.Rel); rel {
			if inner, ierr := x86asm.Decode(data[1:], 32); ierr == nil && inner.Len > 0 {
				inner.Len++
				inst = inner
			}
		}
	}

	text := normalize(x86asm.GNUSyntax(inst, uint64(addr), nil))

	out := Instruction{Size: inst.Len, Text: text, Kind: Misc}
	if unacceptableText[text] {
		return out, nil
	}

	classify(addr, data, &out)
	return out, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsAcceptable reports whether inst's text is a valid instruction body
// rather than a decoder stub the analyser must retype as data.
func IsAcceptable(inst Instruction) bool {
	return !unacceptableText[inst.Text]
}

// classify applies the opcode-byte table of spec.md §4.2 directly to the
// raw bytes, skipping the branch-hint/operand-size prefixes (0x2E, 0x3E,
// 0x66, 0x67) exactly once at the start.
func classify(addr uint32, data []byte, inst *Instruction) {
	b0 := data[0]
	var b1 byte
	if b0 == 0x2e || b0 == 0x3e || b0 == 0x66 || b0 == 0x67 {
		if inst.Size > 1 {
			b0 = data[1]
		}
		if inst.Size > 2 {
			b1 = data[2]
		}
	} else if inst.Size > 1 {
		b1 = data[1]
	}

	haveTarget := true

	switch {
	case b0 == 0x0f:
		if b1 >= 0x80 && b1 <= 0x8f {
			inst.Kind = CondJump
		}
	case b0 == 0xe8:
		inst.Kind = Call
	case b0 == 0xe9, b0 == 0xea, b0 == 0xeb:
		inst.Kind = Jump
	case b0 == 0xc2, b0 == 0xc3, b0 == 0xca, b0 == 0xcb, b0 == 0xcf:
		inst.Kind = Ret
	case b0 >= 0x70 && b0 <= 0x7f:
		inst.Kind = CondJump
	case b0 >= 0xe0 && b0 <= 0xe2:
		inst.Kind = CondJump
	case b0 == 0xe3:
		inst.Kind = CondJump
	case b0 == 0xff:
		haveTarget = false
		reg := (b1 & 0x38) >> 3
		switch reg {
		case 2, 3:
			inst.Kind = Call
		case 4, 5:
			inst.Kind = Jump
		}
	}

	if haveTarget && (inst.Kind == CondJump || inst.Kind == Jump || inst.Kind == Call) {
		if inst.Size < 5 {
			disp := int8(data[inst.Size-1])
			inst.Target = addr + uint32(inst.Size) + uint32(int32(disp))
		} else {
			disp := int32(data[inst.Size-4]) | int32(data[inst.Size-3])<<8 |
				int32(data[inst.Size-2])<<16 | int32(data[inst.Size-1])<<24
			inst.Target = addr + uint32(inst.Size) + uint32(disp)
		}
	}
}
