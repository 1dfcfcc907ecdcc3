package analyser

import (
	"fmt"

	"ledisasm/internal/diag"
	"ledisasm/internal/label"
	"ledisasm/internal/region"
	"ledisasm/internal/xinstr"
)

const maxInstructionBytes = 15 // longest possible x86 instruction encoding

// codeTracePass drains the trace queue to exhaustion, calling
// traceCodeAt on every address. The queue may grow while draining: tracing
// one address can enqueue new call/jump targets.
func (a *Analyser) codeTracePass() error {
	for len(a.queue) > 0 {
		addr := a.queue[0]
		a.queue = a.queue[1:]
		if err := a.traceCodeAt(addr); err != nil {
			return err
		}
	}
	return nil
}

// traceCodeAt walks start's region one instruction at a time, typing it
// CODE (or DATA if it runs into an unacceptable decode) per spec.md §4.5.
func (a *Analyser) traceCodeAt(start uint32) error {
	reg, ok := a.Regions.GetAt(start)
	if !ok {
		return a.Diags.Record(diag.SoftAnalysis, start, "trace target falls outside all regions")
	}
	if reg.Type != region.Unknown {
		return nil
	}

	addr := start
	regType := region.Code

	for addr < reg.End() {
		data := a.Image.BytesAt(addr, maxInstructionBytes)
		if len(data) == 0 {
			if err := a.Diags.Record(diag.SoftAnalysis, addr, "ran out of bytes while tracing"); err != nil {
				return err
			}
			regType = region.Data
			break
		}

		inst, err := xinstr.Classify(addr, data)
		if err != nil {
			// Classify only returns an error for a genuinely fatal decode
			// (non-positive instruction length); an unrecognized or
			// truncated opcode comes back as an unacceptable "(bad)"
			// instruction instead, handled below.
			return fmt.Errorf("analyser: %w", err)
		}

		if !xinstr.IsAcceptable(inst) {
			regType = region.Data
			addr += uint32(inst.Size)
			break
		}

		if inst.Target != 0 {
			switch inst.Kind {
			case xinstr.Call:
				a.Labels.Set(label.Label{Address: inst.Target, Type: label.Function})
				a.enqueue(inst.Target)
			case xinstr.Jump, xinstr.CondJump:
				a.Labels.Set(label.Label{Address: inst.Target, Type: label.Jump})
				a.enqueue(inst.Target)
			}
		}

		addr += uint32(inst.Size)
		if inst.Kind == xinstr.Jump || inst.Kind == xinstr.Ret {
			break
		}
	}

	return a.Regions.Insert(region.Region{Address: start, Size: addr - start, Type: regType})
}
