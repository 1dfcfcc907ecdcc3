package analyser

import (
	"sort"

	"ledisasm/internal/label"
	"ledisasm/internal/region"
)

// vtablePass scans each object's fixups in address order for dense arrays
// of relocated code pointers — C++ virtual-method tables — per spec.md
// §4.5. A vtable found here immediately drains the trace queue before the
// next fixup is examined, so that the functions it leads to are typed
// before they could otherwise be mistaken for data.
func (a *Analyser) vtablePass() error {
	allTargets := a.LE.FixupTargetAddresses() // already sorted ascending

	for oi := 0; oi < a.LE.ObjectCount(); oi++ {
		for _, fx := range a.LE.FixupsForObject(oi) {
			if err := a.scanVtableAt(fx.Target, allTargets); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Analyser) scanVtableAt(target uint32, allTargets []uint32) error {
	reg, ok := a.Regions.GetAt(target)
	if !ok || reg.Type != region.Unknown {
		return nil
	}

	obj := a.Image.ObjectAt(reg.Address)
	if obj == nil || !obj.Executable {
		return nil
	}

	maxScan := reg.End() - target
	if next, ok := nextGreater(allTargets, target); ok {
		if bound := next - target; bound < maxScan {
			maxScan = bound
		}
	}

	var count uint32
	for off := uint32(0); off+4 <= maxScan; off += 4 {
		word, ok := a.Image.Uint32At(target + off)
		if !ok {
			break
		}
		if word == 0 {
			count++
			continue
		}
		if a.fixupSrc[obj.Index][target+off-obj.Base] {
			count++
			a.Labels.Set(label.Label{Address: word, Type: label.Function})
			a.enqueue(word)
			continue
		}
		break
	}

	if count == 0 {
		return nil
	}

	if err := a.Regions.Insert(region.Region{Address: target, Size: 4 * count, Type: region.Vtable}); err != nil {
		return err
	}
	a.Labels.Set(label.Label{Address: target, Type: label.Vtable})
	return a.codeTracePass()
}

// nextGreater returns the smallest value in the ascending sorted slice
// vs that is strictly greater than v.
func nextGreater(vs []uint32, v uint32) (uint32, bool) {
	i := sort.Search(len(vs), func(i int) bool { return vs[i] > v })
	if i >= len(vs) {
		return 0, false
	}
	return vs[i], true
}
