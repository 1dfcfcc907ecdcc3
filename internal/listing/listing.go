// Package listing renders the final region and label maps as a plain-text
// disassembly listing, the minimal concrete implementation of the
// listing-writer contract spec.md §6 specifies only the read side of.
package listing

import (
	"bufio"
	"fmt"
	"io"

	"ledisasm/internal/image"
	"ledisasm/internal/label"
	"ledisasm/internal/region"
	"ledisasm/internal/xinstr"
)

const maxInstructionBytes = 15

// Write renders one line per instruction inside CODE regions (address,
// bytes, normalized text, label name when one is set) and one summary
// line per DATA/VTABLE/UNKNOWN region, in address order.
func Write(w io.Writer, img *image.Image, regions *region.Map, labels *label.Map) error {
	bw := bufio.NewWriter(w)

	var writeErr error
	regions.All(func(r region.Region) bool {
		if r.Type == region.Code {
			writeErr = writeCodeRegion(bw, img, r, labels)
		} else {
			writeErr = writeDataRegion(bw, r, labels)
		}
		return writeErr == nil
	})
	if writeErr != nil {
		return writeErr
	}
	return bw.Flush()
}

func writeCodeRegion(w *bufio.Writer, img *image.Image, r region.Region, labels *label.Map) error {
	addr := r.Address
	for addr < r.End() {
		if lbl, ok := labels.Get(addr); ok {
			name := lbl.Name
			if name == "" {
				name = fmt.Sprintf("%s_%x", lbl.Type, addr)
			}
			if _, err := fmt.Fprintf(w, "%s:\n", name); err != nil {
				return err
			}
		}

		data := img.BytesAt(addr, maxInstructionBytes)
		if len(data) == 0 {
			break
		}
		inst, err := xinstr.Classify(addr, data)
		if err != nil {
			if _, werr := fmt.Fprintf(w, "%08x: <decode error: %v>\n", addr, err); werr != nil {
				return werr
			}
			break
		}
		bytes := data
		if len(bytes) > inst.Size {
			bytes = bytes[:inst.Size]
		}
		if _, err := fmt.Fprintf(w, "%08x: % x\t%s\n", addr, bytes, inst.Text); err != nil {
			return err
		}
		if inst.Size == 0 {
			break
		}
		addr += uint32(inst.Size)
	}
	return nil
}

func writeDataRegion(w *bufio.Writer, r region.Region, labels *label.Map) error {
	suffix := ""
	if lbl, ok := labels.Get(r.Address); ok && lbl.Name != "" {
		suffix = " " + lbl.Name
	}
	_, err := fmt.Fprintf(w, "%08x: .%s size=0x%x%s\n", r.Address, r.Type, r.Size, suffix)
	return err
}
