// Package image reconstructs the loaded memory view of an LE/LX executable
// from its on-disk pages and relocation records.
package image

import (
	"encoding/binary"
	"fmt"

	"ledisasm/internal/lefile"
)

// Object is one reconstructed loadable segment: a zero-filled byte vector
// sized to the object's virtual size, patched with page data and then with
// little-endian 32-bit fixup targets.
type Object struct {
	Index      int
	Base       uint32
	Size       uint32
	Executable bool
	Data       []byte
}

// Image is the reconstructed view of every object in the executable.
// Object byte vectors are immutable after Build returns and may be shared
// read-only across the analyser's single-threaded pipeline.
type Image struct {
	Objects []Object
}

// Build reconstructs the image described by le, reading page data out of
// le's backing bytes. Short reads and fixups that would write past an
// object's end are fatal, matching the source's apply_fixups/create_image
// behavior.
func Build(le *lefile.File) (*Image, error) {
	hdr := le.Header()
	raw := le.Bytes()

	img := &Image{Objects: make([]Object, le.ObjectCount())}

	for oi := 0; oi < le.ObjectCount(); oi++ {
		ohdr := le.ObjectHeader(oi)
		data := make([]byte, ohdr.VirtualSize)

		dataOff := uint32(0)
		pageEnd := ohdr.FirstPageIndex + ohdr.PageCount
		if pageEnd > hdr.PageCount+1 {
			pageEnd = hdr.PageCount + 1
		}

		for pageIdx := ohdr.FirstPageIndex; pageIdx < pageEnd; pageIdx++ {
			remaining := ohdr.VirtualSize - dataOff
			var size uint32
			if pageIdx < hdr.PageCount {
				size = min32(remaining, hdr.PageSize)
			} else {
				size = min32(remaining, hdr.LastPageSize)
			}

			fileOff := le.PageFileOffset(pageIdx)
			if fileOff < 0 || fileOff+int64(size) > int64(len(raw)) {
				return nil, fmt.Errorf("image: object %d page %d: unexpected read past end of file", oi, pageIdx)
			}
			copy(data[dataOff:dataOff+size], raw[fileOff:fileOff+int64(size)])
			dataOff += size
		}

		if err := applyFixups(le.FixupsForObject(oi), data); err != nil {
			return nil, fmt.Errorf("image: object %d: %w", oi, err)
		}

		img.Objects[oi] = Object{
			Index:      oi,
			Base:       ohdr.BaseAddress,
			Size:       ohdr.VirtualSize,
			Executable: ohdr.Executable(),
			Data:       data,
		}
	}

	return img, nil
}

func applyFixups(fixups []lefile.Fixup, data []byte) error {
	for _, fx := range fixups {
		if uint64(fx.Offset)+4 > uint64(len(data)) {
			return fmt.Errorf("fixup at offset 0x%x overruns object of size 0x%x", fx.Offset, len(data))
		}
		binary.LittleEndian.PutUint32(data[fx.Offset:], fx.Target)
	}
	return nil
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// ObjectAt returns the object containing absolute address addr, or nil.
func (img *Image) ObjectAt(addr uint32) *Object {
	for i := range img.Objects {
		o := &img.Objects[i]
		if addr >= o.Base && addr < o.Base+o.Size {
			return o
		}
	}
	return nil
}

// ByteAt returns the byte at absolute address addr.
func (img *Image) ByteAt(addr uint32) (byte, bool) {
	o := img.ObjectAt(addr)
	if o == nil {
		return 0, false
	}
	return o.Data[addr-o.Base], true
}

// BytesAt returns up to n bytes starting at absolute address addr,
// clipped to the end of the containing object.
func (img *Image) BytesAt(addr uint32, n int) []byte {
	o := img.ObjectAt(addr)
	if o == nil {
		return nil
	}
	off := addr - o.Base
	avail := int(o.Size - off)
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return nil
	}
	return o.Data[off : off+uint32(n)]
}

// Uint32At reads a little-endian uint32 at absolute address addr.
func (img *Image) Uint32At(addr uint32) (uint32, bool) {
	b := img.BytesAt(addr, 4)
	if len(b) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}
