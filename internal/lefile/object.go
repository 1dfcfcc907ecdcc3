package lefile

import "fmt"

// ObjFlag mirrors the object-table flag bits. The contract this package
// exposes to the analysis core treats bit 0 as the executable flag, per
// the external LE model contract.
type ObjFlag uint32

const (
	FlagExecutable ObjFlag = 0x0001
)

// ObjectHeader describes one loadable object (segment) of the executable.
type ObjectHeader struct {
	VirtualSize    uint32
	BaseAddress    uint32
	Flags          ObjFlag
	FirstPageIndex uint32 // 1-based index into the page table
	PageCount      uint32
}

// Executable reports whether the object is marked executable.
func (h ObjectHeader) Executable() bool { return h.Flags&FlagExecutable != 0 }

func parseObjectTable(raw []byte, off int, count uint32) ([]ObjectHeader, error) {
	need := int(count) * objectHeaderSize
	if off < 0 || off+need > len(raw) {
		return nil, fmt.Errorf("lefile: object table out of bounds (off=0x%x count=%d)", off, count)
	}
	c := NewCursorAt(raw, off)
	out := make([]ObjectHeader, count)
	for i := range out {
		var err error
		if out[i].VirtualSize, err = c.ReadUint32(); err != nil {
			return nil, fmt.Errorf("lefile: object %d virtual size: %w", i, err)
		}
		if out[i].BaseAddress, err = c.ReadUint32(); err != nil {
			return nil, fmt.Errorf("lefile: object %d base address: %w", i, err)
		}
		flags, err := c.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("lefile: object %d flags: %w", i, err)
		}
		out[i].Flags = ObjFlag(flags)
		if out[i].FirstPageIndex, err = c.ReadUint32(); err != nil {
			return nil, fmt.Errorf("lefile: object %d first page index: %w", i, err)
		}
		if out[i].PageCount, err = c.ReadUint32(); err != nil {
			return nil, fmt.Errorf("lefile: object %d page count: %w", i, err)
		}
		if err := c.Skip(4); err != nil { // reserved
			return nil, fmt.Errorf("lefile: object %d reserved field: %w", i, err)
		}
	}
	return out, nil
}

// SrcType identifies the kind of reference a fixup record patches. Values
// match the LE/LX on-disk encoding.
type SrcType uint32

const (
	SrcOffset32   SrcType = 0x07
	SrcRelative32 SrcType = 0x08
)

const fixupFlagLongOffset = 0x10

// rawFixup is one decoded fixup record: a patch site within an object's
// page-table-relative byte range, and the object+offset it targets.
type rawFixup struct {
	srcType  SrcType
	srcOff   int32
	destObj  int32 // 1-based
	destOff  int32
}

// parseFixupRecords decodes fixup records from rec, starting at base (the
// byte offset to add to each record's page-relative source offset), until
// rec is exhausted. This is the inverse of the example pack's
// module/write.go appendFixup encoding.
func parseFixupRecords(rec []byte, base int32) ([]rawFixup, error) {
	var out []rawFixup
	c := NewCursor(rec)
	for c.Remaining() > 0 {
		srcTypeB, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		flags, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		srcOff16, err := c.ReadUint16()
		if err != nil {
			return nil, err
		}
		destObjB, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		var destOff int32
		if flags&fixupFlagLongOffset != 0 {
			v, err := c.ReadUint32()
			if err != nil {
				return nil, err
			}
			destOff = int32(v)
		} else {
			v, err := c.ReadUint16()
			if err != nil {
				return nil, err
			}
			destOff = int32(v)
		}
		out = append(out, rawFixup{
			srcType: SrcType(srcTypeB),
			srcOff:  base + int32(srcOff16),
			destObj: int32(destObjB),
			destOff: destOff,
		})
	}
	return out, nil
}
