package lefile

import "fmt"

// Header-field byte offsets within the LE/LX "New Header", following the
// on-disk layout used by the module writer in the example pack (the same
// offsets load-bearing in its WriteTo: signature, page count, EIP/ESP
// object+offset, page size, last-page size, fixup/loader section sizes,
// object table offset, object count, page table offset, fixup page/record
// table offsets, data page offset).
const (
	offSignature         = 0x00 // 2 bytes: "LE" or "LX"
	offCPUType           = 0x08
	offPageCount         = 0x14
	offEIPObjectIndex    = 0x18
	offEIPOffset         = 0x1C
	offESPObjectIndex    = 0x20
	offESPOffset         = 0x24
	offPageSize          = 0x28
	offLastPageSize      = 0x2C
	offFixupSectionSize  = 0x30
	offLoaderSectionSize = 0x38
	offObjectTableOffset = 0x40
	offObjectCount       = 0x44
	offPageTableOffset   = 0x48
	offFixupPageOffset   = 0x68
	offFixupRecordOffset = 0x6C
	offDataPagesOffset   = 0x80

	HeaderSize = 0xAC

	objectHeaderSize = 0x18 // 24 bytes
)

// Header holds the fields of the LE/LX header that the analysis pipeline
// needs: entry/stack location, page geometry, and section sizes used by
// the known-file fingerprint table.
type Header struct {
	Signature         [2]byte
	EIPObjectIndex    uint32
	EIPOffset         uint32
	ESPObjectIndex    uint32
	ESPOffset         uint32
	PageSize          uint32
	PageCount         uint32
	LastPageSize      uint32
	FixupSectionSize  uint32
	LoaderSectionSize uint32
	ObjectCount       uint32
	ObjectTableOffset uint32
	PageTableOffset   uint32
	FixupPageOffset   uint32
	FixupRecordOffset uint32
	DataPagesOffset   uint32
}

// IsLE reports whether the header carries the "LE" signature.
func (h *Header) IsLE() bool { return h.Signature[0] == 'L' && h.Signature[1] == 'E' }

// IsLX reports whether the header carries the "LX" signature.
func (h *Header) IsLX() bool { return h.Signature[0] == 'L' && h.Signature[1] == 'X' }

func parseHeader(raw []byte) (*Header, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("lefile: header truncated: got %d bytes, need %d", len(raw), HeaderSize)
	}
	c := NewCursor(raw)

	h := &Header{}
	copy(h.Signature[:], raw[offSignature:offSignature+2])
	if !h.IsLE() && !h.IsLX() {
		return nil, fmt.Errorf("lefile: bad signature %q, expected LE or LX", h.Signature[:])
	}

	read32 := func(off int) (uint32, error) {
		c.SetPosition(off)
		return c.ReadUint32()
	}

	var err error
	fields := []struct {
		off int
		dst *uint32
	}{
		{offPageCount, &h.PageCount},
		{offEIPObjectIndex, &h.EIPObjectIndex},
		{offEIPOffset, &h.EIPOffset},
		{offESPObjectIndex, &h.ESPObjectIndex},
		{offESPOffset, &h.ESPOffset},
		{offPageSize, &h.PageSize},
		{offLastPageSize, &h.LastPageSize},
		{offFixupSectionSize, &h.FixupSectionSize},
		{offLoaderSectionSize, &h.LoaderSectionSize},
		{offObjectTableOffset, &h.ObjectTableOffset},
		{offObjectCount, &h.ObjectCount},
		{offPageTableOffset, &h.PageTableOffset},
		{offFixupPageOffset, &h.FixupPageOffset},
		{offFixupRecordOffset, &h.FixupRecordOffset},
		{offDataPagesOffset, &h.DataPagesOffset},
	}
	for _, f := range fields {
		*f.dst, err = read32(f.off)
		if err != nil {
			return nil, fmt.Errorf("lefile: reading header field at 0x%x: %w", f.off, err)
		}
	}
	if h.PageSize == 0 {
		return nil, fmt.Errorf("lefile: page size is zero")
	}
	return h, nil
}
