package lefile

import (
	"encoding/binary"
	"testing"
)

// buildSyntheticLE constructs a minimal one-object, one-page, one-fixup
// LE file byte-for-byte, following the header/object-table/fixup-table
// layout this package parses. It is used to exercise Parse end-to-end
// without a real captured executable.
func buildSyntheticLE(t *testing.T) []byte {
	t.Helper()

	const (
		pageSize     = 0x1000
		virtualSize  = 0x10
		baseAddr     = 0x2000
		objTableOff  = HeaderSize
		fixupPageOff = objTableOff + objectHeaderSize
		fixupRecOff  = fixupPageOff + 8 // 2 page-table entries
		dataPageOff  = fixupRecOff + 7  // 1 fixup record
	)

	buf := make([]byte, dataPageOff+virtualSize)
	le := binary.LittleEndian

	buf[0], buf[1] = 'L', 'E'
	le.PutUint32(buf[offPageCount:], 1)
	le.PutUint32(buf[offEIPObjectIndex:], 0)
	le.PutUint32(buf[offEIPOffset:], 4)
	le.PutUint32(buf[offESPObjectIndex:], 0)
	le.PutUint32(buf[offESPOffset:], 8)
	le.PutUint32(buf[offPageSize:], pageSize)
	le.PutUint32(buf[offLastPageSize:], virtualSize)
	le.PutUint32(buf[offObjectTableOffset:], objTableOff)
	le.PutUint32(buf[offObjectCount:], 1)
	le.PutUint32(buf[offPageTableOffset:], objTableOff) // unused by this package
	le.PutUint32(buf[offFixupPageOffset:], fixupPageOff)
	le.PutUint32(buf[offFixupRecordOffset:], fixupRecOff)
	le.PutUint32(buf[offDataPagesOffset:], dataPageOff)

	// Object table: one object.
	o := buf[objTableOff:]
	le.PutUint32(o[0:], virtualSize)
	le.PutUint32(o[4:], baseAddr)
	le.PutUint32(o[8:], uint32(FlagExecutable))
	le.PutUint32(o[12:], 1) // first page index (1-based)
	le.PutUint32(o[16:], 1) // page count

	// Fixup page table: 2 entries (1 page + sentinel).
	p := buf[fixupPageOff:]
	le.PutUint32(p[0:], 0)
	le.PutUint32(p[4:], 7)

	// One fixup record: patch offset 0 to point at object 1 offset 0
	// (i.e. the object's own base address), short form.
	r := buf[fixupRecOff:]
	r[0] = byte(SrcOffset32)
	r[1] = 0 // flags: short (2-byte) destination offset
	le.PutUint16(r[2:], 0)
	r[4] = 1 // destObj (1-based)
	le.PutUint16(r[5:], 0)

	// Data page: filled with a recognizable pattern; bytes [0,4) will be
	// overwritten by the fixup.
	for i := 0; i < virtualSize; i++ {
		buf[dataPageOff+i] = 0xAA
	}

	return buf
}

func TestParseSyntheticFile(t *testing.T) {
	raw := buildSyntheticLE(t)
	f, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if f.ObjectCount() != 1 {
		t.Fatalf("ObjectCount = %d, want 1", f.ObjectCount())
	}
	oh := f.ObjectHeader(0)
	if oh.BaseAddress != 0x2000 || oh.VirtualSize != 0x10 || !oh.Executable() {
		t.Errorf("ObjectHeader = %+v, unexpected", oh)
	}

	eip, err := f.EntryPoint()
	if err != nil {
		t.Fatalf("EntryPoint: %v", err)
	}
	if eip != 0x2004 {
		t.Errorf("EntryPoint = 0x%x, want 0x2004", eip)
	}

	fixups := f.FixupsForObject(0)
	if len(fixups) != 1 || fixups[0].Offset != 0 || fixups[0].Target != 0x2000 {
		t.Errorf("FixupsForObject(0) = %+v, want one fixup at offset 0 targeting 0x2000", fixups)
	}

	targets := f.FixupTargetAddresses()
	if len(targets) != 1 || targets[0] != 0x2000 {
		t.Errorf("FixupTargetAddresses = %v, want [0x2000]", targets)
	}
}

func TestParseRejectsBadSignature(t *testing.T) {
	raw := buildSyntheticLE(t)
	raw[0] = 'X'
	if _, err := Parse(raw); err == nil {
		t.Error("Parse with a bad signature: want error, got nil")
	}
}
