package lefile

import (
	"fmt"
	"os"
	"sort"
)

// Fixup is one relocation: a 32-bit patch site at Offset within an object's
// byte vector, and the absolute linear address it resolves to.
type Fixup struct {
	Offset uint32
	Target uint32
}

// File is the in-memory LE/LX container: header, object table, and
// per-object fixup records. It implements the "LE model" contract that the
// image builder and analyser consume (spec.md §6): header fields, object
// metadata, page file offsets, and both per-object and global relocation
// views.
type File struct {
	raw     []byte
	header  *Header
	objects []ObjectHeader
	fixups  [][]Fixup // per object, sorted by Offset
	allTgts []uint32  // global ordered set of fixup target addresses
}

// Open reads and parses an LE/LX file in full.
func Open(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lefile: open %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes an LE/LX container already held in memory.
func Parse(raw []byte) (*File, error) {
	hdr, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}
	if hdr.ObjectCount == 0 {
		return nil, fmt.Errorf("lefile: object count is zero")
	}
	if hdr.ObjectCount > 64 {
		return nil, fmt.Errorf("lefile: implausible object count: %d", hdr.ObjectCount)
	}

	objs, err := parseObjectTable(raw, int(hdr.ObjectTableOffset), hdr.ObjectCount)
	if err != nil {
		return nil, err
	}

	f := &File{raw: raw, header: hdr, objects: objs}

	if err := f.parseAllFixups(); err != nil {
		return nil, err
	}
	return f, nil
}

// parseAllFixups decodes the fixup page table and fixup record table for
// every object, following the per-page indirection used by the example
// pack's module writer (fixupdata.write): the fixup page table holds one
// uint32 byte-offset-into-the-record-table per object page, plus a
// trailing sentinel, so page i's records span
// [pageTable[i], pageTable[i+1]) within the record table.
func (f *File) parseAllFixups() error {
	h := f.header
	pageOff := int(h.FixupPageOffset)
	recOff := int(h.FixupRecordOffset)

	totalPages := 0
	for _, o := range f.objects {
		totalPages += int(o.PageCount)
	}

	if pageOff < 0 || pageOff+4*(totalPages+1) > len(f.raw) {
		return fmt.Errorf("lefile: fixup page table out of bounds")
	}
	pageTable := make([]uint32, totalPages+1)
	pc := NewCursorAt(f.raw, pageOff)
	for i := range pageTable {
		v, err := pc.ReadUint32()
		if err != nil {
			return fmt.Errorf("lefile: fixup page table entry %d: %w", i, err)
		}
		pageTable[i] = v
	}

	f.fixups = make([][]Fixup, len(f.objects))
	targetSet := map[uint32]struct{}{}

	pageCursor := 0
	for oi, obj := range f.objects {
		var objFixups []Fixup
		for p := 0; p < int(obj.PageCount); p++ {
			start := recOff + int(pageTable[pageCursor])
			end := recOff + int(pageTable[pageCursor+1])
			pageCursor++
			if start < 0 || end > len(f.raw) || start > end {
				return fmt.Errorf("lefile: object %d page %d fixup record range out of bounds", oi, p)
			}
			base := int32(p) << 12 // page-relative source offsets are page-sized
			raws, err := parseFixupRecords(f.raw[start:end], base)
			if err != nil {
				return fmt.Errorf("lefile: object %d page %d fixup records: %w", oi, p, err)
			}
			for _, rf := range raws {
				if rf.destObj < 1 || int(rf.destObj) > len(f.objects) {
					return fmt.Errorf("lefile: object %d fixup targets invalid object %d", oi, rf.destObj)
				}
				target := f.objects[rf.destObj-1].BaseAddress + uint32(rf.destOff)
				objFixups = append(objFixups, Fixup{Offset: uint32(rf.srcOff), Target: target})
				targetSet[target] = struct{}{}
			}
		}
		sort.Slice(objFixups, func(i, j int) bool { return objFixups[i].Offset < objFixups[j].Offset })
		f.fixups[oi] = objFixups
	}

	f.allTgts = make([]uint32, 0, len(targetSet))
	for t := range targetSet {
		f.allTgts = append(f.allTgts, t)
	}
	sort.Slice(f.allTgts, func(i, j int) bool { return f.allTgts[i] < f.allTgts[j] })
	return nil
}

// Header returns the parsed LE/LX header.
func (f *File) Header() *Header { return f.header }

// ObjectCount returns the number of objects.
func (f *File) ObjectCount() int { return len(f.objects) }

// ObjectHeader returns the metadata for object i.
func (f *File) ObjectHeader(i int) ObjectHeader { return f.objects[i] }

// PageFileOffset returns the file offset of the 1-based page pageIdx.
func (f *File) PageFileOffset(pageIdx uint32) int64 {
	return int64(f.header.DataPagesOffset) + int64(pageIdx-1)*int64(f.header.PageSize)
}

// FixupsForObject returns object i's fixups ordered by offset-within-object.
func (f *File) FixupsForObject(i int) []Fixup { return f.fixups[i] }

// FixupTargetAddresses returns the global ordered set of absolute fixup
// target addresses across all objects, used by the vtable scan to bound
// its window.
func (f *File) FixupTargetAddresses() []uint32 { return f.allTgts }

// EntryPoint returns the absolute address of the program entry point
// (object[eip_object_index].base + header.eip_offset).
func (f *File) EntryPoint() (uint32, error) {
	oi := int(f.header.EIPObjectIndex)
	if oi < 0 || oi >= len(f.objects) {
		return 0, fmt.Errorf("lefile: eip object index %d out of range", oi)
	}
	return f.objects[oi].BaseAddress + f.header.EIPOffset, nil
}

// Bytes exposes the raw file contents, used by the image builder to read
// page data.
func (f *File) Bytes() []byte { return f.raw }
