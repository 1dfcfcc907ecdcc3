package analyser

import (
	"encoding/binary"
	"testing"

	"ledisasm/internal/diag"
	"ledisasm/internal/image"
	"ledisasm/internal/label"
	"ledisasm/internal/lefile"
	"ledisasm/internal/region"
)

// buildSyntheticLE constructs a one-object, one-page, fixup-free executable
// whose entry point calls a second function and returns, so Run can be
// exercised end to end without a captured binary.
func buildSyntheticLE(t *testing.T) []byte {
	t.Helper()

	const (
		virtualSize = 0x40
		baseAddr    = 0x1000
		headerSize  = 0xAC
	)
	objTableOff := headerSize
	fixupPageOff := objTableOff + 0x18
	fixupRecOff := fixupPageOff + 8 // 2 page-table entries, both zero: no records
	dataPageOff := fixupRecOff      // no fixup records

	buf := make([]byte, dataPageOff+virtualSize)
	le := binary.LittleEndian

	buf[0], buf[1] = 'L', 'E'
	le.PutUint32(buf[0x14:], 1)            // page count
	le.PutUint32(buf[0x18:], 0)            // eip object index
	le.PutUint32(buf[0x1C:], 0)            // eip offset
	le.PutUint32(buf[0x28:], 0x1000)       // page size
	le.PutUint32(buf[0x2C:], virtualSize)  // last page size
	le.PutUint32(buf[0x40:], uint32(objTableOff))
	le.PutUint32(buf[0x44:], 1) // object count
	le.PutUint32(buf[0x68:], uint32(fixupPageOff))
	le.PutUint32(buf[0x6C:], uint32(fixupRecOff))
	le.PutUint32(buf[0x80:], uint32(dataPageOff))

	o := buf[objTableOff:]
	le.PutUint32(o[0:], virtualSize)
	le.PutUint32(o[4:], baseAddr)
	le.PutUint32(o[8:], 1) // FlagExecutable
	le.PutUint32(o[12:], 1)
	le.PutUint32(o[16:], 1)

	p := buf[fixupPageOff:]
	le.PutUint32(p[0:], 0)
	le.PutUint32(p[4:], 0)

	data := buf[dataPageOff:]
	for i := range data {
		data[i] = 0x90 // NOP filler
	}
	// entry (offset 0): call rel32 -> offset 0x10, then ret.
	data[0] = 0xE8
	le.PutUint32(data[1:], 0x0B) // disp: target - (addr+5) = 0x10 - 0x05
	data[5] = 0xC3
	// function at offset 0x10: ret.
	data[0x10] = 0xC3

	return buf
}

func TestRunTracesCallAndReturn(t *testing.T) {
	raw := buildSyntheticLE(t)
	le, err := lefile.Parse(raw)
	if err != nil {
		t.Fatalf("lefile.Parse: %v", err)
	}
	img, err := image.Build(le)
	if err != nil {
		t.Fatalf("image.Build: %v", err)
	}

	a := New(img, le, nil, diag.New(diag.Options{}))
	if err := a.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if r, ok := a.Regions.GetAt(0x1000); !ok || r.Type != region.Code {
		t.Errorf("region at entry = %+v, %v; want CODE", r, ok)
	}
	if r, ok := a.Regions.GetAt(0x1010); !ok || r.Type != region.Code {
		t.Errorf("region at call target = %+v, %v; want CODE", r, ok)
	}
	if l, ok := a.Labels.Get(0x1010); !ok || l.Type != label.Function {
		t.Errorf("label at call target = %+v, %v; want FUNCTION", l, ok)
	}
	if l, ok := a.Labels.Get(0x1000); !ok || l.Type != label.Function || l.Name != "_start" {
		t.Errorf("entry label = %+v, %v; want FUNCTION named _start", l, ok)
	}
}

func TestRunIsIdempotentOnRegionTypes(t *testing.T) {
	raw := buildSyntheticLE(t)
	le, err := lefile.Parse(raw)
	if err != nil {
		t.Fatalf("lefile.Parse: %v", err)
	}
	img, err := image.Build(le)
	if err != nil {
		t.Fatalf("image.Build: %v", err)
	}

	a := New(img, le, nil, diag.New(diag.Options{}))
	if err := a.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	first := collectRegions(a.Regions)

	// Re-enqueue already-traced addresses directly: traceCodeAt must be a
	// no-op once a region is no longer UNKNOWN, per spec.md §8 invariant 4.
	a.enqueue(0x1000)
	a.enqueue(0x1010)
	if err := a.codeTracePass(); err != nil {
		t.Fatalf("codeTracePass: %v", err)
	}

	second := collectRegions(a.Regions)
	if len(first) != len(second) {
		t.Fatalf("region count changed on re-run: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("region %d changed on re-run: %+v -> %+v", i, first[i], second[i])
		}
	}
}

func collectRegions(m *region.Map) []region.Region {
	var out []region.Region
	m.All(func(r region.Region) bool {
		out = append(out, r)
		return true
	})
	return out
}
