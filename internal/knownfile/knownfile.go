// Package knownfile recognizes specific binaries by a fixed table of
// header and per-object fingerprints, and applies hard-coded region and
// label overrides around the analyser run for files it recognizes.
package knownfile

import (
	"fmt"
	"os"

	"ledisasm/internal/label"
	"ledisasm/internal/lefile"
	"ledisasm/internal/region"
)

// Tag is a closed enumeration of recognized binaries.
type Tag int

const (
	NotKnown Tag = iota
	GameAFinalMain
	GameBFinalMain
)

type objectFingerprint struct {
	virtualSize uint32
	baseAddress uint32
}

type fingerprint struct {
	tag               Tag
	eipOffset         uint32
	espOffset         uint32
	lastPageSize      uint32
	fixupSectionSize  uint32
	loaderSectionSize uint32
	objectCount       uint32
	objects           []objectFingerprint
}

// table holds the two fingerprints carried over from the reference
// implementation's hard-coded recognition table.
var table = []fingerprint{
	{
		tag:               GameAFinalMain,
		eipOffset:         0xd581c,
		espOffset:         0x9ffe0,
		lastPageSize:      0x34a,
		fixupSectionSize:  0x5d9ca,
		loaderSectionSize: 0x5df3f,
		objectCount:       4,
		objects: []objectFingerprint{
			{virtualSize: 0x12d030, baseAddress: 0x10000},
			{virtualSize: 0x96, baseAddress: 0x140000},
			{virtualSize: 0x9ffe0, baseAddress: 0x150000},
			{virtualSize: 0x1b58, baseAddress: 0x1f0000},
		},
	},
	{
		tag:               GameBFinalMain,
		eipOffset:         0x2d85c,
		espOffset:         0x13e60,
		lastPageSize:      0xe39,
		fixupSectionSize:  0x12ee9,
		loaderSectionSize: 0x130f6,
		objectCount:       4,
		objects: []objectFingerprint{
			{virtualSize: 0x3fdf4, baseAddress: 0x10000},
			{virtualSize: 0x13e60, baseAddress: 0x50000},
			{virtualSize: 0xc00, baseAddress: 0x70000},
			{virtualSize: 0x1c632, baseAddress: 0x80000},
		},
	},
}

// Check compares le's header and object table against the fingerprint
// table and returns the matching tag, or NotKnown.
func Check(le *lefile.File) Tag {
	hdr := le.Header()
	for _, fp := range table {
		if hdr.EIPOffset != fp.eipOffset ||
			hdr.ESPOffset != fp.espOffset ||
			hdr.LastPageSize != fp.lastPageSize ||
			hdr.FixupSectionSize != fp.fixupSectionSize ||
			hdr.LoaderSectionSize != fp.loaderSectionSize ||
			hdr.ObjectCount != fp.objectCount {
			continue
		}
		if matchesObjects(le, fp.objects) {
			return fp.tag
		}
	}
	return NotKnown
}

func matchesObjects(le *lefile.File, objs []objectFingerprint) bool {
	if le.ObjectCount() != len(objs) {
		return false
	}
	for i, want := range objs {
		got := le.ObjectHeader(i)
		if got.VirtualSize != want.virtualSize || got.BaseAddress != want.baseAddress {
			return false
		}
	}
	return true
}

// PreAnalysisFixups applies tag's hard-coded region and label overrides.
// It must run after seeding and before the first trace pass.
func PreAnalysisFixups(tag Tag, regions *region.Map, labels *label.Map) {
	switch tag {
	case GameAFinalMain:
		fmt.Fprintln(os.Stderr, "known file: recognized binary (profile A, final build)")
		for _, r := range []region.Region{
			{Address: 0x0e581e, Size: 0x76, Type: region.Data},
			{Address: 0x0e5af1, Size: 0xf, Type: region.Data},
			{Address: 0x0e73e2, Size: 0x4e, Type: region.Data},
			{Address: 0x0ea128, Size: 0x202, Type: region.Data},
			{Address: 0x10ae19, Size: 0x25, Type: region.Data},
			{Address: 0x10aeb5, Size: 0x25, Type: region.Data},
			{Address: 0x117830, Size: 0x200, Type: region.Data},
			{Address: 0x1233f3, Size: 0x40, Type: region.Data},
			{Address: 0x12b3d0, Size: 0x2450, Type: region.Data},
		} {
			_ = regions.Insert(r)
		}
		for _, l := range []label.Label{
			{Address: 0x03cd08, Type: label.Jump},
			{Address: 0x03fdc8, Type: label.Jump},
			{Address: 0x035644, Type: label.Jump},
			{Address: 0x13c443, Type: label.Jump},
			{Address: 0x140096, Type: label.Function},
		} {
			labels.Set(l)
		}

	case GameBFinalMain:
		fmt.Fprintln(os.Stderr, "known file: recognized binary (profile B, final build)")
		vtables := []uint32{
			0x014550, 0x014568, 0x015C0C, 0x015C40, 0x016508, 0x0175B0, 0x018238,
			0x01BE1C, 0x01D390, 0x01D438, 0x01FB50, 0x025830, 0x025920, 0x026EB0,
			0x029760, 0x02C340, 0x02F980, 0x02FCE0, 0x02FE2C, 0x0312F8, 0x0346C0,
			0x034A70, 0x034AB0, 0x0375C0, 0x0375D0, 0x04225E, 0x043992, 0x048794,
			0x0488BD, 0x0489CC, 0x04A3A7,
		}
		sizes := map[uint32]uint32{
			0x014550: 0x018, 0x014568: 0x0ac, 0x015C0C: 0x034, 0x015C40: 0x020,
			0x016508: 0x040, 0x0175B0: 0x010, 0x018238: 0x010, 0x01BE1C: 0x9c,
			0x01D390: 0x0a8, 0x01D438: 0x014, 0x01FB50: 0x64, 0x025830: 0x0b4,
			0x025920: 0x0ec, 0x026EB0: 0x034, 0x029760: 0x030, 0x02C340: 0x044,
			0x02F980: 0x010, 0x02FCE0: 0x040, 0x02FE2C: 0x040, 0x0312F8: 0x044,
			0x0346C0: 0x020, 0x034A70: 0x020, 0x034AB0: 0x020, 0x0375C0: 0x010,
			0x0375D0: 0x030, 0x04225E: 0x044, 0x043992: 0x10, 0x048794: 0x10,
			0x0488BD: 0x10, 0x0489CC: 0x10, 0x04A3A7: 0x10,
		}
		for _, addr := range vtables {
			_ = regions.Insert(region.Region{Address: addr, Size: sizes[addr], Type: region.Vtable})
		}
		for _, r := range []region.Region{
			{Address: 0x040431, Size: 0x25, Type: region.Data},
			{Address: 0x0404FB, Size: 0x25, Type: region.Data},
			{Address: 0x042ADE, Size: 0x08, Type: region.Data},
			{Address: 0x042AE6, Size: 0x08, Type: region.Data},
			{Address: 0x04FC81, Size: 0x40, Type: region.Data},
			{Address: 0x04FD30, Size: 0x028, Type: region.Data},
			{Address: 0x04FDA3, Size: 0x028, Type: region.Data},
			{Address: 0x04FDE4, Size: 0x010, Type: region.Data},
		} {
			_ = regions.Insert(r)
		}
	}
}

// PostAnalysisFixups applies tag's hard-coded post-run label removals. It
// must run after the analyser's run() completes.
func PostAnalysisFixups(tag Tag, labels *label.Map) {
	switch tag {
	case GameAFinalMain:
		labels.Remove(0x10000)
	}
}
