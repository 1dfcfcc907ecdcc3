// Package analyser implements the control-flow discovery engine: it owns
// the region map, label map, and trace queue, and runs the three-pass
// pipeline described in spec.md §4.5 that types every byte of every
// object as UNKNOWN, CODE, DATA, or VTABLE.
package analyser

import (
	"fmt"

	"ledisasm/internal/diag"
	"ledisasm/internal/image"
	"ledisasm/internal/knownfile"
	"ledisasm/internal/label"
	"ledisasm/internal/lefile"
	"ledisasm/internal/region"
	"ledisasm/internal/symbolmap"
)

// Analyser owns the region map, label map, and the FIFO trace queue for
// one run over one executable image. It is single-threaded and
// synchronous: every mutation of Regions and Labels happens on the
// goroutine that calls Run.
type Analyser struct {
	Image   *image.Image
	LE      *lefile.File
	Regions *region.Map
	Labels  *label.Map
	Diags   *diag.Diags

	symbols  *symbolmap.Map
	known    knownfile.Tag
	queue    []uint32
	fixupSrc []map[uint32]bool // per object, set of offsets that are fixup sources
}

// New constructs an Analyser over img/le, seeding nothing yet. symbols may
// be nil.
func New(img *image.Image, le *lefile.File, symbols *symbolmap.Map, diags *diag.Diags) *Analyser {
	a := &Analyser{
		Image:   img,
		LE:      le,
		Regions: region.New(),
		Labels:  label.New(),
		Diags:   diags,
		symbols: symbols,
	}
	a.fixupSrc = make([]map[uint32]bool, le.ObjectCount())
	for oi := 0; oi < le.ObjectCount(); oi++ {
		set := make(map[uint32]bool)
		for _, fx := range le.FixupsForObject(oi) {
			set[fx.Offset] = true
		}
		a.fixupSrc[oi] = set
	}
	return a
}

func (a *Analyser) enqueue(addr uint32) {
	a.queue = append(a.queue, addr)
}

// Run executes the full pipeline in the contractual order: symbol labels,
// entry-point label, queue seeding, known-file pre-analysis overrides,
// code-trace pass, vtable pass, remaining-reloc pass, known-file
// post-analysis overrides. Reordering these is not supported — the vtable
// pass depends on regions the code-trace pass has already typed.
func (a *Analyser) Run() error {
	a.createInitialRegions()
	a.setNonExecutableDataLabels()
	a.setSymbolLabels()
	if err := a.setEntryPointLabel(); err != nil {
		return err
	}
	a.enqueueSeedLabels()

	a.known = knownfile.Check(a.LE)
	knownfile.PreAnalysisFixups(a.known, a.Regions, a.Labels)

	if err := a.codeTracePass(); err != nil {
		return err
	}
	if err := a.vtablePass(); err != nil {
		return err
	}
	if err := a.remainingRelocPass(); err != nil {
		return err
	}

	knownfile.PostAnalysisFixups(a.known, a.Labels)
	return nil
}

// KnownTag returns the known-file tag detected during Run.
func (a *Analyser) KnownTag() knownfile.Tag { return a.known }

// createInitialRegions installs a single initial region per object:
// UNKNOWN for executable objects, DATA for everything else.
func (a *Analyser) createInitialRegions() {
	for _, obj := range a.Image.Objects {
		t := region.Data
		if obj.Executable {
			t = region.Unknown
		}
		a.Regions.Seed(obj.Base, obj.Size, t)
	}
}

func (a *Analyser) setNonExecutableDataLabels() {
	for _, obj := range a.Image.Objects {
		if !obj.Executable {
			a.Labels.Set(label.Label{Address: obj.Base, Type: label.Data})
		}
	}
}

func (a *Analyser) setSymbolLabels() {
	if a.symbols == nil {
		return
	}
	a.symbols.All(func(s symbolmap.Symbol) {
		a.Labels.Set(label.Label{Address: s.Address, Type: s.Type, Name: s.Name})
	})
}

func (a *Analyser) setEntryPointLabel() error {
	eip, err := a.LE.EntryPoint()
	if err != nil {
		return fmt.Errorf("analyser: %w", err)
	}
	a.Labels.Set(label.Label{Address: eip, Type: label.Function, Name: "_start"})
	return nil
}

func (a *Analyser) enqueueSeedLabels() {
	a.Labels.All(func(l label.Label) bool {
		switch l.Type {
		case label.Function, label.Jump, label.Unknown:
			a.enqueue(l.Address)
		}
		return true
	})
}
