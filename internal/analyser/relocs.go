package analyser

import (
	"ledisasm/internal/label"
	"ledisasm/internal/region"
)

// remainingRelocPass visits every global fixup target still UNKNOWN or
// DATA after the code-trace and vtable passes, per spec.md §4.5: an
// UNKNOWN target with no existing FUNCTION/JUMP label is guessed to be a
// function (and the guess counted); a DATA target is simply labeled DATA.
func (a *Analyser) remainingRelocPass() error {
	for _, target := range a.LE.FixupTargetAddresses() {
		reg, ok := a.Regions.GetAt(target)
		if !ok {
			continue
		}

		switch reg.Type {
		case region.Unknown:
			lbl, hasLabel := a.Labels.Get(target)
			needsGuess := !hasLabel || (lbl.Type != label.Function && lbl.Type != label.Jump)
			if needsGuess {
				if err := a.Diags.Guess(target, "remaining relocation has no function/jump label, guessing FUNCTION"); err != nil {
					return err
				}
				a.Labels.Set(label.Label{Address: target, Type: label.Function})
			}
			a.enqueue(target)
			if err := a.codeTracePass(); err != nil {
				return err
			}
		case region.Data:
			a.Labels.Set(label.Label{Address: target, Type: label.Data})
		}
	}
	return nil
}
