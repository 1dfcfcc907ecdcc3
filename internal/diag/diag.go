// Package diag implements the diagnostic stream and soft-error
// accumulation described in spec.md §7's error taxonomy.
package diag

import "fmt"

// Kind names one of the four error categories of spec.md §7. FatalBuild
// and FatalDecode abort the pipeline and are reported as plain Go errors
// rather than recorded here; Kind still enumerates them so a Diag can
// describe which category a message belongs to when written to the
// diagnostic stream.
type Kind int

const (
	FatalBuild Kind = iota
	FatalDecode
	SoftAnalysis
	Heuristic
)

func (k Kind) String() string {
	switch k {
	case FatalBuild:
		return "fatal-build"
	case FatalDecode:
		return "fatal-decode"
	case Heuristic:
		return "heuristic"
	default:
		return "soft-analysis"
	}
}

// Diag is one recorded diagnostic event.
type Diag struct {
	Kind    Kind   `json:"kind"`
	Address uint32 `json:"address,omitempty"`
	Message string `json:"message"`
}

func (d Diag) String() string {
	if d.Address != 0 {
		return fmt.Sprintf("%s: 0x%x: %s", d.Kind, d.Address, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Mode selects how the accumulator reacts to Soft-analysis and Heuristic
// events: ModeBestEffort records them and continues; ModeStrict turns the
// first one into a fatal error instead.
type Mode int

const (
	ModeBestEffort Mode = iota
	ModeStrict
)

// Options configures a Diags accumulator.
type Options struct {
	Mode Mode
	// MaxGuesses caps the number of Heuristic "guess" events the
	// remaining-reloc pass may accumulate before it is treated as a
	// fatal error, guarding against a badly misidentified file turning
	// every leftover relocation into a guessed function.
	MaxGuesses int
}

// Diags accumulates non-fatal diagnostics and the running guess count.
type Diags struct {
	opts    Options
	events  []Diag
	guesses int
}

// New creates an accumulator with the given options.
func New(opts Options) *Diags {
	return &Diags{opts: opts}
}

// Record appends a Soft-analysis or Heuristic event. In ModeStrict it
// instead returns a non-nil error describing the event, and the event is
// not appended — the caller is expected to treat that as a Fatal-build
// style abort.
func (d *Diags) Record(kind Kind, addr uint32, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if d.opts.Mode == ModeStrict {
		return fmt.Errorf("diag: %s at 0x%x: %s", kind, addr, msg)
	}
	d.events = append(d.events, Diag{Kind: kind, Address: addr, Message: msg})
	return nil
}

// Guess records a remaining-reloc-pass guess and returns an error if
// MaxGuesses is exceeded.
func (d *Diags) Guess(addr uint32, format string, args ...any) error {
	if err := d.Record(Heuristic, addr, format, args...); err != nil {
		return err
	}
	d.guesses++
	if d.opts.MaxGuesses > 0 && d.guesses > d.opts.MaxGuesses {
		return fmt.Errorf("diag: exceeded max guess count (%d)", d.opts.MaxGuesses)
	}
	return nil
}

// GuessCount returns the number of guesses recorded so far.
func (d *Diags) GuessCount() int { return d.guesses }

// Events returns all recorded diagnostics in recording order.
func (d *Diags) Events() []Diag { return d.events }
