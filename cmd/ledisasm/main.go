// Command ledisasm is a thin driver: it builds the image, detects known
// files, loads optional symbol maps, runs the analyser, and writes a
// listing. Its own logic is deliberately small — the analyser in
// internal/analyser is where the work happens.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"ledisasm/internal/analyser"
	"ledisasm/internal/diag"
	"ledisasm/internal/image"
	"ledisasm/internal/lefile"
	"ledisasm/internal/listing"
	"ledisasm/internal/symbolmap"
)

type stringList []string

func (s *stringList) String() string { return fmt.Sprint(*s) }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ledisasm:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("ledisasm", flag.ExitOnError)
	var mapFiles stringList
	fs.Var(&mapFiles, "map", "path to a symbol .MAP file (repeatable)")
	out := fs.String("o", "", "listing output path (default: stdout)")
	strict := fs.Bool("strict", false, "abort on the first soft-analysis or heuristic event")
	maxGuesses := fs.Int("max-guesses", 0, "abort if the remaining-reloc pass exceeds this many guesses (0 = unlimited)")
	jsonDiag := fs.String("json-diag", "", "also write the diagnostic stream as JSONL to this path")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: ledisasm [flags] <input.exe>")
	}
	inputPath := fs.Arg(0)

	le, err := lefile.Open(inputPath)
	if err != nil {
		return fmt.Errorf("fatal-build: %w", err)
	}

	img, err := image.Build(le)
	if err != nil {
		return fmt.Errorf("fatal-build: %w", err)
	}

	var symbols *symbolmap.Map
	for _, path := range mapFiles {
		m, err := symbolmap.LoadMapFile(path)
		if err != nil {
			return fmt.Errorf("fatal-build: %w", err)
		}
		if symbols == nil {
			symbols = m
		} else {
			symbols.Append(m)
		}
	}

	mode := diag.ModeBestEffort
	if *strict {
		mode = diag.ModeStrict
	}
	diags := diag.New(diag.Options{Mode: mode, MaxGuesses: *maxGuesses})

	an := analyser.New(img, le, symbols, diags)
	if err := an.Run(); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "regions: %d, labels: %d, guesses: %d\n",
		an.Regions.Len(), an.Labels.Len(), diags.GuessCount())
	for _, d := range diags.Events() {
		fmt.Fprintln(os.Stderr, d)
	}

	if *jsonDiag != "" {
		if err := writeDiagJSONL(*jsonDiag, diags.Events()); err != nil {
			return fmt.Errorf("fatal-build: %w", err)
		}
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("fatal-build: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := listing.Write(w, img, an.Regions, an.Labels); err != nil {
		return fmt.Errorf("fatal-build: %w", err)
	}

	return nil
}

func writeDiagJSONL(path string, events []diag.Diag) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, d := range events {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("encode diagnostic: %w", err)
		}
	}
	return nil
}
