// Package symbolmap loads a forward-iterable sequence of named addresses
// from a linker .MAP-style text file, implementing the external
// symbol-map contract consumed by the analyser (spec.md §6).
package symbolmap

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"ledisasm/internal/label"
)

// Symbol is one entry of the symbol map: an address, its label kind, and
// an optional name.
type Symbol struct {
	Address uint32
	Type    label.Type
	Name    string
}

// Map is an ordered-by-appearance collection of symbols, forward-iterable
// with All.
type Map struct {
	symbols []Symbol
}

// All calls fn for every symbol in the order they were loaded.
func (m *Map) All(fn func(Symbol)) {
	for _, s := range m.symbols {
		fn(s)
	}
}

// Len returns the number of loaded symbols.
func (m *Map) Len() int { return len(m.symbols) }

// Append adds other's symbols to m, used by the driver to combine several
// -map files into a single symbol map.
func (m *Map) Append(other *Map) {
	m.symbols = append(m.symbols, other.symbols...)
}

// LoadMapFile parses a minimal linker map file: one symbol per line,
//
//	<address> [<type>] <name>
//
// address is always hexadecimal (with or without "0x" prefix); type is one
// of FUNCTION, JUMP, DATA, VTABLE, UNKNOWN (defaulting to FUNCTION when omitted, the
// common case for an exported-symbol map); ";" begins a line comment;
// blank lines are ignored.
func LoadMapFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symbolmap: open %s: %w", path, err)
	}
	defer f.Close()

	m := &Map{}
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("symbolmap: %s:%d: expected \"<address> [<type>] <name>\"", path, lineNo)
		}

		addr, err := parseAddress(fields[0])
		if err != nil {
			return nil, fmt.Errorf("symbolmap: %s:%d: %w", path, lineNo, err)
		}

		typ := label.Function
		name := fields[1]
		if len(fields) >= 3 {
			if t, ok := parseType(fields[1]); ok {
				typ = t
				name = strings.Join(fields[2:], " ")
			} else {
				name = strings.Join(fields[1:], " ")
			}
		}

		m.symbols = append(m.symbols, Symbol{Address: addr, Type: typ, Name: name})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("symbolmap: reading %s: %w", path, err)
	}
	return m, nil
}

func parseAddress(s string) (uint32, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseType(s string) (label.Type, bool) {
	switch strings.ToUpper(s) {
	case "FUNCTION":
		return label.Function, true
	case "JUMP":
		return label.Jump, true
	case "DATA":
		return label.Data, true
	case "VTABLE":
		return label.Vtable, true
	case "UNKNOWN":
		return label.Unknown, true
	default:
		return label.Unknown, false
	}
}
