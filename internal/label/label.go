// Package label implements the address-ordered label map, with a lattice
// join ("improve") operation that merges a newly observed label with
// whatever is already recorded at the same address.
package label

import "github.com/google/btree"

// Type classifies what a labeled address denotes. Precedence for the
// improve operation is FUNCTION > VTABLE > JUMP > DATA > UNKNOWN.
type Type int

const (
	Unknown Type = iota
	Data
	Jump
	Vtable
	Function
)

func (t Type) String() string {
	switch t {
	case Function:
		return "FUNCTION"
	case Vtable:
		return "VTABLE"
	case Jump:
		return "JUMP"
	case Data:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// Label names and categorizes an address.
type Label struct {
	Address uint32
	Type    Type
	Name    string
}

func less(a, b Label) bool { return a.Address < b.Address }

// Map is the ordered label map.
type Map struct {
	t *btree.BTreeG[Label]
}

// New creates an empty label map.
func New() *Map {
	return &Map{t: btree.NewG(32, less)}
}

// Set installs l, or improves the label already stored at l.Address: the
// type never regresses in precedence and a non-empty name is never
// replaced by an empty one.
func (m *Map) Set(l Label) {
	existing, ok := m.t.Get(Label{Address: l.Address})
	if !ok {
		m.t.ReplaceOrInsert(l)
		return
	}
	m.t.ReplaceOrInsert(improve(existing, l))
}

// improve returns the lattice join of old and incoming at the same address.
func improve(old, incoming Label) Label {
	out := old
	if incoming.Type > out.Type {
		out.Type = incoming.Type
	}
	if out.Name == "" && incoming.Name != "" {
		out.Name = incoming.Name
	}
	return out
}

// Get returns the label at addr, if any.
func (m *Map) Get(addr uint32) (Label, bool) {
	return m.t.Get(Label{Address: addr})
}

// Next returns the label with the smallest address strictly greater than addr.
func (m *Map) Next(addr uint32) (Label, bool) {
	var found Label
	ok := false
	m.t.AscendGreaterOrEqual(Label{Address: addr}, func(it Label) bool {
		if it.Address == addr {
			return true
		}
		found = it
		ok = true
		return false
	})
	return found, ok
}

// Remove deletes the label at addr, if any.
func (m *Map) Remove(addr uint32) {
	m.t.Delete(Label{Address: addr})
}

// All calls fn for every label in address order. fn returning false stops
// iteration early.
func (m *Map) All(fn func(Label) bool) {
	m.t.Ascend(func(l Label) bool { return fn(l) })
}

// Len returns the number of labels in the map.
func (m *Map) Len() int { return m.t.Len() }
