// Package region implements the address-ordered map of non-overlapping,
// contiguous typed ranges that tile each object's address space.
package region

import (
	"fmt"

	"github.com/google/btree"
)

// Type classifies a region's contents.
type Type int

const (
	Unknown Type = iota
	Code
	Data
	Vtable
)

func (t Type) String() string {
	switch t {
	case Code:
		return "CODE"
	case Data:
		return "DATA"
	case Vtable:
		return "VTABLE"
	default:
		return "UNKNOWN"
	}
}

// Region is a contiguous, typed address range [Address, Address+Size).
type Region struct {
	Address uint32
	Size    uint32
	Type    Type
}

// End returns the exclusive end address of the region.
func (r Region) End() uint32 { return r.Address + r.Size }

func less(a, b Region) bool { return a.Address < b.Address }

// Map is the ordered region map. It is backed by a B-tree keyed on
// Address, giving the O(log n) lookup/predecessor/successor spec.md §9
// requires of an address-ordered map.
type Map struct {
	t *btree.BTreeG[Region]
}

// New creates an empty region map.
func New() *Map {
	return &Map{t: btree.NewG(32, less)}
}

// Seed installs a single initial region covering [base, base+size), per
// spec.md §4.5 seeding step 1.
func (m *Map) Seed(base, size uint32, t Type) {
	m.t.ReplaceOrInsert(Region{Address: base, Size: size, Type: t})
}

// GetAt returns the region whose range contains addr.
func (m *Map) GetAt(addr uint32) (Region, bool) {
	var found Region
	ok := false
	m.t.DescendLessOrEqual(Region{Address: addr}, func(it Region) bool {
		found = it
		ok = true
		return false
	})
	if !ok || addr >= found.End() {
		return Region{}, false
	}
	return found, true
}

// prevOf returns the region with the largest address strictly less than addr.
func (m *Map) prevOf(addr uint32) (Region, bool) {
	var found Region
	ok := false
	m.t.DescendLessOrEqual(Region{Address: addr}, func(it Region) bool {
		if it.Address == addr {
			return true
		}
		found = it
		ok = true
		return false
	})
	return found, ok
}

// nextOf returns the region with the smallest address strictly greater
// than addr.
func (m *Map) nextOf(addr uint32) (Region, bool) {
	var found Region
	ok := false
	m.t.AscendGreaterOrEqual(Region{Address: addr}, func(it Region) bool {
		if it.Address == addr {
			return true
		}
		found = it
		ok = true
		return false
	})
	return found, ok
}

// Prev returns the strict predecessor neighbor of r in key order.
func (m *Map) Prev(r Region) (Region, bool) { return m.prevOf(r.Address) }

// Next returns the strict successor neighbor of r in key order.
func (m *Map) Next(r Region) (Region, bool) { return m.nextOf(r.Address) }

// Insert places child into the map. child must lie within the range of
// exactly one existing region (its parent), which is split into up to
// three pieces as described in spec.md §4.3. After insertion, adjacent
// regions of equal type are merged.
func (m *Map) Insert(child Region) error {
	if child.Size == 0 {
		return fmt.Errorf("region: cannot insert a zero-sized region at 0x%x", child.Address)
	}
	parent, ok := m.GetAt(child.Address)
	if !ok {
		return fmt.Errorf("region: no region contains 0x%x", child.Address)
	}
	if child.Address < parent.Address || child.End() > parent.End() {
		return fmt.Errorf("region: child [0x%x,0x%x) is not contained in parent [0x%x,0x%x)",
			child.Address, child.End(), parent.Address, parent.End())
	}

	// Copy the fields we need from parent before any mutation, since the
	// btree item we read is a value copy that becomes stale once we start
	// replacing entries at overlapping keys.
	parentAddr, parentEnd, parentType := parent.Address, parent.End(), parent.Type

	if child.End() < parentEnd {
		trailing := Region{Address: child.End(), Size: parentEnd - child.End(), Type: parentType}
		m.t.ReplaceOrInsert(trailing)
	}

	if child.Address > parentAddr {
		shrunk := Region{Address: parentAddr, Size: child.Address - parentAddr, Type: parentType}
		m.t.ReplaceOrInsert(shrunk)
		m.t.ReplaceOrInsert(child)
	} else {
		m.t.ReplaceOrInsert(child)
	}

	m.Merge(child.Address)
	return nil
}

// Merge fuses the region at addr with its predecessor and/or successor if
// they share a type and are contiguous. At most one merge is performed on
// each side.
func (m *Map) Merge(addr uint32) {
	cur, ok := m.GetAt(addr)
	if !ok {
		return
	}

	if prev, ok := m.prevOf(cur.Address); ok && prev.Type == cur.Type && prev.End() == cur.Address {
		merged := Region{Address: prev.Address, Size: cur.End() - prev.Address, Type: cur.Type}
		m.t.Delete(Region{Address: cur.Address})
		m.t.ReplaceOrInsert(merged)
		cur = merged
	}

	if next, ok := m.nextOf(cur.Address); ok && next.Type == cur.Type && cur.End() == next.Address {
		merged := Region{Address: cur.Address, Size: next.End() - cur.Address, Type: cur.Type}
		m.t.Delete(Region{Address: next.Address})
		m.t.ReplaceOrInsert(merged)
	}
}

// All calls fn for every region in address order. fn returning false stops
// iteration early.
func (m *Map) All(fn func(Region) bool) {
	m.t.Ascend(func(r Region) bool { return fn(r) })
}

// Len returns the number of regions in the map.
func (m *Map) Len() int { return m.t.Len() }
