package controller

import (
	"github.com/arduino-libraries/opta-blueprint/expansion"
)

// MaxExpansions is N, the largest number of daisy-chained peripherals a
// controller tracks.
const MaxExpansions = 5

// FirstFinalAddress is the first of the N final (post-arbitration)
// addresses; final addresses occupy [FirstFinalAddress,
// FirstFinalAddress+MaxExpansions).
const FirstFinalAddress uint8 = 0x0B

// FirstTempAddress is the first of the temporary addresses used during
// phase 1 of discovery.
const FirstTempAddress uint8 = 0x10

// Slot is a controller-side record for one physical expansion position,
// per §3: "A controller-side record for each of at most N peripherals."
type Slot struct {
	Index          int
	Address        uint8
	Type           expansion.TypeTag
	Product        string
	Version        expansion.FirmwareVersion
	Shadow         *Shadow
	typedHandle    interface{}
}

// Populated reports whether this slot currently represents a physically
// discovered peripheral.
func (s *Slot) Populated() bool {
	return s != nil && s.Address != 0
}

// Handle returns the slot's lazily materialized typed handle (as set by
// SetHandle), or nil if none has been attached yet.
func (s *Slot) Handle() interface{} {
	return s.typedHandle
}

// SetHandle attaches a typed handle (e.g. an AnalogHandle) to this slot. The
// controller calls this once per slot after reconciling custom types
// during discovery.
func (s *Slot) SetHandle(h interface{}) {
	s.typedHandle = h
}

// Registry is the process-wide owned collection of slots, replacing the
// original firmware's module-scoped mutable arrays (see the design
// notes): a single value owned by the controller, never shared globally.
type Registry struct {
	slots [MaxExpansions]*Slot
}

// NewRegistry returns an empty registry with MaxExpansions uninitialized
// slots.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.slots {
		r.slots[i] = &Slot{Index: i, Shadow: NewShadow()}
	}
	return r
}

// Slot returns the slot at index, or nil if index is out of range.
func (r *Registry) Slot(index int) *Slot {
	if index < 0 || index >= MaxExpansions {
		return nil
	}
	return r.slots[index]
}

// Slots returns every slot, in physical order (index 0 closest to the
// controller).
func (r *Registry) Slots() []*Slot {
	out := make([]*Slot, MaxExpansions)
	copy(out, r.slots[:])
	return out
}

// Reset clears every slot back to its initial, unpopulated state, as
// happens when a new discovery pass produces a different population
// (§3's slot lifecycle).
func (r *Registry) Reset() {
	for i := range r.slots {
		r.slots[i] = &Slot{Index: i, Shadow: NewShadow()}
	}
}

// SlotForAddress returns the slot currently bound to addr, or nil.
func (r *Registry) SlotForAddress(addr uint8) *Slot {
	for _, s := range r.slots {
		if s.Populated() && s.Address == addr {
			return s
		}
	}
	return nil
}
