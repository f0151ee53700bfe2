package bridge

import (
	"sync"

	"github.com/LdDl/scanbridge/codec"
	"github.com/LdDl/scanbridge/overlay"
)

// OffsetMemory remembers explicitly set offsets per tracked barcode. Entries
// are only used as a fallback and are consumed by it.
type OffsetMemory struct {
	mu      sync.Mutex
	offsets map[int]codec.PointWithUnit
}

func NewOffsetMemory() *OffsetMemory {
	return &OffsetMemory{
		offsets: make(map[int]codec.PointWithUnit),
	}
}

func (m *OffsetMemory) Remember(id int, offset codec.PointWithUnit) {
	m.mu.Lock()
	m.offsets[id] = offset
	m.mu.Unlock()
}

// Take returns and removes the offset remembered for id
func (m *OffsetMemory) Take(id int) (codec.PointWithUnit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	offset, ok := m.offsets[id]
	if ok {
		delete(m.offsets, id)
	}
	return offset, ok
}

// Peek returns the offset remembered for id without consuming it
func (m *OffsetMemory) Peek(id int) (codec.PointWithUnit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	offset, ok := m.offsets[id]
	return offset, ok
}

func (m *OffsetMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.offsets)
}

func (m *OffsetMemory) Clear() {
	m.mu.Lock()
	m.offsets = make(map[int]codec.PointWithUnit)
	m.mu.Unlock()
}

// applyMode flips enablement only when the answer is a boolean that differs
func applyMode(mode Mode, got answer) {
	if !got.present {
		return
	}
	enabled, err := codec.DecodeBool(got.result)
	if err != nil {
		return
	}
	if enabled != mode.Enabled() {
		mode.SetEnabled(enabled)
	}
}

// applyBrush always paints something: the answered brush or the current default
func applyBrush(basic *overlay.Basic, id int, got answer) {
	if got.present {
		if brush, err := codec.DecodeBrush(got.result); err == nil {
			basic.SetBrush(id, brush)
			return
		}
	}
	basic.SetBrush(id, basic.Brush())
}

// applyView attaches the answered view. A null answer removes the view; an
// absent or malformed one leaves it alone.
func applyView(advanced *overlay.Advanced, id int, got answer, onTap func()) {
	if !got.present {
		return
	}
	view, err := codec.DecodeView(got.result)
	if err != nil {
		return
	}
	if view == nil {
		advanced.SetView(id, nil, nil)
		return
	}
	advanced.SetView(id, view, onTap)
}

func applyAnchor(advanced *overlay.Advanced, id int, got answer) {
	if !got.present {
		return
	}
	anchor, err := codec.DecodeAnchor(got.result)
	if err != nil {
		return
	}
	advanced.SetAnchor(id, anchor)
}

// applyOffset applies the answered offset, or else the remembered one. Either
// way the remembered entry for id is gone afterwards.
func applyOffset(advanced *overlay.Advanced, memory *OffsetMemory, id int, got answer) {
	remembered, hasRemembered := memory.Take(id)
	if got.present {
		if offset, err := codec.DecodeOffset(got.result); err == nil {
			advanced.SetOffset(id, offset)
			return
		}
	}
	if hasRemembered {
		advanced.SetOffset(id, remembered)
	}
}
