// Package overlay holds the native overlay state that host decisions mutate.
package overlay

import (
	"sync"

	"github.com/LdDl/scanbridge/codec"
)

// DefaultBrush is the highlight used when nothing else was configured
var DefaultBrush = codec.Brush{
	FillColor:   "#2EC1CE4D",
	StrokeColor: "#2EC1CEFF",
	StrokeWidth: 1,
}

// Basic paints a brush over every tracked barcode.
type Basic struct {
	mu           sync.RWMutex
	defaultBrush codec.Brush
	brushes      map[int]codec.Brush
}

func NewBasic(defaultBrush codec.Brush) *Basic {
	return &Basic{
		defaultBrush: defaultBrush,
		brushes:      make(map[int]codec.Brush),
	}
}

// Brush returns the current default brush
func (b *Basic) Brush() codec.Brush {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.defaultBrush
}

func (b *Basic) SetDefaultBrush(brush codec.Brush) {
	b.mu.Lock()
	b.defaultBrush = brush
	b.mu.Unlock()
}

func (b *Basic) SetBrush(id int, brush codec.Brush) {
	b.mu.Lock()
	b.brushes[id] = brush
	b.mu.Unlock()
}

// BrushFor returns the brush painted over id, if any
func (b *Basic) BrushFor(id int) (codec.Brush, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	brush, ok := b.brushes[id]
	return brush, ok
}

func (b *Basic) ClearBrushes() {
	b.mu.Lock()
	b.brushes = make(map[int]codec.Brush)
	b.mu.Unlock()
}

// Remove forgets id, called when the tracker loses a barcode
func (b *Basic) Remove(id int) {
	b.mu.Lock()
	delete(b.brushes, id)
	b.mu.Unlock()
}
