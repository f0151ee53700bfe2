package overlay

import (
	"sync"

	"github.com/LdDl/scanbridge/codec"
)

type attachedView struct {
	view  *codec.View
	onTap func()
}

// Advanced attaches host-rendered views to tracked barcodes.
type Advanced struct {
	mu      sync.RWMutex
	views   map[int]attachedView
	anchors map[int]codec.Anchor
	offsets map[int]codec.PointWithUnit
}

func NewAdvanced() *Advanced {
	return &Advanced{
		views:   make(map[int]attachedView),
		anchors: make(map[int]codec.Anchor),
		offsets: make(map[int]codec.PointWithUnit),
	}
}

// SetView attaches view to id. A nil view explicitly removes any view and is
// remembered as such. onTap runs when the view is tapped.
func (a *Advanced) SetView(id int, view *codec.View, onTap func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if view != nil {
		copied := *view
		view = &copied
	}
	a.views[id] = attachedView{view: view, onTap: onTap}
}

// ViewFor returns the view of id. ok is false when no decision was made for id;
// (nil, true) means "explicitly no view".
func (a *Advanced) ViewFor(id int) (*codec.View, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	attached, ok := a.views[id]
	if !ok {
		return nil, false
	}
	if attached.view == nil {
		return nil, true
	}
	copied := *attached.view
	return &copied, true
}

// Tap simulates a tap on the view of id. Returns false when there is no visible view.
func (a *Advanced) Tap(id int) bool {
	a.mu.RLock()
	attached, ok := a.views[id]
	a.mu.RUnlock()
	if !ok || attached.view == nil {
		return false
	}
	if attached.onTap != nil {
		attached.onTap()
	}
	return true
}

func (a *Advanced) SetAnchor(id int, anchor codec.Anchor) {
	a.mu.Lock()
	a.anchors[id] = anchor
	a.mu.Unlock()
}

func (a *Advanced) AnchorFor(id int) (codec.Anchor, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	anchor, ok := a.anchors[id]
	return anchor, ok
}

func (a *Advanced) SetOffset(id int, offset codec.PointWithUnit) {
	a.mu.Lock()
	a.offsets[id] = offset
	a.mu.Unlock()
}

func (a *Advanced) OffsetFor(id int) (codec.PointWithUnit, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	offset, ok := a.offsets[id]
	return offset, ok
}

// ClearViews removes every view together with anchors and offsets
func (a *Advanced) ClearViews() {
	a.mu.Lock()
	a.views = make(map[int]attachedView)
	a.anchors = make(map[int]codec.Anchor)
	a.offsets = make(map[int]codec.PointWithUnit)
	a.mu.Unlock()
}

// Remove forgets everything attached to id
func (a *Advanced) Remove(id int) {
	a.mu.Lock()
	delete(a.views, id)
	delete(a.anchors, id)
	delete(a.offsets, id)
	a.mu.Unlock()
}
