// Package selection keeps the barcode selection session and its per-barcode counters.
package selection

import (
	"sync"

	"github.com/LdDl/scanbridge/codec"
)

// Session holds the outcome of the latest selection pass. Counters are keyed
// by codec.SelectionIdentifier, which survives across frames.
type Session struct {
	mu              sync.RWMutex
	frameSequenceID int
	selected        []codec.Barcode
	newlySelected   []codec.Barcode
	newlyUnselected []codec.Barcode
	counts          map[string]int
}

func NewSession() *Session {
	return &Session{
		counts: make(map[string]int),
	}
}

// Update records a selection pass. Every newly selected barcode increments its counter.
func (s *Session) Update(frameSequenceID int, newlySelected, newlyUnselected []codec.Barcode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameSequenceID = frameSequenceID

	unselected := make(map[string]struct{}, len(newlyUnselected))
	for _, b := range newlyUnselected {
		unselected[codec.SelectionIdentifier(b)] = struct{}{}
	}
	kept := make([]codec.Barcode, 0, len(s.selected)+len(newlySelected))
	for _, b := range s.selected {
		if _, gone := unselected[codec.SelectionIdentifier(b)]; !gone {
			kept = append(kept, b)
		}
	}
	for _, b := range newlySelected {
		id := codec.SelectionIdentifier(b)
		s.counts[id]++
		if !containsID(kept, id) {
			kept = append(kept, b)
		}
	}
	s.selected = kept
	s.newlySelected = append([]codec.Barcode(nil), newlySelected...)
	s.newlyUnselected = append([]codec.Barcode(nil), newlyUnselected...)
}

// Count returns how many times the barcode was selected. Barcodes that are
// neither selected nor just unselected count zero.
func (s *Session) Count(selectionIdentifier string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !containsID(s.selected, selectionIdentifier) && !containsID(s.newlyUnselected, selectionIdentifier) {
		return 0
	}
	return s.counts[selectionIdentifier]
}

// Selected returns the currently selected barcodes
func (s *Session) Selected() []codec.Barcode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]codec.Barcode(nil), s.selected...)
}

// Payload renders the session for a host event
func (s *Session) Payload() codec.Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return codec.Payload{
		"frameSequenceId":         s.frameSequenceID,
		"selectedBarcodes":        barcodesPayload(s.selected),
		"newlySelectedBarcodes":   barcodesPayload(s.newlySelected),
		"newlyUnselectedBarcodes": barcodesPayload(s.newlyUnselected),
	}
}

func (s *Session) Reset() {
	s.mu.Lock()
	s.selected = nil
	s.newlySelected = nil
	s.newlyUnselected = nil
	s.counts = make(map[string]int)
	s.mu.Unlock()
}

func containsID(barcodes []codec.Barcode, id string) bool {
	for _, b := range barcodes {
		if codec.SelectionIdentifier(b) == id {
			return true
		}
	}
	return false
}

func barcodesPayload(barcodes []codec.Barcode) []any {
	result := make([]any, 0, len(barcodes))
	for _, b := range barcodes {
		payload, err := codec.Encode(b)
		if err != nil {
			continue
		}
		result = append(result, map[string]any(payload))
	}
	return result
}
