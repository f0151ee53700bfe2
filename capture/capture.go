package capture

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/LdDl/scanbridge/bridge"
	"github.com/LdDl/scanbridge/codec"
	"github.com/LdDl/scanbridge/events"
)

// Capture reports newly recognized barcodes, one scan at a time.
//
// DuplicateFilter suppresses a barcode recognized again within the window.
// Zero reports every recognition, a negative value reports a barcode once per session.
type Capture struct {
	Mode            *Mode
	DuplicateFilter time.Duration

	bridge   *bridge.Bridge
	logger   *log.Logger
	now      func() time.Time
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func NewCapture(b *bridge.Bridge, mode *Mode, duplicateFilter time.Duration, logger *log.Logger) *Capture {
	if logger == nil {
		logger = log.Default()
	}
	return &Capture{
		Mode:            mode,
		DuplicateFilter: duplicateFilter,
		bridge:          b,
		logger:          logger,
		now:             time.Now,
		lastSeen:        make(map[string]time.Time),
	}
}

// Scan reports the frame's newly recognized barcodes to the capture listener
func (c *Capture) Scan(ctx context.Context, frame Frame) error {
	if !c.Mode.Enabled() {
		return nil
	}
	newly := c.filterDuplicates(frame.Recognized)
	if len(newly) > 0 {
		payload := codec.Payload{
			"frameSequenceId":         frame.SequenceID,
			"newlyRecognizedBarcodes": encodeBarcodes(newly),
			"newlyLocalizedBarcodes":  localizedPayload(frame.Localized),
		}
		if _, err := c.bridge.ModeStatus(ctx, events.DidScan, c.Mode, payload); err != nil {
			return err
		}
	}
	if !c.Mode.Enabled() {
		return nil
	}
	payload := codec.Payload{
		"frameSequenceId":         frame.SequenceID,
		"newlyRecognizedBarcodes": encodeBarcodes(newly),
	}
	_, err := c.bridge.ModeStatus(ctx, events.CaptureDidUpdateSession, c.Mode, payload)
	return err
}

// Reset forgets every barcode seen in the current capture session
func (c *Capture) Reset() {
	c.mu.Lock()
	c.lastSeen = make(map[string]time.Time)
	c.mu.Unlock()
}

func (c *Capture) filterDuplicates(recognized []codec.Barcode) []codec.Barcode {
	if c.DuplicateFilter == 0 {
		return recognized
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]codec.Barcode, 0, len(recognized))
	for _, b := range recognized {
		id := codec.SelectionIdentifier(b)
		seen, ok := c.lastSeen[id]
		if ok && (c.DuplicateFilter < 0 || now.Sub(seen) < c.DuplicateFilter) {
			continue
		}
		c.lastSeen[id] = now
		result = append(result, b)
	}
	return result
}

func localizedPayload(localized []codec.LocalizedOnlyBarcode) []any {
	result := make([]any, 0, len(localized))
	for _, l := range localized {
		if payload, err := codec.Encode(l); err == nil {
			result = append(result, map[string]any(payload))
		}
	}
	return result
}
