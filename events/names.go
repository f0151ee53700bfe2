// Package events names the host-facing events and delivers them without
// blocking the native side.
package events

import "strings"

// Listener names as seen by the host
const (
	CaptureListener         = "BarcodeCaptureListener"
	TrackingListener        = "BarcodeTrackingListener"
	SelectionListener       = "BarcodeSelectionListener"
	BasicOverlayListener    = "BarcodeTrackingBasicOverlayListener"
	AdvancedOverlayListener = "BarcodeTrackingAdvancedOverlayListener"
)

const (
	DidScan                     = CaptureListener + ".didScan"
	CaptureDidUpdateSession     = CaptureListener + ".didUpdateSession"
	TrackingDidUpdateSession    = TrackingListener + ".didUpdateSession"
	DidUpdateSelection          = SelectionListener + ".didUpdateSelection"
	SelectionDidUpdateSession   = SelectionListener + ".didUpdateSession"
	BrushForTrackedBarcode      = BasicOverlayListener + ".brushForTrackedBarcode"
	DidTapTrackedBarcode        = BasicOverlayListener + ".didTapTrackedBarcode"
	ViewForTrackedBarcode       = AdvancedOverlayListener + ".viewForTrackedBarcode"
	AnchorForTrackedBarcode     = AdvancedOverlayListener + ".anchorForTrackedBarcode"
	OffsetForTrackedBarcode     = AdvancedOverlayListener + ".offsetForTrackedBarcode"
	DidTapViewForTrackedBarcode = AdvancedOverlayListener + ".didTapViewForTrackedBarcode"
)

// Names lists every event in a stable order
var Names = []string{
	DidScan, CaptureDidUpdateSession,
	TrackingDidUpdateSession,
	DidUpdateSelection, SelectionDidUpdateSession,
	BrushForTrackedBarcode, DidTapTrackedBarcode,
	ViewForTrackedBarcode, AnchorForTrackedBarcode, OffsetForTrackedBarcode, DidTapViewForTrackedBarcode,
}

// ListenerNames lists every listener name
var ListenerNames = []string{
	CaptureListener, TrackingListener, SelectionListener, BasicOverlayListener, AdvancedOverlayListener,
}

// Split separates "Listener.method" into its parts. ok is false for names
// without a listener prefix.
func Split(name string) (listener, method string, ok bool) {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

// Known reports whether name is one of Names
func Known(name string) bool {
	for _, known := range Names {
		if name == known {
			return true
		}
	}
	return false
}

// KnownListener reports whether name is one of ListenerNames
func KnownListener(name string) bool {
	for _, known := range ListenerNames {
		if name == known {
			return true
		}
	}
	return false
}

// Blocking reports whether the native side waits for an answer to the event.
// Taps are notifications only.
func Blocking(name string) bool {
	return Known(name) && name != DidTapTrackedBarcode && name != DidTapViewForTrackedBarcode
}
