// Package capture turns detection frames into host decisions: barcode
// capture, barcode tracking and barcode selection.
package capture

import (
	"bytes"
	"encoding/json"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/LdDl/scanbridge/codec"
)

// Mode is an enablement flag shared between the pipeline and host decisions.
type Mode struct {
	name    string
	enabled atomic.Bool
}

func NewMode(name string, enabled bool) *Mode {
	mode := &Mode{name: name}
	mode.enabled.Store(enabled)
	return mode
}

func (m *Mode) Name() string {
	return m.name
}

func (m *Mode) Enabled() bool {
	return m.enabled.Load()
}

func (m *Mode) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// Frame is the output of the detection engine for one camera frame.
type Frame struct {
	SequenceID int                          `json:"sequenceId"`
	DeltaTime  float64                      `json:"deltaTime"`
	Recognized []codec.Barcode              `json:"recognized"`
	Localized  []codec.LocalizedOnlyBarcode `json:"localized"`
	// Selected and Unselected are only reported in selection mode
	Selected   []codec.Barcode `json:"selected,omitempty"`
	Unselected []codec.Barcode `json:"unselected,omitempty"`
}

type frameWire struct {
	SequenceID *int              `json:"sequenceId"`
	DeltaTime  float64           `json:"deltaTime"`
	Recognized []json.RawMessage `json:"recognized"`
	Localized  []json.RawMessage `json:"localized"`
	Selected   []json.RawMessage `json:"selected"`
	Unselected []json.RawMessage `json:"unselected"`
}

// DecodeFrame parses one JSON line. Every barcode is validated on its own.
func DecodeFrame(line []byte) (Frame, error) {
	var wire frameWire
	if err := json.Unmarshal(bytes.TrimSpace(line), &wire); err != nil {
		return Frame{}, errors.Wrapf(codec.ErrMalformedPayload, "frame: %v", err)
	}
	if wire.SequenceID == nil {
		return Frame{}, errors.Wrap(codec.ErrMalformedPayload, "frame: missing sequenceId")
	}
	frame := Frame{SequenceID: *wire.SequenceID, DeltaTime: wire.DeltaTime}
	var err error
	if frame.Recognized, err = decodeBarcodes(wire.Recognized); err != nil {
		return Frame{}, errors.Wrap(err, "frame: recognized")
	}
	if frame.Selected, err = decodeBarcodes(wire.Selected); err != nil {
		return Frame{}, errors.Wrap(err, "frame: selected")
	}
	if frame.Unselected, err = decodeBarcodes(wire.Unselected); err != nil {
		return Frame{}, errors.Wrap(err, "frame: unselected")
	}
	frame.Localized = make([]codec.LocalizedOnlyBarcode, 0, len(wire.Localized))
	for i, raw := range wire.Localized {
		var localized codec.LocalizedOnlyBarcode
		if err := codec.DecodeJSON(raw, &localized); err != nil {
			return Frame{}, errors.Wrapf(err, "frame: localized %d", i)
		}
		frame.Localized = append(frame.Localized, localized)
	}
	return frame, nil
}

func decodeBarcodes(raws []json.RawMessage) ([]codec.Barcode, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	barcodes := make([]codec.Barcode, 0, len(raws))
	for i, raw := range raws {
		var barcode codec.Barcode
		if err := codec.DecodeJSON(raw, &barcode); err != nil {
			return nil, errors.Wrapf(err, "barcode %d", i)
		}
		if !barcode.Symbology.Valid() {
			return nil, errors.Wrapf(codec.ErrMalformedPayload, "barcode %d: unknown symbology %q", i, barcode.Symbology)
		}
		barcodes = append(barcodes, barcode)
	}
	return barcodes, nil
}

func encodeBarcodes(barcodes []codec.Barcode) []any {
	result := make([]any, 0, len(barcodes))
	for _, b := range barcodes {
		if payload, err := codec.Encode(b); err == nil {
			result = append(result, map[string]any(payload))
		}
	}
	return result
}
