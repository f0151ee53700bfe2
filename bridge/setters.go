package bridge

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/LdDl/scanbridge/codec"
)

func (b *Bridge) trackedBarcode(objectID int, cycleID string) (codec.TrackedBarcode, error) {
	object, ok := b.registry.Lookup(objectID, cycleID)
	if !ok {
		return codec.TrackedBarcode{}, errors.Wrapf(ErrTrackedBarcodeNotFound, "object %d in cycle %q", objectID, cycleID)
	}
	return object, nil
}

// SetBrushForTrackedBarcode paints brush over the tracked barcode. An empty
// cycleID means the current cycle.
func (b *Bridge) SetBrushForTrackedBarcode(objectID int, cycleID string, brush json.RawMessage) error {
	object, err := b.trackedBarcode(objectID, cycleID)
	if err != nil {
		return err
	}
	decoded, err := codec.DecodeBrush(brush)
	if err != nil {
		return err
	}
	b.basic.SetBrush(object.Identifier, decoded)
	return nil
}

func (b *Bridge) ClearTrackedBarcodeBrushes() {
	b.basic.ClearBrushes()
}

// SetViewForTrackedBarcode attaches view to the tracked barcode. A JSON null
// removes the view.
func (b *Bridge) SetViewForTrackedBarcode(objectID int, cycleID string, view json.RawMessage) error {
	object, err := b.trackedBarcode(objectID, cycleID)
	if err != nil {
		return err
	}
	decoded, err := codec.DecodeView(view)
	if err != nil {
		return err
	}
	if decoded == nil {
		b.advanced.SetView(object.Identifier, nil, nil)
		return nil
	}
	b.advanced.SetView(object.Identifier, decoded, func() {
		b.DidTapViewForTrackedBarcode(object)
	})
	return nil
}

func (b *Bridge) SetAnchorForTrackedBarcode(objectID int, cycleID string, anchor json.RawMessage) error {
	object, err := b.trackedBarcode(objectID, cycleID)
	if err != nil {
		return err
	}
	decoded, err := codec.DecodeAnchor(anchor)
	if err != nil {
		return err
	}
	b.advanced.SetAnchor(object.Identifier, decoded)
	return nil
}

// SetOffsetForTrackedBarcode applies offset and remembers it as the fallback
// for offset decisions of this object. A malformed offset is rejected and a
// zero offset is remembered instead.
func (b *Bridge) SetOffsetForTrackedBarcode(objectID int, cycleID string, offset json.RawMessage) error {
	object, err := b.trackedBarcode(objectID, cycleID)
	if err != nil {
		return err
	}
	decoded, err := codec.DecodeOffset(offset)
	if err != nil {
		b.offsets.Remember(object.Identifier, codec.ZeroOffset)
		return err
	}
	b.advanced.SetOffset(object.Identifier, decoded)
	b.offsets.Remember(object.Identifier, decoded)
	return nil
}

func (b *Bridge) ClearTrackedBarcodeViews() {
	b.advanced.ClearViews()
}
