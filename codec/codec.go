// Package codec converts bridge values to and from the flat payloads exchanged
// with the host runtime.
package codec

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

// ErrMalformedPayload is returned when a payload misses required fields or has wrong types
var ErrMalformedPayload = errors.New("malformed payload")

// Payload is a flat key/value map of primitives, slices and nested maps.
type Payload map[string]any

// Encode converts a struct value into a payload. Values that do not encode to
// a JSON object are rejected.
func Encode(v any) (Payload, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return nil, errors.Errorf("encode: %T is not an object", v)
	}
	payload := Payload{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	return payload, nil
}

// Decode fills out (a non-nil pointer) from p. Known codec values are
// validated against their schema first. out is left untouched on failure.
func Decode(p Payload, out any) error {
	if p == nil {
		return errors.Wrap(ErrMalformedPayload, "empty payload")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return errors.Wrapf(ErrMalformedPayload, "payload is not serializable: %v", err)
	}
	return DecodeJSON(raw, out)
}

// DecodeJSON is Decode for raw JSON text.
func DecodeJSON(raw []byte, out any) error {
	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return errors.Errorf("decode: target must be a non-nil pointer, got %T", out)
	}
	if name := schemaFor(out); name != "" {
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return errors.Wrapf(ErrMalformedPayload, "invalid json: %v", err)
		}
		if err := validate(name, generic); err != nil {
			return err
		}
	}
	tmp := reflect.New(target.Elem().Type())
	if err := json.Unmarshal(raw, tmp.Interface()); err != nil {
		return errors.Wrapf(ErrMalformedPayload, "%T: %v", out, err)
	}
	target.Elem().Set(tmp.Elem())
	return nil
}

func schemaFor(out any) string {
	switch out.(type) {
	case *Point:
		return "point.json"
	case *Quadrilateral:
		return "quadrilateral.json"
	case *Barcode:
		return "barcode.json"
	case *LocalizedOnlyBarcode:
		return "localized-only-barcode.json"
	case *TrackedBarcode:
		return "tracked-barcode.json"
	case *Brush:
		return "brush.json"
	case *PointWithUnit:
		return "point-with-unit.json"
	case *View:
		return "view.json"
	}
	return ""
}

// DecodeTrackedBarcode validates and decodes a tracked barcode payload
func DecodeTrackedBarcode(p Payload) (TrackedBarcode, error) {
	var tracked TrackedBarcode
	if err := Decode(p, &tracked); err != nil {
		return TrackedBarcode{}, err
	}
	return tracked, nil
}

// DecodeBool decodes a mode-enablement answer.
func DecodeBool(raw json.RawMessage) (bool, error) {
	var enabled bool
	if err := strictUnmarshal(raw, &enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

// DecodeBrush decodes a brush answer. Both colors must be well formed.
func DecodeBrush(raw json.RawMessage) (Brush, error) {
	var brush Brush
	if err := DecodeJSON(raw, &brush); err != nil {
		return Brush{}, err
	}
	if !brush.Valid() {
		return Brush{}, errors.Wrapf(ErrMalformedPayload, "brush: invalid colors %q/%q", brush.FillColor, brush.StrokeColor)
	}
	return brush, nil
}

// DecodeView decodes a view answer. A JSON null yields (nil, nil): the host
// explicitly asked for no view.
func DecodeView(raw json.RawMessage) (*View, error) {
	if isNull(raw) {
		return nil, nil
	}
	var view View
	if err := DecodeJSON(raw, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func DecodeAnchor(raw json.RawMessage) (Anchor, error) {
	var anchor Anchor
	if err := strictUnmarshal(raw, &anchor); err != nil {
		return "", err
	}
	if !anchor.Valid() {
		return "", errors.Wrapf(ErrMalformedPayload, "anchor: unknown value %q", anchor)
	}
	return anchor, nil
}

func DecodeOffset(raw json.RawMessage) (PointWithUnit, error) {
	var offset PointWithUnit
	if err := DecodeJSON(raw, &offset); err != nil {
		return PointWithUnit{}, err
	}
	return offset, nil
}

// strictUnmarshal rejects null and empty input, which encoding/json accepts silently
func strictUnmarshal(raw json.RawMessage, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 || isNull(raw) {
		return errors.Wrapf(ErrMalformedPayload, "%T: missing value", out)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(ErrMalformedPayload, "%T: %v", out, err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
