package bridge

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/LdDl/scanbridge/codec"
	"github.com/LdDl/scanbridge/correlation"
	"github.com/LdDl/scanbridge/events"
)

// Delta describes how the tracked set changed since the previous cycle
type Delta struct {
	Added   []int
	Updated []int
	Removed []int
}

// ModeStatus publishes a mode listener event and lets the host decide whether
// the mode stays enabled. payload is the session batch of the event.
func (b *Bridge) ModeStatus(ctx context.Context, event string, mode Mode, payload codec.Payload) (Phase, error) {
	if mode == nil {
		return PhaseCreated, ErrNoMode
	}
	kind, ok := kindOf(event)
	if !ok || kind != correlation.KindModeEnablement {
		return PhaseCreated, errors.Wrapf(ErrUnknownEvent, "%q is not a mode event", event)
	}
	body := codec.Payload{
		"session":   map[string]any(payload),
		"enabled":   mode.Enabled(),
		"sessionId": b.SessionID().String(),
	}
	key := correlation.Key{Kind: kind, Event: event}
	phase := b.decide(ctx, key, events.Event{Name: event, Payload: body}, func(got answer) {
		applyMode(mode, got)
	})
	return phase, nil
}

// TrackingUpdate begins a new cycle with objects and publishes the tracking
// session to the host as a mode decision.
func (b *Bridge) TrackingUpdate(ctx context.Context, mode Mode, cycleID string, objects []codec.TrackedBarcode, delta Delta) (Phase, error) {
	b.registry.BeginCycle(cycleID, objects)
	for _, id := range delta.Removed {
		b.basic.Remove(id)
		b.advanced.Remove(id)
	}

	byID := make(map[int]codec.TrackedBarcode, len(objects))
	tracked := make(map[string]any, len(objects))
	for _, object := range objects {
		byID[object.Identifier] = object
		encoded, err := codec.Encode(object)
		if err != nil {
			b.logger.Printf("bridge: can't encode tracked barcode object=%d: %v", object.Identifier, err)
			continue
		}
		tracked[strconv.Itoa(object.Identifier)] = map[string]any(encoded)
	}
	added := make([]any, 0, len(delta.Added))
	for _, id := range delta.Added {
		if object, ok := byID[id]; ok {
			if encoded, err := codec.Encode(object); err == nil {
				added = append(added, map[string]any(encoded))
			}
		}
	}
	updated := make([]any, 0, len(delta.Updated))
	for _, id := range delta.Updated {
		if object, ok := byID[id]; ok {
			if encoded, err := codec.Encode(object); err == nil {
				updated = append(updated, map[string]any(encoded))
			}
		}
	}
	removed := make([]any, 0, len(delta.Removed))
	for _, id := range delta.Removed {
		removed = append(removed, strconv.Itoa(id))
	}

	payload := codec.Payload{
		"frameSequenceId":        cycleID,
		"addedTrackedBarcodes":   added,
		"updatedTrackedBarcodes": updated,
		"removedTrackedBarcodes": removed,
		"trackedBarcodes":        tracked,
	}
	return b.ModeStatus(ctx, events.TrackingDidUpdateSession, mode, payload)
}

func (b *Bridge) objectKey(kind correlation.Kind, event string, object codec.TrackedBarcode) (correlation.Key, events.Event) {
	cycleID, _ := b.registry.Cycle()
	key := correlation.Key{Kind: kind, Event: event, ObjectID: object.Identifier, CycleID: cycleID}
	payload := codec.Payload{
		"trackedBarcodeID":       object.Identifier,
		"sessionFrameSequenceID": cycleID,
		"sessionId":              b.SessionID().String(),
	}
	if encoded, err := codec.Encode(object); err == nil {
		payload["trackedBarcode"] = map[string]any(encoded)
	}
	return key, events.Event{Name: event, Payload: payload}
}

// BrushForTrackedBarcode asks the host for the brush of object. The object is
// always painted afterwards, with the default brush if the host had no answer.
func (b *Bridge) BrushForTrackedBarcode(ctx context.Context, object codec.TrackedBarcode) Phase {
	key, event := b.objectKey(correlation.KindBrushForObject, events.BrushForTrackedBarcode, object)
	return b.decide(ctx, key, event, func(got answer) {
		applyBrush(b.basic, object.Identifier, got)
	})
}

// ViewForTrackedBarcode asks the host for the view attached to object
func (b *Bridge) ViewForTrackedBarcode(ctx context.Context, object codec.TrackedBarcode) Phase {
	key, event := b.objectKey(correlation.KindViewForObject, events.ViewForTrackedBarcode, object)
	return b.decide(ctx, key, event, func(got answer) {
		applyView(b.advanced, object.Identifier, got, func() {
			b.DidTapViewForTrackedBarcode(object)
		})
	})
}

func (b *Bridge) AnchorForTrackedBarcode(ctx context.Context, object codec.TrackedBarcode) Phase {
	key, event := b.objectKey(correlation.KindAnchorForObject, events.AnchorForTrackedBarcode, object)
	return b.decide(ctx, key, event, func(got answer) {
		applyAnchor(b.advanced, object.Identifier, got)
	})
}

func (b *Bridge) OffsetForTrackedBarcode(ctx context.Context, object codec.TrackedBarcode) Phase {
	key, event := b.objectKey(correlation.KindOffsetForObject, events.OffsetForTrackedBarcode, object)
	return b.decide(ctx, key, event, func(got answer) {
		applyOffset(b.advanced, b.offsets, object.Identifier, got)
	})
}

// DidTapTrackedBarcode notifies the basic overlay listener; no answer is expected
func (b *Bridge) DidTapTrackedBarcode(object codec.TrackedBarcode) {
	b.notifyTap(events.DidTapTrackedBarcode, object)
}

// DidTapViewForTrackedBarcode notifies the advanced overlay listener; no answer is expected
func (b *Bridge) DidTapViewForTrackedBarcode(object codec.TrackedBarcode) {
	b.notifyTap(events.DidTapViewForTrackedBarcode, object)
}

func (b *Bridge) notifyTap(name string, object codec.TrackedBarcode) {
	if !b.listeners.Subscribed(name) {
		return
	}
	_, event := b.objectKey(0, name, object)
	b.dispatcher.Dispatch(event)
}
