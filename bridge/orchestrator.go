package bridge

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/LdDl/scanbridge/correlation"
	"github.com/LdDl/scanbridge/events"
)

// Phase is the state of one decision occurrence.
type Phase uint8

const (
	PhaseCreated Phase = iota
	PhaseAwaitingAnswer
	PhaseResolved
	PhaseTimedOut
	PhaseApplied
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseResolved:
		return "resolved"
	case PhaseTimedOut:
		return "timed_out"
	case PhaseApplied:
		return "applied"
	}
	return "unknown"
}

// answer is what a finish call deposits. present is false when the host sent
// no result at all, or never answered.
type answer struct {
	result  json.RawMessage
	present bool
}

type occurrence struct {
	key     correlation.Key
	phase   Phase
	onPhase func(correlation.Key, Phase)
}

func (o *occurrence) enter(phase Phase) {
	o.phase = phase
	if o.onPhase != nil {
		o.onPhase(o.key, phase)
	}
}

// decide runs one decision occurrence to completion and returns how it was
// resolved: PhaseResolved or PhaseTimedOut. apply always runs exactly once and
// the correlation slot is cleared afterwards.
func (b *Bridge) decide(ctx context.Context, key correlation.Key, event events.Event, apply func(answer)) Phase {
	ctx, span := b.tracer.Start(ctx, "bridge."+key.Kind.String(), trace.WithAttributes(
		attribute.String("scanbridge.event", key.Event),
		attribute.Int("scanbridge.object_id", key.ObjectID),
		attribute.String("scanbridge.cycle_id", key.CycleID),
	))
	defer span.End()

	occ := &occurrence{key: key, onPhase: b.onPhase}
	occ.enter(PhaseCreated)
	defer b.store.Clear(key)

	var got answer
	resolution := PhaseTimedOut
	if !b.listeners.Subscribed(event.Name) {
		// Nobody would answer, do not make the native side wait
		b.skipped.Add(1)
	} else {
		occ.enter(PhaseAwaitingAnswer)
		value, ok := b.store.Await(ctx, key, b.timeout, func() {
			b.dispatcher.Dispatch(event)
		})
		if ok {
			got, _ = value.(answer)
			resolution = PhaseResolved
			b.resolved.Add(1)
		} else {
			b.timedOut.Add(1)
			b.logger.Printf("bridge: decision timed out kind=%s event=%s object=%d cycle=%s", key.Kind, key.Event, key.ObjectID, key.CycleID)
		}
	}
	occ.enter(resolution)

	apply(got)
	occ.enter(PhaseApplied)
	span.SetAttributes(
		attribute.String("scanbridge.phase", resolution.String()),
		attribute.Bool("scanbridge.answered", got.present),
	)
	return resolution
}

// kindOf maps a listener event to the kind of decision it blocks on
func kindOf(event string) (correlation.Kind, bool) {
	switch event {
	case events.DidScan, events.CaptureDidUpdateSession,
		events.TrackingDidUpdateSession,
		events.DidUpdateSelection, events.SelectionDidUpdateSession:
		return correlation.KindModeEnablement, true
	case events.BrushForTrackedBarcode:
		return correlation.KindBrushForObject, true
	case events.ViewForTrackedBarcode:
		return correlation.KindViewForObject, true
	case events.AnchorForTrackedBarcode:
		return correlation.KindAnchorForObject, true
	case events.OffsetForTrackedBarcode:
		return correlation.KindOffsetForObject, true
	}
	return 0, false
}
