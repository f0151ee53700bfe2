package bridge

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/LdDl/scanbridge/codec"
	"github.com/LdDl/scanbridge/correlation"
)

// Finish delivers the host's answer to the pending decision occurrence it
// belongs to. Nothing is deposited when the call is rejected.
func (b *Bridge) Finish(ctx context.Context, call codec.FinishCall) (err error) {
	_, span := b.tracer.Start(ctx, "bridge.finish", trace.WithAttributes(
		attribute.String("scanbridge.event", call.FinishCallbackID),
		attribute.Bool("scanbridge.has_result", call.HasResult),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			b.logger.Printf("bridge: finish rejected event=%s: %v", call.FinishCallbackID, err)
		}
		span.End()
	}()

	key, err := b.finishKey(call)
	if err != nil {
		return err
	}
	return b.store.Deposit(key, answer{result: call.Result, present: call.HasResult})
}

// FinishPayload is Finish for an undecoded payload
func (b *Bridge) FinishPayload(ctx context.Context, p codec.Payload) error {
	call, err := codec.DecodeFinishPayload(p)
	if err != nil {
		return err
	}
	return b.Finish(ctx, call)
}

// FinishJSON is Finish for raw JSON text
func (b *Bridge) FinishJSON(ctx context.Context, raw []byte) error {
	call, err := codec.DecodeFinish(raw)
	if err != nil {
		return err
	}
	return b.Finish(ctx, call)
}

func (b *Bridge) finishKey(call codec.FinishCall) (correlation.Key, error) {
	if call.FinishCallbackID == "" {
		return correlation.Key{}, errors.Wrap(codec.ErrMalformedPayload, "finish: missing finishCallbackID")
	}
	kind, ok := kindOf(call.FinishCallbackID)
	if !ok {
		return correlation.Key{}, errors.Wrapf(ErrUnknownCorrelation, "%s does not wait for an answer", call.FinishCallbackID)
	}
	key := correlation.Key{Kind: kind, Event: call.FinishCallbackID}
	if !kind.PerObject() {
		return key, nil
	}
	if call.TrackedBarcodeID == nil {
		return correlation.Key{}, errors.Wrapf(codec.ErrMalformedPayload, "finish: %s requires trackedBarcodeID", call.FinishCallbackID)
	}
	key.ObjectID = *call.TrackedBarcodeID
	if call.SessionFrameSequenceID != nil {
		key.CycleID = *call.SessionFrameSequenceID
		return key, nil
	}
	cycleID, started := b.registry.Cycle()
	if !started {
		return correlation.Key{}, errors.Wrapf(ErrUnknownCorrelation, "no tracking cycle for object %d", key.ObjectID)
	}
	key.CycleID = cycleID
	return key, nil
}
