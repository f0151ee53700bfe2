package luahost

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/LdDl/scanbridge/bridge"
	"github.com/LdDl/scanbridge/codec"
	"github.com/LdDl/scanbridge/events"
)

type finishRecorder chan codec.FinishCall

func (f finishRecorder) Finish(_ context.Context, call codec.FinishCall) error {
	f <- call
	return nil
}

const listenerScript = `
taps = 0

function brushForTrackedBarcode(event)
  if event.trackedBarcodeID == 5 then
    return {fillColor = "#FF000080", strokeColor = "#FF0000FF", strokeWidth = 2}
  end
  return nil
end

function viewForTrackedBarcode(event)
  return false
end

function anchorForTrackedBarcode(event)
  error("broken listener")
end

function didTapTrackedBarcode(event)
  taps = taps + 1
end

BarcodeCaptureListener = {
  didUpdateSession = function(event)
    return #event.session.newlyRecognizedBarcodes == 0
  end
}

function didScan(event)
  scanbridge.log("scan " .. event.session.frameSequenceId)
  return taps > 0
end
`

func startHost(t *testing.T, script string) (*Host, finishRecorder) {
	t.Helper()
	finished := make(finishRecorder, 16)
	host, err := New(script, finished, Options{Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go host.Run(ctx)
	t.Cleanup(func() {
		cancel()
		host.Close()
	})
	return host, finished
}

func next(t *testing.T, finished finishRecorder) codec.FinishCall {
	t.Helper()
	select {
	case call := <-finished:
		return call
	case <-time.After(2 * time.Second):
		t.Fatalf("no finish call")
	}
	return codec.FinishCall{}
}

func objectEvent(name string, id int) events.Event {
	return events.Event{Name: name, Payload: codec.Payload{
		"trackedBarcodeID":       id,
		"sessionFrameSequenceID": "12",
	}}
}

func TestBrushAnswer(t *testing.T) {
	host, finished := startHost(t, listenerScript)
	host.Dispatch(objectEvent(events.BrushForTrackedBarcode, 5))

	call := next(t, finished)
	if call.FinishCallbackID != events.BrushForTrackedBarcode || !call.HasResult {
		t.Fatalf("unexpected finish call %+v", call)
	}
	if call.TrackedBarcodeID == nil || *call.TrackedBarcodeID != 5 {
		t.Errorf("trackedBarcodeID = %v, expected: 5", call.TrackedBarcodeID)
	}
	if call.SessionFrameSequenceID == nil || *call.SessionFrameSequenceID != "12" {
		t.Errorf("sessionFrameSequenceID = %v, expected: 12", call.SessionFrameSequenceID)
	}
	brush, err := codec.DecodeBrush(call.Result)
	if err != nil {
		t.Fatalf("result is not a brush: %s: %v", call.Result, err)
	}
	if brush.FillColor != "#FF000080" || brush.StrokeWidth != 2 {
		t.Errorf("brush = %+v", brush)
	}

	host.Dispatch(objectEvent(events.BrushForTrackedBarcode, 6))
	if call := next(t, finished); call.HasResult {
		t.Errorf("nil return should finish without result, got %s", call.Result)
	}
}

func TestViewFalseMeansNoView(t *testing.T) {
	host, finished := startHost(t, listenerScript)
	host.Dispatch(objectEvent(events.ViewForTrackedBarcode, 1))
	call := next(t, finished)
	if !call.HasResult || string(call.Result) != "null" {
		t.Errorf("result = %q (present %v), expected: null", call.Result, call.HasResult)
	}
}

func TestScriptErrorAndMissingFunction(t *testing.T) {
	host, finished := startHost(t, listenerScript)
	host.Dispatch(objectEvent(events.AnchorForTrackedBarcode, 1))
	if call := next(t, finished); call.HasResult {
		t.Errorf("failing listener should finish without result")
	}
	host.Dispatch(objectEvent(events.OffsetForTrackedBarcode, 1))
	if call := next(t, finished); call.HasResult || call.FinishCallbackID != events.OffsetForTrackedBarcode {
		t.Errorf("missing listener should finish without result, got %+v", call)
	}
}

func TestTapIsNotFinished(t *testing.T) {
	host, finished := startHost(t, listenerScript)
	host.Dispatch(objectEvent(events.DidTapTrackedBarcode, 3))
	host.Dispatch(events.Event{Name: events.DidScan, Payload: codec.Payload{
		"session": map[string]any{"frameSequenceId": 9},
		"enabled": true,
	}})
	call := next(t, finished)
	if call.FinishCallbackID != events.DidScan {
		t.Fatalf("tap must not be finished, got %s", call.FinishCallbackID)
	}
	enabled, err := codec.DecodeBool(call.Result)
	if err != nil || !enabled {
		t.Errorf("didScan result = %s, expected: true", call.Result)
	}
}

func TestListenerTableTakesPrecedence(t *testing.T) {
	host, finished := startHost(t, listenerScript)
	session := map[string]any{"newlyRecognizedBarcodes": []any{}}
	host.Dispatch(events.Event{Name: events.CaptureDidUpdateSession, Payload: codec.Payload{"session": session}})
	call := next(t, finished)
	var enabled bool
	if err := json.Unmarshal(call.Result, &enabled); err != nil || !enabled {
		t.Errorf("capture didUpdateSession = %s, expected: true", call.Result)
	}

	// tracking has no handler of its own
	host.Dispatch(events.Event{Name: events.TrackingDidUpdateSession, Payload: codec.Payload{"session": session}})
	if call := next(t, finished); call.HasResult {
		t.Errorf("tracking didUpdateSession should have no result, got %s", call.Result)
	}
}

func TestListeners(t *testing.T) {
	host, err := New(listenerScript, make(finishRecorder, 1), Options{Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got := strings.Join(host.Listeners(), ",")
	expected := strings.Join([]string{events.CaptureListener, events.AdvancedOverlayListener, events.BasicOverlayListener}, ",")
	if got != expected {
		t.Errorf("Listeners = %s, expected: %s", got, expected)
	}
}

func TestBadScript(t *testing.T) {
	if _, err := New("function (", make(finishRecorder, 1), Options{}); err == nil {
		t.Errorf("syntax error should fail New")
	}
	if _, err := New(`error("boom")`, make(finishRecorder, 1), Options{}); err == nil {
		t.Errorf("runtime error should fail New")
	}
}

func TestDispatchNeverBlocks(t *testing.T) {
	var buf bytes.Buffer
	host, err := New(listenerScript, make(finishRecorder, 1), Options{Queue: 1, Logger: log.New(&buf, "", 0)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	host.Dispatch(objectEvent(events.BrushForTrackedBarcode, 1))
	host.Dispatch(objectEvent(events.BrushForTrackedBarcode, 2))
	if !strings.Contains(buf.String(), "queue full") {
		t.Errorf("expected a dropped event to be logged, got %q", buf.String())
	}
}

func TestBridgeRoundTrip(t *testing.T) {
	quiet := log.New(io.Discard, "", 0)
	var b *bridge.Bridge
	host, err := New(listenerScript, finisherFunc(func(ctx context.Context, call codec.FinishCall) error {
		return b.Finish(ctx, call)
	}), Options{Logger: quiet})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b = bridge.New(bridge.Options{Dispatcher: host, Logger: quiet, Timeout: 2 * time.Second})
	for _, listener := range host.Listeners() {
		b.SubscribeListener(listener)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go host.Run(ctx)

	object := codec.TrackedBarcode{Identifier: 5}
	b.Registry().BeginCycle("12", []codec.TrackedBarcode{object})
	if phase := b.BrushForTrackedBarcode(ctx, object); phase != bridge.PhaseResolved {
		t.Fatalf("phase = %s, expected: %s", phase, bridge.PhaseResolved)
	}
	brush, _ := b.Basic().BrushFor(5)
	if brush.FillColor != "#FF000080" {
		t.Errorf("brush = %+v, expected the script's brush", brush)
	}
}

type finisherFunc func(ctx context.Context, call codec.FinishCall) error

func (f finisherFunc) Finish(ctx context.Context, call codec.FinishCall) error {
	return f(ctx, call)
}
