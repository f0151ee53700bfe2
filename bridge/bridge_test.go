package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/LdDl/scanbridge/codec"
	"github.com/LdDl/scanbridge/correlation"
	"github.com/LdDl/scanbridge/events"
	"github.com/LdDl/scanbridge/selection"
)

// noResult makes the fake host answer without a result key
const noResult = "<none>"

// fakeHost answers blocking events asynchronously, like a script runtime would
type fakeHost struct {
	t       *testing.T
	bridge  *Bridge
	mu      sync.Mutex
	answers map[string]string
	seen    []events.Event
}

func (h *fakeHost) answer(event, result string) {
	h.mu.Lock()
	h.answers[event] = result
	h.mu.Unlock()
}

func (h *fakeHost) published() []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.Event(nil), h.seen...)
}

func (h *fakeHost) Dispatch(e events.Event) {
	h.mu.Lock()
	h.seen = append(h.seen, e)
	result, ok := h.answers[e.Name]
	h.mu.Unlock()
	if !ok {
		return
	}
	call := map[string]any{"finishCallbackID": e.Name}
	if result != noResult {
		call["result"] = json.RawMessage(result)
	}
	if id, ok := e.Payload["trackedBarcodeID"]; ok {
		call["trackedBarcodeID"] = id
		call["sessionFrameSequenceID"] = e.Payload["sessionFrameSequenceID"]
	}
	raw, err := json.Marshal(call)
	if err != nil {
		h.t.Errorf("can't marshal finish call: %v", err)
		return
	}
	go func() {
		if err := h.bridge.FinishJSON(context.Background(), raw); err != nil {
			h.t.Errorf("finish %s failed: %v", e.Name, err)
		}
	}()
}

type fakeMode struct {
	mu      sync.Mutex
	enabled bool
	changes int
}

func (m *fakeMode) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *fakeMode) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.changes++
	m.mu.Unlock()
}

func newTestBridge(t *testing.T, timeout time.Duration) (*Bridge, *fakeHost) {
	host := &fakeHost{t: t, answers: make(map[string]string)}
	b := New(Options{
		Dispatcher: host,
		Timeout:    timeout,
		Logger:     log.New(io.Discard, "", 0),
		Selection:  selection.NewSession(),
	})
	host.bridge = b
	for _, listener := range events.ListenerNames {
		if err := b.SubscribeListener(listener); err != nil {
			t.Fatalf("SubscribeListener(%s) failed: %v", listener, err)
		}
	}
	return b, host
}

func trackedBarcode(id int) codec.TrackedBarcode {
	data := "4006381333931"
	return codec.TrackedBarcode{
		Identifier: id,
		Barcode:    codec.Barcode{Symbology: codec.SymbologyEAN13UPCA, Data: &data},
	}
}

func beginCycle(b *Bridge, cycleID string, ids ...int) {
	objects := make([]codec.TrackedBarcode, 0, len(ids))
	for _, id := range ids {
		objects = append(objects, trackedBarcode(id))
	}
	b.Registry().BeginCycle(cycleID, objects)
}

var redBrush = codec.Brush{FillColor: "#FF000080", StrokeColor: "#FF0000FF", StrokeWidth: 2}

func TestViewNullMeansNoView(t *testing.T) {
	b, host := newTestBridge(t, 2*time.Second)
	beginCycle(b, "1", 3)
	if err := b.SetViewForTrackedBarcode(3, "1", json.RawMessage(`{"data":"aW1n"}`)); err != nil {
		t.Fatalf("SetViewForTrackedBarcode failed: %v", err)
	}
	host.answer(events.ViewForTrackedBarcode, "null")

	phase := b.ViewForTrackedBarcode(context.Background(), trackedBarcode(3))
	if phase != PhaseResolved {
		t.Fatalf("phase = %s, expected: %s", phase, PhaseResolved)
	}
	view, decided := b.Advanced().ViewFor(3)
	if !decided || view != nil {
		t.Errorf("object 3 should explicitly have no view, got %v, %v", view, decided)
	}
}

func TestViewAbsentOrMalformedKeepsView(t *testing.T) {
	b, host := newTestBridge(t, 2*time.Second)
	beginCycle(b, "1", 3)
	if err := b.SetViewForTrackedBarcode(3, "", json.RawMessage(`{"data":"aW1n"}`)); err != nil {
		t.Fatalf("SetViewForTrackedBarcode failed: %v", err)
	}
	for _, result := range []string{noResult, `{"options":{}}`, `"view"`} {
		host.answer(events.ViewForTrackedBarcode, result)
		if phase := b.ViewForTrackedBarcode(context.Background(), trackedBarcode(3)); phase != PhaseResolved {
			t.Fatalf("phase = %s, expected: %s", phase, PhaseResolved)
		}
		view, _ := b.Advanced().ViewFor(3)
		if view == nil || view.Data != "aW1n" {
			t.Errorf("result %s should leave the view unchanged, got %v", result, view)
		}
	}
}

func TestViewTapNotifiesHost(t *testing.T) {
	b, host := newTestBridge(t, 2*time.Second)
	beginCycle(b, "1", 4)
	host.answer(events.ViewForTrackedBarcode, `{"data":"aW1n","options":{"width":10,"height":10,"scale":1}}`)
	b.ViewForTrackedBarcode(context.Background(), trackedBarcode(4))
	if !b.Advanced().Tap(4) {
		t.Fatalf("object 4 should have a tappable view")
	}
	seen := host.published()
	last := seen[len(seen)-1]
	if last.Name != events.DidTapViewForTrackedBarcode || last.Payload["trackedBarcodeID"] != 4 {
		t.Errorf("unexpected tap event %+v", last)
	}
}

func TestBrushTimeoutPaintsDefault(t *testing.T) {
	b, _ := newTestBridge(t, 30*time.Millisecond)
	beginCycle(b, "1", 5)
	b.Basic().SetDefaultBrush(redBrush)

	start := time.Now()
	phase := b.BrushForTrackedBarcode(context.Background(), trackedBarcode(5))
	if phase != PhaseTimedOut {
		t.Fatalf("phase = %s, expected: %s", phase, PhaseTimedOut)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("decision gave up after %v", elapsed)
	}
	brush, ok := b.Basic().BrushFor(5)
	if !ok || brush != redBrush {
		t.Errorf("object 5 brush = %+v, %v, expected the current default %+v", brush, ok, redBrush)
	}
	if got := b.Stats().TimedOut; got != 1 {
		t.Errorf("Stats().TimedOut = %d, expected: 1", got)
	}
}

func TestBrushAnswers(t *testing.T) {
	b, host := newTestBridge(t, 2*time.Second)
	beginCycle(b, "1", 5)

	host.answer(events.BrushForTrackedBarcode, `{"fillColor":"#FF000080","strokeColor":"#FF0000FF","strokeWidth":2}`)
	b.BrushForTrackedBarcode(context.Background(), trackedBarcode(5))
	if brush, _ := b.Basic().BrushFor(5); brush != redBrush {
		t.Errorf("brush = %+v, expected: %+v", brush, redBrush)
	}

	for _, result := range []string{noResult, "null", `{"fillColor":"red"}`} {
		host.answer(events.BrushForTrackedBarcode, result)
		b.BrushForTrackedBarcode(context.Background(), trackedBarcode(5))
		if brush, _ := b.Basic().BrushFor(5); brush != b.Basic().Brush() {
			t.Errorf("result %s: brush = %+v, expected default %+v", result, brush, b.Basic().Brush())
		}
	}
}

func TestResetReleasesWaiters(t *testing.T) {
	b, _ := newTestBridge(t, 10*time.Second)
	beginCycle(b, "1", 1, 2, 3)
	before := b.SessionID()

	var wg sync.WaitGroup
	phases := make(chan Phase, 3)
	decisions := []func(context.Context, codec.TrackedBarcode) Phase{
		b.BrushForTrackedBarcode, b.ViewForTrackedBarcode, b.AnchorForTrackedBarcode,
	}
	for i, decide := range decisions {
		wg.Add(1)
		go func(id int, decide func(context.Context, codec.TrackedBarcode) Phase) {
			defer wg.Done()
			phases <- decide(context.Background(), trackedBarcode(id))
		}(i+1, decide)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(b.store.Pending()) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d occurrences started waiting", len(b.store.Pending()))
		}
		time.Sleep(time.Millisecond)
	}

	start := time.Now()
	b.ResetSession()
	wg.Wait()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("waiters were released after %v", elapsed)
	}
	close(phases)
	for phase := range phases {
		if phase != PhaseTimedOut {
			t.Errorf("released occurrence phase = %s, expected: %s", phase, PhaseTimedOut)
		}
	}
	for id := 1; id <= 3; id++ {
		if _, ok := b.Registry().Lookup(id, ""); ok {
			t.Errorf("object %d still found after reset", id)
		}
	}
	if b.SessionID() == before {
		t.Errorf("session id should change on reset")
	}
	if got := b.Stats().Released; got != 3 {
		t.Errorf("Stats().Released = %d, expected: 3", got)
	}
}

func TestOffsetFallback(t *testing.T) {
	b, _ := newTestBridge(t, 20*time.Millisecond)
	beginCycle(b, "1", 7)
	explicit := codec.PointWithUnit{
		X: codec.NumberWithUnit{Value: 0.5, Unit: codec.MeasureUnitFraction},
		Y: codec.NumberWithUnit{Value: -1, Unit: codec.MeasureUnitFraction},
	}
	raw, _ := json.Marshal(explicit)
	if err := b.SetOffsetForTrackedBarcode(7, "1", raw); err != nil {
		t.Fatalf("SetOffsetForTrackedBarcode failed: %v", err)
	}
	// something else moves the view in between
	b.Advanced().SetOffset(7, codec.ZeroOffset)

	if phase := b.OffsetForTrackedBarcode(context.Background(), trackedBarcode(7)); phase != PhaseTimedOut {
		t.Fatalf("phase = %s, expected: %s", phase, PhaseTimedOut)
	}
	if offset, _ := b.Advanced().OffsetFor(7); offset != explicit {
		t.Errorf("offset = %+v, expected remembered %+v", offset, explicit)
	}
	if b.Offsets().Len() != 0 {
		t.Errorf("remembered offset should be consumed")
	}

	b.Advanced().SetOffset(7, codec.ZeroOffset)
	b.OffsetForTrackedBarcode(context.Background(), trackedBarcode(7))
	if offset, _ := b.Advanced().OffsetFor(7); offset != codec.ZeroOffset {
		t.Errorf("second timeout changed the offset to %+v", offset)
	}
}

func TestOffsetAnswerDropsMemory(t *testing.T) {
	b, host := newTestBridge(t, 2*time.Second)
	beginCycle(b, "1", 7)
	b.Offsets().Remember(7, codec.ZeroOffset)
	host.answer(events.OffsetForTrackedBarcode, `{"x":{"value":3,"unit":"dip"},"y":{"value":4,"unit":"dip"}}`)

	b.OffsetForTrackedBarcode(context.Background(), trackedBarcode(7))
	offset, _ := b.Advanced().OffsetFor(7)
	if offset.X.Value != 3 || offset.Y.Unit != codec.MeasureUnitDIP {
		t.Errorf("offset = %+v, expected the answered one", offset)
	}
	if _, ok := b.Offsets().Peek(7); ok {
		t.Errorf("answered offset should drop the remembered one")
	}

	// malformed answers fall back like silence does
	b.Offsets().Remember(7, codec.ZeroOffset)
	host.answer(events.OffsetForTrackedBarcode, `{"x":1}`)
	b.OffsetForTrackedBarcode(context.Background(), trackedBarcode(7))
	if offset, _ := b.Advanced().OffsetFor(7); offset != codec.ZeroOffset {
		t.Errorf("malformed offset answer should apply the remembered offset, got %+v", offset)
	}
}

func TestAnchor(t *testing.T) {
	b, host := newTestBridge(t, 2*time.Second)
	beginCycle(b, "1", 2)
	host.answer(events.AnchorForTrackedBarcode, `"topCenter"`)
	b.AnchorForTrackedBarcode(context.Background(), trackedBarcode(2))
	if anchor, _ := b.Advanced().AnchorFor(2); anchor != codec.AnchorTopCenter {
		t.Errorf("anchor = %q, expected: %q", anchor, codec.AnchorTopCenter)
	}
	host.answer(events.AnchorForTrackedBarcode, `"somewhere"`)
	b.AnchorForTrackedBarcode(context.Background(), trackedBarcode(2))
	if anchor, _ := b.Advanced().AnchorFor(2); anchor != codec.AnchorTopCenter {
		t.Errorf("malformed anchor changed it to %q", anchor)
	}
}

func TestModeStatus(t *testing.T) {
	b, host := newTestBridge(t, 2*time.Second)
	mode := &fakeMode{enabled: true}

	host.answer(events.DidScan, "false")
	phase, err := b.ModeStatus(context.Background(), events.DidScan, mode, codec.Payload{"newlyRecognizedBarcodes": []any{}})
	if err != nil || phase != PhaseResolved {
		t.Fatalf("ModeStatus = %s, %v", phase, err)
	}
	if mode.Enabled() {
		t.Errorf("mode should be disabled by the answer")
	}

	host.answer(events.DidScan, "false")
	b.ModeStatus(context.Background(), events.DidScan, mode, nil)
	if mode.changes != 1 {
		t.Errorf("same value must not be set again, changes = %d", mode.changes)
	}

	host.answer(events.DidScan, `"on"`)
	b.ModeStatus(context.Background(), events.DidScan, mode, nil)
	if mode.Enabled() || mode.changes != 1 {
		t.Errorf("malformed answer must not change the mode")
	}

	if _, err := b.ModeStatus(context.Background(), events.BrushForTrackedBarcode, mode, nil); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("object event as mode event = %v, expected: %v", err, ErrUnknownEvent)
	}
	if _, err := b.ModeStatus(context.Background(), events.DidScan, nil, nil); !errors.Is(err, ErrNoMode) {
		t.Errorf("nil mode = %v, expected: %v", err, ErrNoMode)
	}
}

func TestTrackingUpdate(t *testing.T) {
	b, host := newTestBridge(t, 2*time.Second)
	mode := &fakeMode{enabled: true}
	host.answer(events.TrackingDidUpdateSession, noResult)

	objects := []codec.TrackedBarcode{trackedBarcode(1), trackedBarcode(2)}
	phase, err := b.TrackingUpdate(context.Background(), mode, "17", objects, Delta{Added: []int{1, 2}})
	if err != nil || phase != PhaseResolved {
		t.Fatalf("TrackingUpdate = %s, %v", phase, err)
	}
	if _, ok := b.Registry().Lookup(2, "17"); !ok {
		t.Errorf("object 2 should be registered in cycle 17")
	}
	if !mode.Enabled() {
		t.Errorf("answer without result must not change the mode")
	}
	seen := host.published()
	session, _ := seen[0].Payload["session"].(map[string]any)
	if session["frameSequenceId"] != "17" {
		t.Errorf("frameSequenceId = %v, expected: 17", session["frameSequenceId"])
	}
	if added, _ := session["addedTrackedBarcodes"].([]any); len(added) != 2 {
		t.Errorf("expected 2 added barcodes, got %v", session["addedTrackedBarcodes"])
	}
}

func TestUnsubscribedListenerIsNotAsked(t *testing.T) {
	b, host := newTestBridge(t, 10*time.Second)
	beginCycle(b, "1", 5)
	if err := b.UnsubscribeListener(events.BasicOverlayListener); err != nil {
		t.Fatalf("UnsubscribeListener failed: %v", err)
	}

	start := time.Now()
	phase := b.BrushForTrackedBarcode(context.Background(), trackedBarcode(5))
	if phase != PhaseTimedOut || time.Since(start) > time.Second {
		t.Errorf("unsubscribed listener should resolve immediately as no answer, got %s", phase)
	}
	if brush, ok := b.Basic().BrushFor(5); !ok || brush != b.Basic().Brush() {
		t.Errorf("object 5 should get the default brush")
	}
	if len(host.published()) != 0 {
		t.Errorf("no event should be published, got %d", len(host.published()))
	}
	if err := b.SubscribeListener("NoSuchListener"); !errors.Is(err, ErrUnknownListener) {
		t.Errorf("SubscribeListener(unknown) = %v, expected: %v", err, ErrUnknownListener)
	}
}

func TestPhasesInOrder(t *testing.T) {
	var mu sync.Mutex
	var phases []Phase
	host := &fakeHost{t: t, answers: map[string]string{events.AnchorForTrackedBarcode: `"center"`}}
	b := New(Options{
		Dispatcher: host,
		Logger:     log.New(io.Discard, "", 0),
		OnPhase: func(_ correlation.Key, phase Phase) {
			mu.Lock()
			phases = append(phases, phase)
			mu.Unlock()
		},
	})
	host.bridge = b
	b.SubscribeListener(events.AdvancedOverlayListener)
	beginCycle(b, "1", 1)

	b.AnchorForTrackedBarcode(context.Background(), trackedBarcode(1))
	expected := []Phase{PhaseCreated, PhaseAwaitingAnswer, PhaseResolved, PhaseApplied}
	mu.Lock()
	defer mu.Unlock()
	if len(phases) != len(expected) {
		t.Fatalf("phases = %v, expected: %v", phases, expected)
	}
	for i := range expected {
		if phases[i] != expected[i] {
			t.Errorf("phase %d = %s, expected: %s", i, phases[i], expected[i])
		}
	}
	if pending := b.store.Pending(); len(pending) != 0 {
		t.Errorf("slot should be cleared after apply, pending %v", pending)
	}
}

func TestFinishRejections(t *testing.T) {
	b, _ := newTestBridge(t, 50*time.Millisecond)
	ctx := context.Background()

	cases := []struct {
		raw      string
		expected error
	}{
		{`{"result":true}`, codec.ErrMalformedPayload},
		{`{"finishCallbackID":"BarcodeTrackingBasicOverlayListener.brushForTrackedBarcode"}`, codec.ErrMalformedPayload},
		{`{"finishCallbackID":"BarcodeTrackingBasicOverlayListener.didTapTrackedBarcode","trackedBarcodeID":1}`, ErrUnknownCorrelation},
		{`{"finishCallbackID":"BarcodeCaptureListener.didScan","result":true}`, ErrUnknownCorrelation},
		{`{"finishCallbackID":"BarcodeTrackingBasicOverlayListener.brushForTrackedBarcode","trackedBarcodeID":1}`, ErrUnknownCorrelation},
	}
	for _, c := range cases {
		if err := b.FinishJSON(ctx, []byte(c.raw)); !errors.Is(err, c.expected) {
			t.Errorf("FinishJSON(%s) = %v, expected: %v", c.raw, err, c.expected)
		}
	}

	// A late answer from cycle 1 must not reach an occurrence of cycle 2
	beginCycle(b, "2", 1)
	var finishErr error
	b.store.Await(ctx, correlation.Key{Kind: correlation.KindBrushForObject, Event: events.BrushForTrackedBarcode, ObjectID: 1, CycleID: "2"}, 20*time.Millisecond, func() {
		finishErr = b.FinishJSON(ctx, []byte(`{"finishCallbackID":"BarcodeTrackingBasicOverlayListener.brushForTrackedBarcode","trackedBarcodeID":1,"sessionFrameSequenceID":"1","result":null}`))
	})
	if !errors.Is(finishErr, ErrUnknownCorrelation) {
		t.Errorf("stale finish = %v, expected: %v", finishErr, ErrUnknownCorrelation)
	}
}

func TestFinishWithoutCycleUsesCurrent(t *testing.T) {
	b, _ := newTestBridge(t, time.Second)
	beginCycle(b, "9", 1)
	key := correlation.Key{Kind: correlation.KindBrushForObject, Event: events.BrushForTrackedBarcode, ObjectID: 1, CycleID: "9"}
	var finishErr error
	value, ok := b.store.Await(context.Background(), key, time.Second, func() {
		finishErr = b.FinishPayload(context.Background(), codec.Payload{
			"finishCallbackID": events.BrushForTrackedBarcode,
			"trackedBarcodeID": 1,
			"result":           nil,
		})
	})
	if finishErr != nil || !ok {
		t.Fatalf("finish without cycle failed: %v", finishErr)
	}
	if got := value.(answer); !got.present || string(got.result) != "null" {
		t.Errorf("deposited %+v, expected a present null result", got)
	}
}

func TestResetTearsDown(t *testing.T) {
	b, host := newTestBridge(t, 10*time.Second)
	beginCycle(b, "1", 1, 2)
	b.Basic().SetBrush(1, redBrush)
	b.Advanced().SetView(2, &codec.View{}, nil)
	raw, _ := json.Marshal(codec.ZeroOffset)
	b.SetOffsetForTrackedBarcode(2, "1", raw)
	if b.Offsets().Len() != 1 {
		t.Fatalf("offset should be remembered")
	}

	phase := make(chan Phase, 1)
	go func() {
		phase <- b.AnchorForTrackedBarcode(context.Background(), trackedBarcode(1))
	}()
	deadline := time.Now().Add(2 * time.Second)
	for len(b.store.Pending()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("anchor decision never started waiting")
		}
		time.Sleep(time.Millisecond)
	}

	b.Reset()
	select {
	case got := <-phase:
		if got != PhaseTimedOut {
			t.Errorf("released phase = %s, expected: %s", got, PhaseTimedOut)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Reset did not release the waiting decision")
	}
	for _, listener := range events.ListenerNames {
		if b.listeners.Subscribed(listener) {
			t.Errorf("%s still subscribed after Reset", listener)
		}
	}
	if _, ok := b.Registry().Lookup(1, ""); ok {
		t.Errorf("registry should be empty after Reset")
	}
	if _, ok := b.Basic().BrushFor(1); ok {
		t.Errorf("brushes should be cleared")
	}
	if _, ok := b.Advanced().ViewFor(2); ok {
		t.Errorf("views should be cleared")
	}
	if b.Offsets().Len() != 0 {
		t.Errorf("offset memory should be cleared")
	}

	published := len(host.published())
	beginCycle(b, "2", 1)
	if got := b.BrushForTrackedBarcode(context.Background(), trackedBarcode(1)); got != PhaseTimedOut {
		t.Errorf("phase = %s, expected: %s", got, PhaseTimedOut)
	}
	if len(host.published()) != published {
		t.Errorf("no listener is subscribed, nothing should be published")
	}
}

func TestSetters(t *testing.T) {
	b, _ := newTestBridge(t, time.Second)
	beginCycle(b, "3", 8)

	brush, _ := json.Marshal(redBrush)
	if err := b.SetBrushForTrackedBarcode(8, "2", brush); !errors.Is(err, ErrTrackedBarcodeNotFound) {
		t.Errorf("stale cycle = %v, expected: %v", err, ErrTrackedBarcodeNotFound)
	}
	if err := b.SetBrushForTrackedBarcode(8, "3", brush); err != nil {
		t.Errorf("SetBrushForTrackedBarcode failed: %v", err)
	}
	if err := b.SetBrushForTrackedBarcode(8, "3", json.RawMessage(`{"fillColor":1}`)); !errors.Is(err, codec.ErrMalformedPayload) {
		t.Errorf("malformed brush = %v, expected: %v", err, codec.ErrMalformedPayload)
	}
	b.ClearTrackedBarcodeBrushes()
	if _, ok := b.Basic().BrushFor(8); ok {
		t.Errorf("brushes should be cleared")
	}

	if err := b.SetAnchorForTrackedBarcode(8, "3", json.RawMessage(`"bottomRight"`)); err != nil {
		t.Errorf("SetAnchorForTrackedBarcode failed: %v", err)
	}
	if err := b.SetAnchorForTrackedBarcode(99, "3", json.RawMessage(`"bottomRight"`)); !errors.Is(err, ErrTrackedBarcodeNotFound) {
		t.Errorf("unknown object = %v, expected: %v", err, ErrTrackedBarcodeNotFound)
	}

	if err := b.SetOffsetForTrackedBarcode(8, "3", json.RawMessage(`{"x":{"value":1}}`)); !errors.Is(err, codec.ErrMalformedPayload) {
		t.Errorf("malformed offset = %v, expected: %v", err, codec.ErrMalformedPayload)
	}
	if offset, ok := b.Offsets().Peek(8); !ok || offset != codec.ZeroOffset {
		t.Errorf("malformed offset should remember zero, got %+v, %v", offset, ok)
	}

	if err := b.SetViewForTrackedBarcode(8, "3", json.RawMessage(`null`)); err != nil {
		t.Errorf("SetViewForTrackedBarcode(null) failed: %v", err)
	}
	if view, ok := b.Advanced().ViewFor(8); !ok || view != nil {
		t.Errorf("null view should be recorded as no view")
	}
	b.ClearTrackedBarcodeViews()
	if _, ok := b.Advanced().ViewFor(8); ok {
		t.Errorf("views should be cleared")
	}
}

func TestSelectionAndDefaults(t *testing.T) {
	b, _ := newTestBridge(t, time.Second)
	if n, err := b.CountForBarcode("nothing"); err != nil || n != 0 {
		t.Errorf("CountForBarcode = %d, %v", n, err)
	}
	withoutSelection := New(Options{Logger: log.New(io.Discard, "", 0)})
	if _, err := withoutSelection.CountForBarcode("x"); !errors.Is(err, ErrNoSelectionSession) {
		t.Errorf("CountForBarcode without session = %v, expected: %v", err, ErrNoSelectionSession)
	}

	defaults := b.Defaults()
	tracking, _ := defaults["BarcodeTracking"].(map[string]any)
	overlaySection, _ := tracking["BarcodeTrackingBasicOverlay"].(map[string]any)
	brush, _ := overlaySection["DefaultBrush"].(map[string]any)
	if brush["fillColor"] != "#2EC1CE4D" {
		t.Errorf("default brush fill = %v", brush["fillColor"])
	}
	if symbologies, _ := defaults["SymbologyDescriptions"].([]any); len(symbologies) != len(codec.Symbologies) {
		t.Errorf("expected %d symbologies, got %d", len(codec.Symbologies), len(symbologies))
	}
}
