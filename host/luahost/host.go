// Package luahost answers bridge events with listener functions written in Lua.
//
// A script defines global functions named after listener methods:
//
//	function brushForTrackedBarcode(event)
//	  return {fillColor = "#FF000080", strokeColor = "#FF0000FF", strokeWidth = 2}
//	end
//
// A function in a global table named after the listener takes precedence, which
// tells the three didUpdateSession methods apart:
//
//	BarcodeCaptureListener = {didUpdateSession = function(event) return true end}
//
// The function receives the event payload as a table. Returning nil leaves the
// native side with its fallback. viewForTrackedBarcode may return false to
// remove the view.
package luahost

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/Shopify/go-lua"
	"github.com/pkg/errors"

	"github.com/LdDl/scanbridge/codec"
	"github.com/LdDl/scanbridge/events"
)

const defaultQueue = 256

// Finisher receives the answers of blocking events
type Finisher interface {
	Finish(ctx context.Context, call codec.FinishCall) error
}

type Options struct {
	// Queue is the number of events waiting for the loop; 256 when zero
	Queue  int
	Logger *log.Logger
}

// Host owns one Lua state. Only the goroutine running Run touches it after New returns.
type Host struct {
	state     *lua.State
	finisher  Finisher
	logger    *log.Logger
	queue     chan events.Event
	done      chan struct{}
	closeOnce sync.Once
	listeners []string
}

// New runs script once to define the listener functions
func New(script string, finisher Finisher, opts Options) (*Host, error) {
	if opts.Queue <= 0 {
		opts.Queue = defaultQueue
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	h := &Host{
		state:    lua.NewState(),
		finisher: finisher,
		logger:   opts.Logger,
		queue:    make(chan events.Event, opts.Queue),
		done:     make(chan struct{}),
	}
	lua.OpenLibraries(h.state)
	h.registerHelpers()
	if err := lua.LoadString(h.state, script); err != nil {
		return nil, errors.Wrap(err, "load script")
	}
	if err := h.state.ProtectedCall(0, 0, 0); err != nil {
		return nil, errors.Wrap(err, "run script")
	}
	h.listeners = h.definedListeners()
	return h, nil
}

// Listeners returns the listeners the script implements at least one method of
func (h *Host) Listeners() []string {
	return append([]string(nil), h.listeners...)
}

// Dispatch queues e for the loop. It never blocks; a full queue drops the event.
func (h *Host) Dispatch(e events.Event) {
	select {
	case h.queue <- e:
	default:
		h.logger.Printf("luahost: queue full, dropping event=%s", e.Name)
	}
}

// Run handles queued events until ctx is done or Close is called
func (h *Host) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return nil
		case e := <-h.queue:
			h.handle(ctx, e)
		}
	}
}

// Close stops Run. Queued events are not handled.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

func (h *Host) handle(ctx context.Context, e events.Event) {
	result, present, err := h.call(e)
	if err != nil {
		h.logger.Printf("luahost: listener failed event=%s: %v", e.Name, err)
		present = false
	}
	if !events.Blocking(e.Name) {
		return
	}
	call := codec.FinishCall{FinishCallbackID: e.Name, HasResult: present}
	if present {
		call.Result = result
	}
	if id, ok := intField(e.Payload, "trackedBarcodeID"); ok {
		call.TrackedBarcodeID = &id
	}
	if seq, ok := e.Payload["sessionFrameSequenceID"].(string); ok {
		call.SessionFrameSequenceID = &seq
	}
	if err := h.finisher.Finish(ctx, call); err != nil {
		h.logger.Printf("luahost: finish failed event=%s: %v", e.Name, err)
	}
}

// call invokes the listener function of e. present is false when the function
// is missing or returned nil.
func (h *Host) call(e events.Event) (json.RawMessage, bool, error) {
	listener, method, ok := events.Split(e.Name)
	if !ok {
		return nil, false, errors.Errorf("unexpected event name %q", e.Name)
	}
	top := h.state.Top()
	defer h.state.SetTop(top)

	if !h.pushFunction(listener, method) {
		return nil, false, nil
	}
	payload, err := normalize(e.Payload)
	if err != nil {
		return nil, false, errors.Wrap(err, "payload")
	}
	pushValue(h.state, payload)
	if err := h.state.ProtectedCall(1, 1, 0); err != nil {
		return nil, false, err
	}
	if h.state.IsNoneOrNil(-1) {
		return nil, false, nil
	}
	if e.Name == events.ViewForTrackedBarcode && h.state.TypeOf(-1) == lua.TypeBoolean && !h.state.ToBoolean(-1) {
		return json.RawMessage("null"), true, nil
	}
	raw, err := json.Marshal(luaToGo(h.state, -1))
	if err != nil {
		return nil, false, errors.Wrap(err, "result")
	}
	return raw, true, nil
}

func (h *Host) definedListeners() []string {
	seen := make(map[string]struct{})
	for _, name := range events.Names {
		listener, method, _ := events.Split(name)
		if h.pushFunction(listener, method) {
			seen[listener] = struct{}{}
			h.state.Pop(1)
		}
	}
	listeners := make([]string, 0, len(seen))
	for listener := range seen {
		listeners = append(listeners, listener)
	}
	sort.Strings(listeners)
	return listeners
}

// pushFunction pushes the function handling listener.method and reports
// whether there is one. Nothing is pushed when there is none.
func (h *Host) pushFunction(listener, method string) bool {
	h.state.Global(listener)
	if h.state.TypeOf(-1) == lua.TypeTable {
		h.state.Field(-1, method)
		if h.state.TypeOf(-1) == lua.TypeFunction {
			h.state.Remove(-2)
			return true
		}
		h.state.Pop(1)
	}
	h.state.Pop(1)
	h.state.Global(method)
	if h.state.TypeOf(-1) == lua.TypeFunction {
		return true
	}
	h.state.Pop(1)
	return false
}

func (h *Host) registerHelpers() {
	h.state.NewTable()
	lua.SetFunctions(h.state, []lua.RegistryFunction{
		{Name: "log", Function: func(state *lua.State) int {
			h.logger.Printf("luahost: script: %s", lua.CheckString(state, 1))
			return 0
		}},
	}, 0)
	h.state.SetGlobal("scanbridge")
}

// normalize turns a payload into plain JSON values
func normalize(p codec.Payload) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func intField(p codec.Payload, key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

func pushValue(state *lua.State, value any) {
	switch v := value.(type) {
	case nil:
		state.PushNil()
	case string:
		state.PushString(v)
	case bool:
		state.PushBoolean(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			state.PushInteger(int(v))
		} else {
			state.PushNumber(v)
		}
	case []any:
		state.NewTable()
		for i, item := range v {
			pushValue(state, item)
			state.RawSetInt(-2, i+1)
		}
	case map[string]any:
		state.NewTable()
		for key, item := range v {
			pushValue(state, item)
			state.SetField(-2, key)
		}
	default:
		state.PushNil()
	}
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

// tableToGo returns a slice for sequences and a map otherwise
func tableToGo(state *lua.State, index int) any {
	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}

	output := map[string]any{}
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
