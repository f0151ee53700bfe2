// Package bridge lets the native detection pipeline ask the host runtime for
// decisions, wait a bounded time for the answer and apply it.
package bridge

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/LdDl/scanbridge/codec"
	"github.com/LdDl/scanbridge/correlation"
	"github.com/LdDl/scanbridge/events"
	"github.com/LdDl/scanbridge/overlay"
	"github.com/LdDl/scanbridge/selection"
	"github.com/LdDl/scanbridge/session"
)

// DefaultTimeout bounds every decision occurrence unless Options.Timeout is set
const DefaultTimeout = 10 * time.Second

const tracerName = "github.com/LdDl/scanbridge/bridge"

var (
	// ErrUnknownCorrelation is returned when a finish call matches no pending occurrence
	ErrUnknownCorrelation = correlation.ErrUnknownCorrelation
	// ErrTrackedBarcodeNotFound is returned when an object id is unknown or belongs to a stale cycle
	ErrTrackedBarcodeNotFound = errors.New("tracked barcode not found")
	ErrNoSelectionSession     = errors.New("no barcode selection session")
	ErrNoMode                 = errors.New("no data capture mode")
	ErrUnknownEvent           = errors.New("unknown event")
	ErrUnknownListener        = errors.New("unknown listener")
)

// Mode is a data capture mode whose enablement the host may decide.
type Mode interface {
	Enabled() bool
	SetEnabled(enabled bool)
}

// Defaults is the static configuration snapshot reported to the host
type Defaults struct {
	Brush               codec.Brush
	CodeDuplicateFilter time.Duration
}

type Options struct {
	Registry   *session.Registry
	Store      *correlation.Store
	Dispatcher events.Dispatcher
	Listeners  *events.Listeners
	Selection  *selection.Session
	Basic      *overlay.Basic
	Advanced   *overlay.Advanced
	Timeout    time.Duration
	Logger     *log.Logger
	Defaults   Defaults
	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider
	// OnPhase observes every phase change of every decision occurrence
	OnPhase func(key correlation.Key, phase Phase)
}

// Stats counts how decision occurrences were resolved
type Stats struct {
	Resolved int64 `json:"resolved"`
	TimedOut int64 `json:"timedOut"`
	Skipped  int64 `json:"skipped"`
	Released int64 `json:"released"`
}

type Bridge struct {
	registry   *session.Registry
	store      *correlation.Store
	dispatcher events.Dispatcher
	listeners  *events.Listeners
	selection  *selection.Session
	basic      *overlay.Basic
	advanced   *overlay.Advanced
	offsets    *OffsetMemory
	timeout    time.Duration
	logger     *log.Logger
	defaults   Defaults
	tracer     trace.Tracer
	onPhase    func(correlation.Key, Phase)

	sessionMu sync.RWMutex
	sessionID uuid.UUID

	resolved atomic.Int64
	timedOut atomic.Int64
	skipped  atomic.Int64
	released atomic.Int64
}

// New creates a bridge. Missing collaborators are created with defaults.
func New(opts Options) *Bridge {
	if opts.Registry == nil {
		opts.Registry = session.NewRegistry()
	}
	if opts.Store == nil {
		opts.Store = correlation.NewStore()
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = events.Discard
	}
	if opts.Listeners == nil {
		opts.Listeners = events.NewListeners()
	}
	if opts.Defaults.Brush == (codec.Brush{}) {
		opts.Defaults.Brush = overlay.DefaultBrush
	}
	if opts.Basic == nil {
		opts.Basic = overlay.NewBasic(opts.Defaults.Brush)
	}
	if opts.Advanced == nil {
		opts.Advanced = overlay.NewAdvanced()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	return &Bridge{
		registry:   opts.Registry,
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		listeners:  opts.Listeners,
		selection:  opts.Selection,
		basic:      opts.Basic,
		advanced:   opts.Advanced,
		offsets:    NewOffsetMemory(),
		timeout:    opts.Timeout,
		logger:     opts.Logger,
		defaults:   opts.Defaults,
		tracer:     opts.TracerProvider.Tracer(tracerName),
		onPhase:    opts.OnPhase,
		sessionID:  uuid.New(),
	}
}

func (b *Bridge) Registry() *session.Registry {
	return b.registry
}

func (b *Bridge) Basic() *overlay.Basic {
	return b.basic
}

func (b *Bridge) Advanced() *overlay.Advanced {
	return b.advanced
}

func (b *Bridge) Offsets() *OffsetMemory {
	return b.offsets
}

// SessionID identifies the current bridge session. It changes on every ResetSession.
func (b *Bridge) SessionID() uuid.UUID {
	b.sessionMu.RLock()
	defer b.sessionMu.RUnlock()
	return b.sessionID
}

func (b *Bridge) Stats() Stats {
	return Stats{
		Resolved: b.resolved.Load(),
		TimedOut: b.timedOut.Load(),
		Skipped:  b.skipped.Load(),
		Released: b.released.Load(),
	}
}

// ResetSession forgets the tracked barcodes of the current cycle and releases
// every blocked decision occurrence.
func (b *Bridge) ResetSession() {
	b.registry.Clear()
	released := b.store.ReleaseAll()
	b.released.Add(int64(released))
	b.sessionMu.Lock()
	b.sessionID = uuid.New()
	b.sessionMu.Unlock()
	b.logger.Printf("bridge: session reset released=%d session=%s", released, b.SessionID())
}

// Reset tears everything down: listeners, session, overlays and offset memory
func (b *Bridge) Reset() {
	b.listeners.Reset()
	b.ResetSession()
	b.basic.ClearBrushes()
	b.advanced.ClearViews()
	b.offsets.Clear()
}

// SubscribeListener marks a host listener as subscribed. Subscribing the
// tracking listener starts from an empty registry.
func (b *Bridge) SubscribeListener(listener string) error {
	if !events.KnownListener(listener) {
		return errors.Wrapf(ErrUnknownListener, "%q", listener)
	}
	b.listeners.Subscribe(listener)
	if listener == events.TrackingListener {
		b.registry.Clear()
	}
	return nil
}

func (b *Bridge) UnsubscribeListener(listener string) error {
	if !events.KnownListener(listener) {
		return errors.Wrapf(ErrUnknownListener, "%q", listener)
	}
	b.listeners.Unsubscribe(listener)
	return nil
}

// CountForBarcode returns how many times the barcode with the given selection
// identifier was selected in the current selection session.
func (b *Bridge) CountForBarcode(selectionIdentifier string) (int, error) {
	if b.selection == nil {
		return 0, ErrNoSelectionSession
	}
	return b.selection.Count(selectionIdentifier), nil
}

func (b *Bridge) ResetSelectionSession() error {
	if b.selection == nil {
		return ErrNoSelectionSession
	}
	b.selection.Reset()
	return nil
}

// Defaults returns the static configuration snapshot
func (b *Bridge) Defaults() codec.Payload {
	brush, err := codec.Encode(b.defaults.Brush)
	if err != nil {
		brush = codec.Payload{}
	}
	symbologies := make([]any, 0, len(codec.Symbologies))
	for _, s := range codec.Symbologies {
		symbologies = append(symbologies, string(s))
	}
	return codec.Payload{
		"SymbologyDescriptions": symbologies,
		"BarcodeCapture": map[string]any{
			"BarcodeCaptureOverlay": map[string]any{"DefaultBrush": map[string]any(brush)},
			"BarcodeCaptureSettings": map[string]any{
				"codeDuplicateFilter": b.defaults.CodeDuplicateFilter.Milliseconds(),
			},
		},
		"BarcodeTracking": map[string]any{
			"BarcodeTrackingBasicOverlay": map[string]any{"DefaultBrush": map[string]any(brush)},
		},
	}
}
