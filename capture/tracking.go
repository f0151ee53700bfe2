package capture

import (
	"context"
	"log"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/LdDl/scanbridge/bridge"
	"github.com/LdDl/scanbridge/codec"
	"github.com/LdDl/scanbridge/mot"
)

const (
	recognizedConfidence = 1.0
	localizedConfidence  = 0.4
)

// Tracker assigns frame-stable identifiers to barcode detections.
type Tracker interface {
	// Match updates tracks with the detections of one frame. Every matched or
	// newly registered detection carries its track identifier afterwards.
	Match(detections []*mot.BlobBBox, confidences []float64) error
	// Tracks returns the tracks matched in the latest frame
	Tracks() map[int]*mot.BlobBBox
}

type iouTracker struct {
	tracker *mot.IoUTracker[*mot.BlobBBox]
}

// NewIoUTracker tracks recognized barcodes only; localized-only detections are ignored
func NewIoUTracker(maxNoMatch int, iouThreshold float64) Tracker {
	return &iouTracker{tracker: mot.NewIoUTracker[*mot.BlobBBox](maxNoMatch, iouThreshold)}
}

func (t *iouTracker) Match(detections []*mot.BlobBBox, confidences []float64) error {
	return t.tracker.MatchObjects(recognizedOnly(detections, confidences))
}

func recognizedOnly(detections []*mot.BlobBBox, confidences []float64) []*mot.BlobBBox {
	recognized := make([]*mot.BlobBBox, 0, len(detections))
	for i, detection := range detections {
		if confidences[i] >= recognizedConfidence {
			recognized = append(recognized, detection)
		}
	}
	return recognized
}

func (t *iouTracker) Tracks() map[int]*mot.BlobBBox {
	return t.tracker.Tracks()
}

type centroidTracker struct {
	tracker *mot.CentroidTracker[*mot.BlobBBox]
}

// NewCentroidTracker matches recognized barcodes by center distance, for
// barcodes that move too fast for their boxes to overlap between frames
func NewCentroidTracker(maxNoMatch int, minDistance float64) Tracker {
	return &centroidTracker{tracker: mot.NewCentroidTracker[*mot.BlobBBox](minDistance, maxNoMatch)}
}

func (t *centroidTracker) Match(detections []*mot.BlobBBox, confidences []float64) error {
	return t.tracker.MatchObjects(recognizedOnly(detections, confidences))
}

func (t *centroidTracker) Tracks() map[int]*mot.BlobBBox {
	return t.tracker.Tracks()
}

type byteTracker struct {
	tracker *mot.ByteTracker[*mot.BlobBBox]
}

// NewByteTracker lets localized-only detections keep existing tracks alive
func NewByteTracker(maxNoMatch int, minIoU float64) Tracker {
	return &byteTracker{tracker: mot.NewByteTracker[*mot.BlobBBox](maxNoMatch, minIoU, 0.5, 0.3, mot.MatchingAlgorithmHungarian)}
}

func (t *byteTracker) Match(detections []*mot.BlobBBox, confidences []float64) error {
	return t.tracker.MatchObjects(detections, confidences)
}

func (t *byteTracker) Tracks() map[int]*mot.BlobBBox {
	return t.tracker.Tracks()
}

// Tracking follows barcodes across frames and asks the host how to present
// every barcode that appears.
type Tracking struct {
	Mode *Mode

	bridge     *bridge.Bridge
	newTracker func() Tracker
	logger     *log.Logger

	mu       sync.Mutex
	tracker  Tracker
	previous map[int]codec.TrackedBarcode
}

// NewTracking creates the tracking pipeline. newTracker is called again on Reset.
func NewTracking(b *bridge.Bridge, mode *Mode, newTracker func() Tracker, logger *log.Logger) *Tracking {
	if logger == nil {
		logger = log.Default()
	}
	return &Tracking{
		Mode:       mode,
		bridge:     b,
		newTracker: newTracker,
		logger:     logger,
		tracker:    newTracker(),
		previous:   make(map[int]codec.TrackedBarcode),
	}
}

// Process runs one frame through the tracker, publishes the tracking session
// and asks overlay decisions for every barcode that appeared in this frame.
// A decision without an answer never fails the frame.
func (t *Tracking) Process(ctx context.Context, frame Frame) error {
	if !t.Mode.Enabled() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	objects, delta, err := t.track(frame)
	if err != nil {
		return errors.Wrapf(err, "frame %d", frame.SequenceID)
	}
	cycleID := strconv.Itoa(frame.SequenceID)
	if _, err := t.bridge.TrackingUpdate(ctx, t.Mode, cycleID, objects, delta); err != nil {
		t.logger.Printf("capture: tracking update failed cycle=%s: %v", cycleID, err)
	}
	if !t.Mode.Enabled() {
		return nil
	}

	byID := make(map[int]codec.TrackedBarcode, len(objects))
	for _, object := range objects {
		byID[object.Identifier] = object
	}
	for _, id := range delta.Added {
		object := byID[id]
		t.bridge.BrushForTrackedBarcode(ctx, object)
		t.bridge.ViewForTrackedBarcode(ctx, object)
		t.bridge.AnchorForTrackedBarcode(ctx, object)
		t.bridge.OffsetForTrackedBarcode(ctx, object)
	}
	return nil
}

// Reset starts a new tracking session: the bridge session is reset, all tracks
// are dropped and identifiers start over, so every barcode is new again.
func (t *Tracking) Reset() {
	// releases a frame blocked on a decision before taking the lock
	t.bridge.ResetSession()
	t.mu.Lock()
	t.tracker = t.newTracker()
	t.previous = make(map[int]codec.TrackedBarcode)
	t.mu.Unlock()
}

func (t *Tracking) track(frame Frame) ([]codec.TrackedBarcode, bridge.Delta, error) {
	dt := frame.DeltaTime
	if dt <= 0 {
		dt = 1.0
	}
	detections := make([]*mot.BlobBBox, 0, len(frame.Recognized)+len(frame.Localized))
	confidences := make([]float64, 0, cap(detections))
	for _, b := range frame.Recognized {
		detections = append(detections, mot.NewBlobBBoxWithTime(rectFromQuad(b.Location), dt))
		confidences = append(confidences, recognizedConfidence)
	}
	for _, l := range frame.Localized {
		detections = append(detections, mot.NewBlobBBoxWithTime(rectFromQuad(l.Location), dt))
		confidences = append(confidences, localizedConfidence)
	}
	if err := t.tracker.Match(detections, confidences); err != nil {
		return nil, bridge.Delta{}, err
	}

	recognizedByID := make(map[int]codec.Barcode, len(frame.Recognized))
	for i, b := range frame.Recognized {
		if id := detections[i].GetID(); id != 0 {
			recognizedByID[id] = b
		}
	}

	tracks := t.tracker.Tracks()
	ids := make([]int, 0, len(tracks))
	for id := range tracks {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	current := make(map[int]codec.TrackedBarcode, len(ids))
	objects := make([]codec.TrackedBarcode, 0, len(ids))
	delta := bridge.Delta{}
	for _, id := range ids {
		track := tracks[id]
		previous, existed := t.previous[id]
		barcode, recognized := recognizedByID[id]
		if !recognized {
			if !existed {
				continue
			}
			// kept alive by a localized-only detection
			barcode = previous.Barcode
		}
		location := quadFromRect(track.GetBBox())
		barcode.Location = location
		object := codec.TrackedBarcode{
			Identifier:        id,
			Barcode:           barcode,
			Location:          location,
			PredictedLocation: quadFromRect(track.GetPredictedBBox()),
			DeltaTime:         frame.DeltaTime,
			ShouldAnimate:     existed && previous.Location != location,
		}
		current[id] = object
		objects = append(objects, object)
		switch {
		case !existed:
			delta.Added = append(delta.Added, id)
		case object.ShouldAnimate:
			delta.Updated = append(delta.Updated, id)
		}
	}
	for id := range t.previous {
		if _, ok := current[id]; !ok {
			delta.Removed = append(delta.Removed, id)
		}
	}
	sort.Ints(delta.Removed)
	t.previous = current
	return objects, delta, nil
}

func rectFromQuad(q codec.Quadrilateral) mot.Rectangle {
	corners := q.Corners()
	points := make([]mot.Point, 0, len(corners))
	for _, c := range corners {
		points = append(points, mot.NewPoint(c.X, c.Y))
	}
	return mot.BoundingRect(points...)
}

func quadFromRect(r mot.Rectangle) codec.Quadrilateral {
	corners := r.Corners()
	return codec.Quadrilateral{
		TopLeft:     codec.Point{X: corners[0].X, Y: corners[0].Y},
		TopRight:    codec.Point{X: corners[1].X, Y: corners[1].Y},
		BottomRight: codec.Point{X: corners[2].X, Y: corners[2].Y},
		BottomLeft:  codec.Point{X: corners[3].X, Y: corners[3].Y},
	}
}
