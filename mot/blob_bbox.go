package mot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// BlobBBox is a tracked barcode location smoothed by an 8-D Kalman filter.
// State vector: [cx, cy, w, h, vx, vy, vw, vh] - center position, size, and velocities.
// It implements Blob[*BlobBBox] interface.
type BlobBBox struct {
	id            int
	currentBBox   Rectangle
	predictedBBox Rectangle
	track         []Point
	maxTrackLen   int
	active        bool
	noMatchTimes  int
	diagonal      float64
	tracker       *kalman_filter.KalmanBBox
}

// NewBlobBBoxWithTime creates a detection with the given frame time step (seconds).
func NewBlobBBoxWithTime(currentBbox Rectangle, dt float64) *BlobBBox {
	center := currentBbox.Center()

	// Barcodes barely change size between frames, so size control input is zero
	uCx := 1.0
	uCy := 1.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	kf := kalman_filter.NewKalmanBBox(
		dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(center.X, center.Y, currentBbox.Width, currentBbox.Height),
	)

	blob := BlobBBox{
		currentBBox:   currentBbox,
		predictedBBox: currentBbox,
		track:         make([]Point, 0, defaultMaxTrackLen),
		maxTrackLen:   defaultMaxTrackLen,
		diagonal:      currentBbox.Diagonal(),
		tracker:       kf,
	}
	blob.track = append(blob.track, center)
	return &blob
}

// NewBlobBBox creates a detection with time step of 1.0.
func NewBlobBBox(currentBbox Rectangle) *BlobBBox {
	return NewBlobBBoxWithTime(currentBbox, 1.0)
}

const defaultMaxTrackLen = 30

func (blob *BlobBBox) Activate() {
	blob.active = true
}

func (blob *BlobBBox) Deactivate() {
	blob.active = false
}

// IsActive reports whether the blob was matched in the latest frame
func (blob *BlobBBox) IsActive() bool {
	return blob.active
}

// GetID returns tracker identifier. Zero for unregistered detections
func (blob *BlobBBox) GetID() int {
	return blob.id
}

func (blob *BlobBBox) SetID(newID int) {
	blob.id = newID
}

func (blob *BlobBBox) GetCenter() Point {
	return blob.currentBBox.Center()
}

func (blob *BlobBBox) GetBBox() Rectangle {
	return blob.currentBBox
}

// GetPredictedBBox returns box predicted by Kalman filter for the next frame
func (blob *BlobBBox) GetPredictedBBox() Rectangle {
	return blob.predictedBBox
}

func (blob *BlobBBox) GetDiagonal() float64 {
	return blob.diagonal
}

// GetTrack returns blob's current track. Be careful: this is not copy of track, but reference to it
func (blob *BlobBBox) GetTrack() []Point {
	return blob.track
}

func (blob *BlobBBox) GetMaxTrackLen() int {
	return blob.maxTrackLen
}

func (blob *BlobBBox) SetMaxTrackLen(newMaxTrackLen int) {
	blob.maxTrackLen = newMaxTrackLen
}

func (blob *BlobBBox) GetNoMatchTimes() int {
	return blob.noMatchTimes
}

func (blob *BlobBBox) IncNoMatch() {
	blob.noMatchTimes++
}

func (blob *BlobBBox) ResetNoMatch() {
	blob.noMatchTimes = 0
}

// DistanceTo returns center to center distance
func (blob *BlobBBox) DistanceTo(otherBlob *BlobBBox) float64 {
	return euclideanDistance(blob.GetCenter(), otherBlob.GetCenter())
}

// DistanceToPredicted returns distance between predicted centers
func (blob *BlobBBox) DistanceToPredicted(otherBlob *BlobBBox) float64 {
	return euclideanDistance(blob.predictedBBox.Center(), otherBlob.predictedBBox.Center())
}

// PredictNextPosition executes Kalman filter prediction step
func (blob *BlobBBox) PredictNextPosition() {
	blob.tracker.Predict()
	cx, cy, w, h := blob.tracker.GetState()
	blob.predictedBBox = Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}
}

// Update feeds the measured box of newBlob to the Kalman filter and takes the smoothed state
func (blob *BlobBBox) Update(newBlob *BlobBBox) error {
	measured := newBlob.currentBBox
	center := measured.Center()
	err := blob.tracker.Update(center.X, center.Y, measured.Width, measured.Height)
	if err != nil {
		return errors.Wrapf(err, "Can't update track %d", blob.id)
	}

	cx, cy, w, h := blob.tracker.GetState()
	blob.currentBBox = Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}
	blob.diagonal = blob.currentBBox.Diagonal()
	blob.active = true
	blob.noMatchTimes = 0

	blob.track = append(blob.track, Point{X: cx, Y: cy})
	if len(blob.track) > blob.maxTrackLen {
		blob.track = blob.track[1:]
	}
	return nil
}

// GetVelocity returns current velocity estimates (vx, vy, vw, vh) from Kalman filter
func (blob *BlobBBox) GetVelocity() (float64, float64, float64, float64) {
	return blob.tracker.GetVelocity()
}
