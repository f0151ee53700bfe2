package mot

// Blob is the interface for tracked objects.
// Self is the concrete type implementing this interface (e.g., *BlobBBox).
//
// Identifiers are plain integers handed out by the tracker. Zero means
// "not registered yet": fresh detections carry zero until a tracker either
// matches them to an existing track or registers them as a new one.
type Blob[Self any] interface {
	// Identity
	GetID() int
	SetID(newID int)

	// Geometry
	GetCenter() Point
	GetBBox() Rectangle
	GetPredictedBBox() Rectangle
	GetDiagonal() float64

	// Track history
	GetTrack() []Point
	GetMaxTrackLen() int
	SetMaxTrackLen(newMaxTrackLen int)

	// Lifecycle
	Activate()
	Deactivate()
	IsActive() bool

	// Match tracking
	GetNoMatchTimes() int
	IncNoMatch()
	ResetNoMatch()

	// Kalman operations
	PredictNextPosition()
	Update(measurement Self) error

	// Distance calculations
	DistanceTo(other Self) float64
	DistanceToPredicted(other Self) float64
}

// idSequence hands out tracker identifiers. Identifiers start at 1 and
// are never reused by the same tracker.
type idSequence struct {
	last int
}

func (seq *idSequence) next() int {
	seq.last++
	return seq.last
}
