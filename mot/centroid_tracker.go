package mot

import (
	"math"

	"github.com/pkg/errors"
)

// CentroidTracker is naive implementation of Multi-object tracker (MOT) matching
// detections by the distance between centers. Unlike IoUTracker it keeps
// identity of barcodes moving fast enough for boxes of consecutive frames to
// not overlap.
type CentroidTracker[B Blob[B]] struct {
	// Threshold distance (most of time in pixels). Default 30.0
	minDistThreshold float64
	// Max no match (max number of frames when object could not be found again). Default is 75
	maxNoMatch int
	ids        idSequence
	// Main storage
	Objects map[int]B
}

// NewDefaultCentroidTracker creates default instance of CentroidTracker
func NewDefaultCentroidTracker[B Blob[B]]() *CentroidTracker[B] {
	return NewCentroidTracker[B](30.0, 75)
}

// NewCentroidTracker creates new instance of CentroidTracker
func NewCentroidTracker[B Blob[B]](minDistThreshold float64, maxNoMatch int) *CentroidTracker[B] {
	return &CentroidTracker[B]{
		minDistThreshold: minDistThreshold,
		maxNoMatch:       maxNoMatch,
		Objects:          make(map[int]B),
	}
}

// MatchObjects matches new detections to existing tracked objects.
// On return every detection carries the identifier of its track.
func (tracker *CentroidTracker[B]) MatchObjects(newObjects []B) error {
	for _, object := range tracker.Objects {
		object.Deactivate()
		object.PredictNextPosition()
	}
	priorityQueue := make(distanceHeap[B], 0, len(newObjects))
	for i := range newObjects {
		newObject := newObjects[i]
		minID := 0
		minDistance := math.MaxFloat64
		for objectID, object := range tracker.Objects {
			dist := math.Min(object.DistanceTo(newObject), object.DistanceToPredicted(newObject))
			if dist < minDistance {
				minDistance = dist
				minID = objectID
			}
		}
		priorityQueue.Push(&distanceBlob[B]{
			underlying: newObject,
			distance:   minDistance,
			id:         minID,
		})
	}

	// We need to prevent double update of objects
	reserved := make(map[int]struct{})
	toRegister := make([]B, 0)

	for priorityQueue.Len() > 0 {
		popped := priorityQueue.Pop()
		underlying := popped.underlying
		// Min-heap: an existing object is updated by its closest detection only.
		// Other detections pointing to the same object become new objects
		if _, taken := reserved[popped.id]; taken || popped.id == 0 {
			toRegister = append(toRegister, underlying)
			continue
		}
		if popped.distance >= underlying.GetDiagonal()*0.5 && popped.distance >= tracker.minDistThreshold {
			toRegister = append(toRegister, underlying)
			continue
		}
		existing, ok := tracker.Objects[popped.id]
		if !ok {
			toRegister = append(toRegister, underlying)
			continue
		}
		if err := existing.Update(underlying); err != nil {
			return errors.Wrapf(err, "Can't update blob with id %d", popped.id)
		}
		existing.ResetNoMatch()
		underlying.SetID(popped.id)
		reserved[popped.id] = struct{}{}
	}

	for _, blob := range toRegister {
		id := tracker.ids.next()
		blob.SetID(id)
		blob.Activate()
		tracker.Objects[id] = blob
		reserved[id] = struct{}{}
	}

	for id, object := range tracker.Objects {
		if _, matched := reserved[id]; !matched {
			object.IncNoMatch()
		}
		// Remove object if it was not found for a long time
		if object.GetNoMatchTimes() > tracker.maxNoMatch {
			delete(tracker.Objects, id)
		}
	}
	return nil
}

// Tracks returns tracks matched in the latest MatchObjects call
func (tracker *CentroidTracker[B]) Tracks() map[int]B {
	return activeOnly(tracker.Objects)
}
