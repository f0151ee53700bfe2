package mot

import (
	"container/heap"
)

// IoUTracker is a naive implementation of Multi-object tracker (MOT) with IoU matching.
// Uses hybrid IoU + distance matching for better recovery when IoU is zero.
type IoUTracker[B Blob[B]] struct {
	// Max no match (max number of frames when object could not be found again)
	maxNoMatch int
	// IoU threshold for matching
	iouThreshold float64
	ids          idSequence
	// Storage for tracked objects
	Objects map[int]B
}

// NewDefaultIoUTracker creates a default instance of IoUTracker.
// Default values: maxNoMatch=75, iouThreshold=0.0
func NewDefaultIoUTracker[B Blob[B]]() *IoUTracker[B] {
	return NewIoUTracker[B](75, 0.0)
}

// NewIoUTracker creates a new instance of IoUTracker with specified parameters.
func NewIoUTracker[B Blob[B]](maxNoMatch int, iouThreshold float64) *IoUTracker[B] {
	return &IoUTracker[B]{
		maxNoMatch:   maxNoMatch,
		iouThreshold: iouThreshold,
		Objects:      make(map[int]B),
	}
}

// iouCandidate holds a detection with its best match score and target track
type iouCandidate[B Blob[B]] struct {
	score   float64
	trackID int
	blob    B
	index   int
}

// iouHeap implements heap.Interface for max-heap by score
type iouHeap[B Blob[B]] []*iouCandidate[B]

func (h iouHeap[B]) Len() int { return len(h) }

func (h iouHeap[B]) Less(i, j int) bool { return h[i].score > h[j].score }

func (h iouHeap[B]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *iouHeap[B]) Push(x any) {
	n := len(*h)
	item := x.(*iouCandidate[B])
	item.index = n
	*h = append(*h, item)
}

func (h *iouHeap[B]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// MatchObjects matches new detections to existing tracked objects.
// On return every detection carries the identifier of the track it was
// assigned to (existing or newly registered).
func (tracker *IoUTracker[B]) MatchObjects(newObjects []B) error {
	for _, object := range tracker.Objects {
		object.Deactivate()
	}

	pq := &iouHeap[B]{}
	heap.Init(pq)

	for i := range newObjects {
		newObj := newObjects[i]
		bestID := 0
		bestScore := 0.0
		for objID, object := range tracker.Objects {
			score := matchScore(object.GetPredictedBBox(), newObj.GetBBox())
			if score > bestScore {
				bestScore = score
				bestID = objID
			}
		}
		heap.Push(pq, &iouCandidate[B]{
			score:   bestScore,
			trackID: bestID,
			blob:    newObj,
		})
	}

	// Prevent double update of objects
	reserved := make(map[int]bool)
	toRegister := make([]B, 0)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*iouCandidate[B])
		if item.trackID == 0 || reserved[item.trackID] || item.score <= tracker.iouThreshold {
			toRegister = append(toRegister, item.blob)
			continue
		}
		existing, ok := tracker.Objects[item.trackID]
		if !ok {
			toRegister = append(toRegister, item.blob)
			continue
		}
		existing.PredictNextPosition()
		if err := existing.Update(item.blob); err != nil {
			return err
		}
		existing.ResetNoMatch()
		item.blob.SetID(item.trackID)
		reserved[item.trackID] = true
	}

	for _, blob := range toRegister {
		id := tracker.ids.next()
		blob.SetID(id)
		blob.Activate()
		tracker.Objects[id] = blob
		reserved[id] = true
	}

	// Unmatched tracks keep moving along their prediction
	for id, object := range tracker.Objects {
		if !reserved[id] {
			object.PredictNextPosition()
			object.IncNoMatch()
		}
	}

	for id, object := range tracker.Objects {
		if object.GetNoMatchTimes() > tracker.maxNoMatch {
			delete(tracker.Objects, id)
		}
	}
	return nil
}

// Tracks returns tracks matched in the latest MatchObjects call
func (tracker *IoUTracker[B]) Tracks() map[int]B {
	return activeOnly(tracker.Objects)
}

// matchScore combines IoU and center distance into 0-1 similarity.
// IoU dominates when boxes overlap; distance is a weak fallback otherwise.
func matchScore(predicted, detected Rectangle) float64 {
	iouValue := IoU(detected, predicted)
	distanceScore := 1.0 / (1.0 + Displacement(predicted, detected)*0.01)
	if iouValue > 0.05 {
		return iouValue*0.8 + distanceScore*0.2
	}
	return distanceScore * 0.5
}

func activeOnly[B Blob[B]](objects map[int]B) map[int]B {
	active := make(map[int]B, len(objects))
	for id, object := range objects {
		if object.IsActive() {
			active[id] = object
		}
	}
	return active
}
