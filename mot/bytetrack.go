package mot

import (
	"fmt"

	"github.com/arthurkushman/go-hungarian"
	"github.com/pkg/errors"
)

// MatchingAlgorithm is for algorithm type for matching detections to tracks
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	MatchingAlgorithmHungarian MatchingAlgorithm = iota
	// MatchingAlgorithmGreedy uses a greedy algorithm for faster but potentially suboptimal assignment
	MatchingAlgorithmGreedy
)

// ByteTracker is implementation of Multi-object tracker (MOT) called ByteTrack.
//
// Barcode engines report two kinds of detections: recognized barcodes (decoded,
// high confidence) and localized-only barcodes (found but not decoded, low
// confidence). Low confidence detections may keep an existing track alive but
// never open a new one.
type ByteTracker[B Blob[B]] struct {
	// Maximum number of frames an object can be missing before it is removed
	maxDisappeared int
	// Minimum IoU for a track/detection pair to be matched
	minIoU float64
	// High detection confidence threshold
	highThresh float64
	// Low detection confidence threshold
	lowThresh float64
	algorithm MatchingAlgorithm
	ids       idSequence
	// Main storage
	Objects map[int]B
}

// DefaultByteTracker creates a ByteTracker with default parameters.
func DefaultByteTracker[B Blob[B]]() *ByteTracker[B] {
	return NewByteTracker[B](5, 0.3, 0.5, 0.3, MatchingAlgorithmHungarian)
}

// NewByteTracker creates a new instance of ByteTracker with specified parameters.
func NewByteTracker[B Blob[B]](maxDisappeared int, minIoU, highThresh, lowThresh float64, algorithm MatchingAlgorithm) *ByteTracker[B] {
	return &ByteTracker[B]{
		maxDisappeared: maxDisappeared,
		minIoU:         minIoU,
		highThresh:     highThresh,
		lowThresh:      lowThresh,
		algorithm:      algorithm,
		Objects:        make(map[int]B),
	}
}

// bboxPair pairs track ID with its predicted bounding box.
type bboxPair struct {
	ID   int
	BBox Rectangle
}

// MatchObjects matches detections of the current frame with existing tracks.
// Matched and newly registered detections get their track identifier set;
// low confidence detections left unmatched keep identifier zero.
func (bt *ByteTracker[B]) MatchObjects(detections []B, confidences []float64) error {
	if len(detections) != len(confidences) {
		return fmt.Errorf("detections and confidences arrays must have the same length. Conf array size: %d. Detections array size: %d",
			len(confidences), len(detections))
	}

	for _, track := range bt.Objects {
		track.Deactivate()
		track.PredictNextPosition()
	}

	activeTracks := make([]bboxPair, 0, len(bt.Objects))
	for id, track := range bt.Objects {
		if track.GetNoMatchTimes() < bt.maxDisappeared {
			activeTracks = append(activeTracks, bboxPair{ID: id, BBox: track.GetPredictedBBox()})
		}
	}

	matchedTracks := make(map[int]struct{})
	matchedDetections := make(map[int]struct{})

	// 1. First stage: recognized detections against every active track
	highIndices := make([]int, 0)
	for i, conf := range confidences {
		if conf >= bt.highThresh {
			highIndices = append(highIndices, i)
		}
	}
	if err := bt.associate(activeTracks, highIndices, detections, matchedTracks, matchedDetections); err != nil {
		return errors.Wrap(err, "stage 1")
	}

	// 2. Second stage: localized-only detections against remaining tracks
	remainingTracks := make([]bboxPair, 0)
	for _, pair := range activeTracks {
		if _, found := matchedTracks[pair.ID]; !found {
			remainingTracks = append(remainingTracks, pair)
		}
	}
	lowIndices := make([]int, 0)
	for i, conf := range confidences {
		if _, found := matchedDetections[i]; found {
			continue
		}
		if conf < bt.highThresh && conf >= bt.lowThresh {
			lowIndices = append(lowIndices, i)
		}
	}
	if err := bt.associate(remainingTracks, lowIndices, detections, matchedTracks, matchedDetections); err != nil {
		return errors.Wrap(err, "stage 2")
	}

	// 3. New tracks for unmatched high confidence detections
	for _, detIdx := range highIndices {
		if _, found := matchedDetections[detIdx]; found {
			continue
		}
		newBlob := detections[detIdx]
		id := bt.ids.next()
		newBlob.SetID(id)
		newBlob.Activate()
		bt.Objects[id] = newBlob
		matchedTracks[id] = struct{}{}
	}

	// 4. Age unmatched tracks and drop the ones missing for too long
	for id, track := range bt.Objects {
		if _, found := matchedTracks[id]; !found {
			track.IncNoMatch()
		}
		if track.GetNoMatchTimes() >= bt.maxDisappeared {
			delete(bt.Objects, id)
		}
	}
	return nil
}

// Tracks returns tracks matched in the latest MatchObjects call
func (bt *ByteTracker[B]) Tracks() map[int]B {
	return activeOnly(bt.Objects)
}

func (bt *ByteTracker[B]) associate(
	tracks []bboxPair,
	detectionIndices []int,
	detections []B,
	matchedTracks map[int]struct{},
	matchedDetections map[int]struct{},
) error {
	if len(tracks) == 0 || len(detectionIndices) == 0 {
		return nil
	}
	iouMatrix := make([][]float64, len(tracks))
	for i, pair := range tracks {
		row := make([]float64, len(detectionIndices))
		for j, detIdx := range detectionIndices {
			row[j] = IoU(pair.BBox, detections[detIdx].GetBBox())
		}
		iouMatrix[i] = row
	}

	var matches [][2]int
	switch bt.algorithm {
	case MatchingAlgorithmHungarian:
		matches = hungarianMatches(iouMatrix, len(tracks), len(detectionIndices))
	default:
		matches = bt.greedyMatches(iouMatrix, len(tracks), len(detectionIndices))
	}

	for _, match := range matches {
		if iouMatrix[match[0]][match[1]] < bt.minIoU {
			continue
		}
		trackID := tracks[match[0]].ID
		detIdx := detectionIndices[match[1]]
		track, ok := bt.Objects[trackID]
		if !ok {
			continue
		}
		if err := track.Update(detections[detIdx]); err != nil {
			return errors.Wrapf(err, "failed to update track %d", trackID)
		}
		track.ResetNoMatch()
		detections[detIdx].SetID(trackID)
		matchedTracks[trackID] = struct{}{}
		matchedDetections[detIdx] = struct{}{}
	}
	return nil
}

// hungarianMatches pads the IoU matrix to a square and solves the maximum assignment.
// Returns (row, column) pairs inside the original bounds.
func hungarianMatches(iouMatrix [][]float64, numTracks, numDetections int) [][2]int {
	size := maxInt(numTracks, numDetections)
	padded := make([][]float64, size)
	for i := range padded {
		padded[i] = make([]float64, size)
		if i < numTracks {
			copy(padded[i], iouMatrix[i])
		}
	}
	matches := make([][2]int, 0)
	for trackIdx, row := range hungarian.SolveMax(padded) {
		for detIdx := range row {
			if trackIdx < numTracks && detIdx < numDetections {
				matches = append(matches, [2]int{trackIdx, detIdx})
			}
			break
		}
	}
	return matches
}

func (bt *ByteTracker[B]) greedyMatches(iouMatrix [][]float64, numTracks, numDetections int) [][2]int {
	matches := make([][2]int, 0)
	taken := make(map[int]struct{})
	for i := 0; i < numTracks; i++ {
		best := -1
		bestIoU := -1.0
		for j := 0; j < numDetections; j++ {
			if _, found := taken[j]; found {
				continue
			}
			if iouMatrix[i][j] > bestIoU && iouMatrix[i][j] >= bt.minIoU {
				bestIoU = iouMatrix[i][j]
				best = j
			}
		}
		if best != -1 {
			matches = append(matches, [2]int{i, best})
			taken[best] = struct{}{}
		}
	}
	return matches
}
