package mot

// IoU calculates Intersection over Union between two rectangles.
// Zero is returned for disjoint or degenerate rectangles.
func IoU(r1, r2 Rectangle) float64 {
	xA := maxFloat64(r1.X, r2.X)
	yA := maxFloat64(r1.Y, r2.Y)
	xB := minFloat64(r1.X+r1.Width, r2.X+r2.Width)
	yB := minFloat64(r1.Y+r1.Height, r2.Y+r2.Height)

	interArea := maxFloat64(0, xB-xA) * maxFloat64(0, yB-yA)
	if interArea == 0 {
		return 0.0
	}
	unionArea := r1.Width*r1.Height + r2.Width*r2.Height - interArea
	if unionArea <= 0 {
		return 0.0
	}
	return interArea / unionArea
}

// Displacement returns how far the center of r2 moved relative to r1
func Displacement(r1, r2 Rectangle) float64 {
	return euclideanDistance(r1.Center(), r2.Center())
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
