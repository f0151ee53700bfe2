package mot

type distanceBlob[B Blob[B]] struct {
	underlying B
	id         int
	distance   float64
}

// Same as container/heap, typed to avoid conversions from any

type distanceHeap[B Blob[B]] []*distanceBlob[B]

func (h distanceHeap[B]) Len() int           { return len(h) }
func (h distanceHeap[B]) Less(i, j int) bool { return h[i].distance < h[j].distance }
func (h distanceHeap[B]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

// Push pushes the element x onto the heap.
// The complexity is O(log n) where n = h.Len().
func (h *distanceHeap[B]) Push(x *distanceBlob[B]) {
	*h = append(*h, x)
	h.up(h.Len() - 1)
}

// Pop removes and returns the minimum element (according to Less) from the heap.
// The complexity is O(log n) where n = h.Len().
func (h *distanceHeap[B]) Pop() *distanceBlob[B] {
	n := h.Len() - 1
	h.Swap(0, n)
	h.down(0, n)
	last := (*h)[n]
	*h = (*h)[:n]
	return last
}

func (h distanceHeap[B]) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		j = i
	}
}

func (h distanceHeap[B]) down(i0, n int) {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.Less(j2, j1) {
			j = j2
		}
		if !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		i = j
	}
}
