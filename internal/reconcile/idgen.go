package reconcile

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrEmptyIDWindow means there are no known ids, or none of them is an
	// inlier, so no id can be derived.
	ErrEmptyIDWindow = errors.New("no inlier ids to derive a new id from")
	// ErrIDCollision means the derived id is already taken.
	ErrIDCollision = errors.New("derived id is already in use")
)

const (
	idWindow      = 10
	outlierFactor = 3.0
)

// IDAllocator hands out listing ids for one run. Each new id is one past
// the largest inlier among the trailing ids and is inserted right after
// that inlier, so later calls see it in their window.
type IDAllocator struct {
	ids   []int
	known map[int]bool
}

// NewIDAllocator copies ids, which should be in marketplace fetch order.
func NewIDAllocator(ids []int) *IDAllocator {
	a := &IDAllocator{
		ids:   append([]int(nil), ids...),
		known: make(map[int]bool, len(ids)),
	}
	for _, id := range ids {
		a.known[id] = true
	}
	return a
}

func (a *IDAllocator) Next() (int, error) {
	window := a.ids
	if len(window) > idWindow {
		window = window[len(window)-idWindow:]
	}

	latest, ok := maxInlier(window, outlierFactor)
	if !ok {
		return 0, ErrEmptyIDWindow
	}

	id := latest + 1
	if a.known[id] {
		return 0, fmt.Errorf("%w: %d", ErrIDCollision, id)
	}

	pos := indexOf(a.ids, latest) + 1
	a.ids = append(a.ids, 0)
	copy(a.ids[pos+1:], a.ids[pos:])
	a.ids[pos] = id
	a.known[id] = true
	return id, nil
}

func (a *IDAllocator) Known(id int) bool {
	return a.known[id]
}

// IDs returns the current id sequence including allocated ids.
func (a *IDAllocator) IDs() []int {
	return append([]int(nil), a.ids...)
}

// maxInlier returns the largest value within factor*MAD of the median.
func maxInlier(window []int, factor float64) (int, bool) {
	if len(window) == 0 {
		return 0, false
	}

	values := make([]float64, len(window))
	for i, v := range window {
		values[i] = float64(v)
	}
	med := median(values)

	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	mad := median(deviations)

	found := false
	best := 0
	for _, v := range window {
		if math.Abs(float64(v)-med) > factor*mad {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func indexOf(ids []int, id int) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return len(ids) - 1
}
