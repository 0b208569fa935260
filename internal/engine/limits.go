package engine

import (
	"fmt"
)

// Limits bounds the size of a single optimization request.
type Limits struct {
	// MaxTrials caps |short| x |long|. Zero means unlimited.
	MaxTrials int
	// MaxWindow caps every window length. Zero means unlimited.
	MaxWindow int
}

// NewLimits creates Limits with the given caps.
func NewLimits(maxTrials, maxWindow int) Limits {
	return Limits{MaxTrials: maxTrials, MaxWindow: maxWindow}
}

// Apply validates the window ranges and truncates them so the grid fits
// MaxTrials. A short range longer than MaxTrials is cut to MaxTrials; the
// long range is then cut to MaxTrials/len(short). The returned bool reports
// whether anything was cut.
func (l Limits) Apply(short, long []int) ([]int, []int, bool, error) {
	if len(short) == 0 || len(long) == 0 {
		return nil, nil, false, fmt.Errorf("%w: empty window range", ErrBadRequest)
	}
	if l.MaxWindow > 0 {
		for _, w := range append(append([]int(nil), short...), long...) {
			if w > l.MaxWindow {
				return nil, nil, false, fmt.Errorf("%w: window %d exceeds limit %d", ErrBadRequest, w, l.MaxWindow)
			}
		}
	}
	if l.MaxTrials <= 0 || len(short)*len(long) <= l.MaxTrials {
		return short, long, false, nil
	}

	if len(short) > l.MaxTrials {
		short = short[:l.MaxTrials]
	}
	if keep := l.MaxTrials / len(short); keep < len(long) {
		long = long[:keep]
	}
	return short, long, true, nil
}
