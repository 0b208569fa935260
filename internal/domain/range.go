package domain

import "fmt"

// IntRange describes the half-open integer range [Start, Stop) walked in
// Step increments.
type IntRange struct {
	Start int `yaml:"start" json:"start"`
	Stop  int `yaml:"stop" json:"stop"`
	Step  int `yaml:"step" json:"step"`
}

// span returns the unsigned distance to Stop and the unsigned step size, or
// ok == false when the range is empty.
func (r IntRange) span() (dist, step uint64, ok bool) {
	s := r.Step
	if s == 0 {
		s = 1
	}
	if s > 0 {
		if r.Start >= r.Stop {
			return 0, 0, false
		}
		return uint64(r.Stop) - uint64(r.Start), uint64(s), true
	}
	if r.Start <= r.Stop {
		return 0, 0, false
	}
	return uint64(r.Start) - uint64(r.Stop), uint64(-(s + 1)) + 1, true
}

// Len returns the number of values without expanding the range.
func (r IntRange) Len() int {
	dist, step, ok := r.span()
	if !ok {
		return 0
	}
	n := dist / step
	if dist%step != 0 {
		n++
	}
	if n > uint64(maxInt) {
		return maxInt
	}
	return int(n)
}

const maxInt = int(^uint(0) >> 1)

// Values expands the range. A zero Step is treated as 1. The walk never
// steps past Stop, so ranges ending near the integer limits terminate.
func (r IntRange) Values() []int {
	dist, step, ok := r.span()
	if !ok {
		return nil
	}
	out := make([]int, 0, min(r.Len(), 1024))
	v := r.Start
	for {
		out = append(out, v)
		if dist <= step {
			return out
		}
		dist -= step
		if r.Step < 0 {
			v -= int(step)
		} else {
			v += int(step)
		}
	}
}

// Validate rejects ranges that expand to nothing.
func (r IntRange) Validate() error {
	if r.Len() == 0 {
		return fmt.Errorf("range [%d, %d) step %d is empty", r.Start, r.Stop, r.Step)
	}
	return nil
}
