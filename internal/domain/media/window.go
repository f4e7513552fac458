package media

import (
	"math/rand/v2"
	"time"
)

// ClipPolicy selects how the clip start offset is chosen.
type ClipPolicy string

const (
	PolicyFixed  ClipPolicy = "fixed"
	PolicyRandom ClipPolicy = "random"
)

// Default clip window constants.
const (
	DefaultClipTarget  = 60 * time.Second
	DefaultClipMax     = 60 * time.Second
	DefaultClipMin     = 5 * time.Second
	DefaultMaxFraction = 1.0
)

// ClipWindow is the sub-interval of the source selected for transcoding.
type ClipWindow struct {
	Start  time.Duration
	Length time.Duration
}

// End returns the offset where the window stops.
func (w ClipWindow) End() time.Duration {
	return w.Start + w.Length
}

// Planner computes clip windows. Min must not exceed Max.
type Planner struct {
	Target      time.Duration
	Max         time.Duration
	Min         time.Duration
	MaxFraction float64
	LeadIn      time.Duration
	Policy      ClipPolicy

	// Rand returns a value in [0, n). Nil uses math/rand/v2.
	Rand func(n time.Duration) time.Duration
}

// DefaultPlanner returns the fixed-offset planner with default constants.
func DefaultPlanner() Planner {
	return Planner{
		Target:      DefaultClipTarget,
		Max:         DefaultClipMax,
		Min:         DefaultClipMin,
		MaxFraction: DefaultMaxFraction,
		Policy:      PolicyFixed,
	}
}

// Plan returns a window inside [0, total]. Sources shorter than Min produce a
// window covering the whole source.
func (p Planner) Plan(total time.Duration) ClipWindow {
	if total <= 0 {
		return ClipWindow{}
	}

	length := p.Target
	if length <= 0 {
		length = total
	}
	if p.MaxFraction > 0 && p.MaxFraction < 1 {
		if byFraction := time.Duration(float64(total) * p.MaxFraction); length > byFraction {
			length = byFraction
		}
	}
	if p.Max > 0 && length > p.Max {
		length = p.Max
	}

	floor := p.Min
	if floor > total {
		floor = total
	}
	if length < floor {
		length = floor
	}
	if length > total {
		length = total
	}

	slack := total - length
	var start time.Duration
	switch p.Policy {
	case PolicyRandom:
		if slack > 0 {
			start = p.draw(slack + 1)
		}
	default:
		start = p.LeadIn
	}
	if start < 0 {
		start = 0
	}
	if start > slack {
		start = slack
	}

	return ClipWindow{Start: start, Length: length}
}

func (p Planner) draw(n time.Duration) time.Duration {
	if p.Rand != nil {
		return p.Rand(n)
	}
	return rand.N(n)
}
