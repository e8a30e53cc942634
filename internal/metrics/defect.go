package metrics

import (
	"math"
)

// ContinuityDefect is the Euclidean norm of every continuity defect of the
// phase stacked into one vector. Intervals without defects are skipped.
type ContinuityDefect struct {
	sumSq float64
	worst int
	peak  float64
}

func NewContinuityDefect() *ContinuityDefect { return &ContinuityDefect{worst: -1} }

func (d *ContinuityDefect) Name() string { return "defect_norm" }

func (d *ContinuityDefect) Observe(iv Interval) {
	var sq float64
	for _, v := range iv.Defect {
		sq += v * v
	}
	d.sumSq += sq
	if iv.Defect != nil && (d.worst < 0 || sq > d.peak) {
		d.worst, d.peak = iv.Index, sq
	}
}

func (d *ContinuityDefect) Value() float64 { return math.Sqrt(d.sumSq) }

// Worst is the interval with the largest defect, or -1 when none was seen.
func (d *ContinuityDefect) Worst() int { return d.worst }

func (d *ContinuityDefect) Reset() {
	d.sumSq, d.peak, d.worst = 0, 0, -1
}
