package metrics

// ControlEffort is the integral of the squared control norm over the phase.
// Within an interval u is affine between U0 and U1, so each component
// contributes dt*(a*a + a*b + b*b)/3 exactly.
type ControlEffort struct {
	total float64
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(iv Interval) {
	dt := iv.Duration()
	for i, a := range iv.U0 {
		b := iv.U1[i]
		c.total += dt * (a*a + a*b + b*b) / 3
	}
}

func (c *ControlEffort) Value() float64 { return c.total }

func (c *ControlEffort) Reset() { c.total = 0 }
