package pitch

// ClientSource holds the last frequency pushed by a client-side detector.
// Sessions in push mode never poll it on a timer; it exists so the latest
// client value is observable like any other source.
type ClientSource struct {
	slot Slot
}

func NewClientSource() *ClientSource {
	return &ClientSource{}
}

func (c *ClientSource) CurrentFrequency() float64 {
	return c.slot.Load()
}

// Push records a client-supplied sample.
func (c *ClientSource) Push(hz float64) {
	c.slot.Store(hz)
}

// Pusher is implemented by sources that accept client-supplied samples.
type Pusher interface {
	Push(hz float64)
}
