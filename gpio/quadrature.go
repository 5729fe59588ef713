package gpio

type EncoderChannel int

const (
	ChannelA EncoderChannel = iota
	ChannelB
)

// Quadrature decodes a mechanical rotary encoder from its two contacts.
// Only two transitions count: A rising while B is high is one step
// clockwise (+1), B rising while A is high is one step counter-clockwise
// (-1). Everything else is ignored.
type Quadrature struct {
	levA, levB Level
	last       EncoderChannel
	onStep     func(int)
}

func NewQuadrature(onStep func(int)) *Quadrature {
	return &Quadrature{onStep: onStep}
}

// Seed sets the current contact levels without producing a step.
func (q *Quadrature) Seed(a, b Level) {
	q.levA, q.levB = a, b
}

// Last is the channel that changed most recently.
func (q *Quadrature) Last() EncoderChannel {
	return q.last
}

// Update records a transition on one channel and returns the resulting step.
func (q *Quadrature) Update(ch EncoderChannel, level Level) int {
	if ch == ChannelA {
		q.levA = level
	} else {
		q.levB = level
	}
	q.last = ch

	step := 0
	switch {
	case ch == ChannelA && level == High && q.levB == High:
		step = 1
	case ch == ChannelB && level == High && q.levA == High:
		step = -1
	}
	if step != 0 && q.onStep != nil {
		q.onStep(step)
	}
	return step
}
