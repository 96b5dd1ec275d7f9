package audio

// StreamTag identifies which side of the echo coupling a frame belongs to.
type StreamTag int

const (
	// Reference tags far-end audio: what is about to be played through
	// the speakers.
	Reference StreamTag = iota

	// NearEnd tags microphone audio, potentially containing echo of the
	// reference signal.
	NearEnd
)

// String returns the human-readable name of the tag.
func (t StreamTag) String() string {
	switch t {
	case Reference:
		return "reference"
	case NearEnd:
		return "near-end"
	default:
		return "unknown"
	}
}

// Frame is the unit of work for the echo canceller: exactly FrameSize
// mono float32 samples at the pipeline rate. Partial data is never
// passed downstream.
type Frame struct {
	Tag     StreamTag
	Samples []float32
}

// Assembler accumulates normalized samples for one tagged stream and
// cuts them into exact FrameSize frames. Reference and near-end audio
// arrive from different producers at unsynchronized rates, so each
// stream gets its own assembler. Not safe for concurrent use; the
// pipeline owns it from a single goroutine.
type Assembler struct {
	tag     StreamTag
	pending []float32
}

// NewAssembler creates an assembler for the given stream.
func NewAssembler(tag StreamTag) *Assembler {
	return &Assembler{
		tag:     tag,
		pending: make([]float32, 0, 4*FrameSize),
	}
}

// AddSamples appends samples to the stream's accumulator.
func (a *Assembler) AddSamples(samples []float32) {
	a.pending = append(a.pending, samples...)
}

// TryGetFrame removes and returns exactly FrameSize samples if at least
// that many are buffered. Otherwise it returns false with no side
// effects and the caller retries on the next arrival.
func (a *Assembler) TryGetFrame() (Frame, bool) {
	if len(a.pending) < FrameSize {
		return Frame{}, false
	}
	samples := make([]float32, FrameSize)
	copy(samples, a.pending[:FrameSize])
	n := copy(a.pending, a.pending[FrameSize:])
	a.pending = a.pending[:n]
	return Frame{Tag: a.tag, Samples: samples}, true
}

// Buffered returns the number of samples waiting for assembly.
func (a *Assembler) Buffered() int {
	return len(a.pending)
}

// Reset discards all buffered samples.
func (a *Assembler) Reset() {
	a.pending = a.pending[:0]
}
