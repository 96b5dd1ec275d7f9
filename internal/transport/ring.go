// Package transport carries raw mono float32 samples from a capture
// producer to a consumer over a fixed-capacity circular buffer.
//
// The buffer supports exactly one producer and one consumer. The two
// cursors are monotonically advancing sample counters accessed only
// through atomic load/store, so the producer side never takes a lock,
// never blocks, and never allocates. That makes Write safe to call
// from a real-time audio callback. When the producer and consumer live in
// different processes the buffer is backed by a named shared-memory
// segment (see Create/Attach); for in-process use and tests NewRing
// allocates the same layout on the heap.
package transport

import (
	"sync/atomic"
	"unsafe"
)

// DefaultName is the application-scoped segment name used by the virtual
// audio driver and its consumer. Both sides must agree on it.
const DefaultName = "echotap.audio.ring"

// RingSeconds is the conventional capacity of the shared ring in
// seconds of audio. Producers size their segment with it.
const RingSeconds = 2

// header is the fixed preamble of a ring region. The field order and
// sizes are part of the producer/consumer wire contract and must not
// change: atomic 64-bit write cursor, atomic 64-bit read cursor, active
// flag, then the negotiated format.
type header struct {
	writePos   atomic.Uint64
	readPos    atomic.Uint64
	active     atomic.Uint32
	sampleRate uint32
	channels   uint32
	frameSize  uint32
}

// headerSize is the byte offset of the sample area within a region.
const headerSize = int(unsafe.Sizeof(header{})) // 32

// Ring is a single-producer/single-consumer circular sample buffer.
//
// The producer only ever advances the write cursor and the consumer only
// ever advances the read cursor. If the consumer falls behind by more
// than the capacity, the oldest unread samples are overwritten: data
// loss is acceptable, added latency is not.
type Ring struct {
	hdr  *header
	data []float32
	seg  *segment // nil for heap-backed rings

	// overruns counts consumer-side skip-aheads. Local to this mapping,
	// not part of the shared region.
	overruns atomic.Uint64
}

// regionSize returns the total byte size of a ring region holding
// capacity samples.
func regionSize(capacity int) int {
	return headerSize + capacity*4
}

// ringFromRegion lays a Ring over a raw memory region. The region must
// be at least regionSize(capacity) bytes and 8-byte aligned.
func ringFromRegion(mem []byte, capacity int) *Ring {
	hdr := (*header)(unsafe.Pointer(&mem[0]))
	data := unsafe.Slice((*float32)(unsafe.Pointer(&mem[headerSize])), capacity)
	return &Ring{hdr: hdr, data: data}
}

// NewRing allocates a heap-backed ring with the given sample capacity
// and format. Used when producer and consumer share a process.
func NewRing(capacity, sampleRate, channels int) *Ring {
	mem := make([]byte, regionSize(capacity))
	r := ringFromRegion(mem, capacity)
	r.hdr.sampleRate = uint32(sampleRate)
	r.hdr.channels = uint32(channels)
	r.hdr.frameSize = 4 // mono float32
	return r
}

// Write copies samples into the ring and advances the write cursor.
// It must only be called from the producer context. It never blocks,
// never allocates, and silently overwrites the oldest unread samples
// when the consumer is behind. Returns the number of samples written,
// which is always len(samples) unless the input exceeds the capacity,
// in which case only the newest capacity samples are kept.
func (r *Ring) Write(samples []float32) int {
	n := len(samples)
	if n == 0 {
		return 0
	}
	capacity := len(r.data)

	w := r.hdr.writePos.Load()
	if n > capacity {
		// Only the newest capacity samples can survive; the cursor
		// still advances past the dropped ones so the consumer sees
		// the lap.
		w += uint64(n - capacity)
		samples = samples[n-capacity:]
		n = capacity
	}
	idx := int(w % uint64(capacity))

	first := copy(r.data[idx:], samples)
	if first < n {
		copy(r.data, samples[first:])
	}

	// Publish after the copy so the consumer never observes samples it
	// cannot safely read.
	r.hdr.writePos.Store(w + uint64(n))
	return n
}

// Read copies up to len(dst) samples out of the ring and advances the
// read cursor. It must only be called from the consumer context.
// Partial reads are normal and not an error; a starved buffer yields 0.
// If the producer has lapped the consumer, the read position jumps
// forward to the oldest still-valid sample before copying.
func (r *Ring) Read(dst []float32) int {
	if len(dst) == 0 {
		return 0
	}
	capacity := len(r.data)

	w := r.hdr.writePos.Load()
	pos := r.hdr.readPos.Load()
	if pos > w {
		// Cursor reset by a restarted producer; resynchronize.
		pos = w
	}
	avail := w - pos
	if avail == 0 {
		r.hdr.readPos.Store(pos)
		return 0
	}
	if avail > uint64(capacity) {
		// Overrun: skip ahead, dropping the overwritten region.
		pos = w - uint64(capacity)
		avail = uint64(capacity)
		r.overruns.Add(1)
	}

	n := len(dst)
	if uint64(n) > avail {
		n = int(avail)
	}

	idx := int(pos % uint64(capacity))
	first := copy(dst[:n], r.data[idx:min(idx+n, capacity)])
	if first < n {
		copy(dst[first:n], r.data)
	}

	r.hdr.readPos.Store(pos + uint64(n))
	return n
}

// Buffered returns the number of samples currently available to read.
// Only advisory: the producer may add samples concurrently.
func (r *Ring) Buffered() int {
	w := r.hdr.writePos.Load()
	pos := r.hdr.readPos.Load()
	if pos >= w {
		return 0
	}
	avail := w - pos
	if avail > uint64(len(r.data)) {
		return len(r.data)
	}
	return int(avail)
}

// Overruns returns how many times Read found itself lapped by the
// producer and skipped forward. Counted per mapping, not shared.
func (r *Ring) Overruns() uint64 { return r.overruns.Load() }

// Capacity returns the total sample capacity of the ring.
func (r *Ring) Capacity() int { return len(r.data) }

// SampleRate returns the producer's declared sample rate.
func (r *Ring) SampleRate() int { return int(r.hdr.sampleRate) }

// Channels returns the producer's declared channel count.
func (r *Ring) Channels() int { return int(r.hdr.channels) }

// SetActive flips the shared liveness flag. The producer sets it true
// while delivering samples; either side may clear it on teardown.
func (r *Ring) SetActive(active bool) {
	if active {
		r.hdr.active.Store(1)
	} else {
		r.hdr.active.Store(0)
	}
}

// IsActive reports whether the producer has marked the ring live.
// A cheap atomic read, safe from any context.
func (r *Ring) IsActive() bool {
	return r.hdr.active.Load() != 0
}

// Close unmaps the backing segment, if any. The creator should call
// Unlink as well to remove the name; a heap-backed ring is a no-op.
func (r *Ring) Close() error {
	if r.seg == nil {
		return nil
	}
	return r.seg.close()
}
