package transport

import (
	"errors"
	"fmt"
)

// ErrSegmentNotFound is returned by Attach when no producer has created
// the named segment yet.
var ErrSegmentNotFound = errors.New("shared memory segment not found")

// Create allocates a named shared-memory segment sized for capacity
// samples, initializes its header, and returns a Ring laid over it.
// Exactly one producer should create a given name; the consumer attaches.
func Create(name string, capacity, sampleRate, channels int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid ring capacity: %d", capacity)
	}
	seg, err := mapCreate(name, regionSize(capacity))
	if err != nil {
		return nil, fmt.Errorf("failed to create segment %q: %w", name, err)
	}
	r := ringFromRegion(seg.mem, capacity)
	r.seg = seg
	r.hdr.writePos.Store(0)
	r.hdr.readPos.Store(0)
	r.hdr.active.Store(0)
	r.hdr.sampleRate = uint32(sampleRate)
	r.hdr.channels = uint32(channels)
	r.hdr.frameSize = 4
	return r, nil
}

// Attach maps an existing named segment created by a producer and
// returns a Ring over it. The sample capacity is recovered from the
// segment size. Returns ErrSegmentNotFound if the producer is absent.
func Attach(name string) (*Ring, error) {
	seg, err := mapAttach(name)
	if err != nil {
		return nil, err
	}
	if len(seg.mem) <= headerSize {
		seg.close()
		return nil, fmt.Errorf("segment %q too small: %d bytes", name, len(seg.mem))
	}
	capacity := (len(seg.mem) - headerSize) / 4
	r := ringFromRegion(seg.mem, capacity)
	r.seg = seg
	return r, nil
}

// Exists reports whether the named segment is present, without mapping
// it or mutating any state. Callers use it to decide whether the
// virtual driver is installed before prompting the user.
func Exists(name string) bool {
	return segmentExists(name)
}

// Unlink removes the segment name so a future Create starts fresh.
// Already-attached mappings remain valid until closed.
func Unlink(name string) error {
	return unlink(name)
}
