//go:build unix

package transport

import (
	"testing"
)

func TestCreateAttach_RoundTrip(t *testing.T) {
	const name = "echotap-test.ring"
	t.Cleanup(func() { Unlink(name) })

	producer, err := Create(name, 64, 48000, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer producer.Close()

	consumer, err := Attach(name)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer consumer.Close()

	if consumer.Capacity() != 64 {
		t.Fatalf("attached capacity: got %d, want 64", consumer.Capacity())
	}
	if consumer.SampleRate() != 48000 {
		t.Fatalf("attached sample rate: got %d, want 48000", consumer.SampleRate())
	}

	// Samples written through one mapping are visible through the other.
	producer.SetActive(true)
	producer.Write([]float32{0.25, -0.5, 1})

	if !consumer.IsActive() {
		t.Fatal("active flag not visible through attached mapping")
	}
	dst := make([]float32, 4)
	n := consumer.Read(dst)
	if n != 3 {
		t.Fatalf("Read through attached mapping returned %d, want 3", n)
	}
	if dst[0] != 0.25 || dst[1] != -0.5 || dst[2] != 1 {
		t.Fatalf("unexpected samples: %v", dst[:n])
	}

	// The cursor advance must be visible back on the producer side.
	if producer.Buffered() != 0 {
		t.Fatalf("producer sees %d buffered samples after consumer drained", producer.Buffered())
	}
}

func TestAttach_MissingSegment(t *testing.T) {
	const name = "echotap-test-missing.ring"
	Unlink(name)

	if Exists(name) {
		t.Fatal("segment should not exist")
	}
	if _, err := Attach(name); err != ErrSegmentNotFound {
		t.Fatalf("Attach: got %v, want ErrSegmentNotFound", err)
	}
}

func TestExists_AfterCreate(t *testing.T) {
	const name = "echotap-test-exists.ring"
	t.Cleanup(func() { Unlink(name) })

	r, err := Create(name, 16, 48000, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer r.Close()

	if !Exists(name) {
		t.Fatal("Exists returned false for a created segment")
	}
}
