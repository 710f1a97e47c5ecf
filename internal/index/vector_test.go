package index

import (
	"math"
	"testing"
)

func TestEncodeDecodeFloat32s(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, 3.14159, -2.71828}
	b := encodeFloat32s(in)
	if len(b) != len(in)*4 {
		t.Fatalf("encoded length = %d, want %d", len(b), len(in)*4)
	}

	out, err := decodeFloat32sInto(nil, b)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("decoded length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("element %d: %v != %v", i, in[i], out[i])
		}
	}
}

func TestDecodeFloat32sInto_ReusesBuffer(t *testing.T) {
	buf := make([]float32, 8)
	b := encodeFloat32s([]float32{1, 2, 3})

	out, err := decodeFloat32sInto(buf, b)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if &out[0] != &buf[0] {
		t.Error("buffer with sufficient capacity was not reused")
	}
}

func TestDecodeFloat32sInto_CorruptLength(t *testing.T) {
	if _, err := decodeFloat32sInto(nil, []byte{1, 2, 3}); err == nil {
		t.Error("expected error for byte length not divisible by 4")
	}
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	if got := cosine(a, []float32{1, 0}, norm(a)); math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("identical vectors cosine = %v, want 1", got)
	}
	if got := cosine(a, []float32{0, 1}, norm(a)); math.Abs(float64(got)) > 1e-6 {
		t.Errorf("orthogonal vectors cosine = %v, want 0", got)
	}
	if got := cosine(a, []float32{-1, 0}, norm(a)); math.Abs(float64(got)+1) > 1e-6 {
		t.Errorf("opposite vectors cosine = %v, want -1", got)
	}
}

func TestCosine_DegenerateInputs(t *testing.T) {
	a := []float32{1, 2, 3}
	if got := cosine(a, []float32{1, 2}, norm(a)); got != 0 {
		t.Errorf("mismatched lengths cosine = %v, want 0", got)
	}
	if got := cosine(a, []float32{0, 0, 0}, norm(a)); got != 0 {
		t.Errorf("zero vector cosine = %v, want 0", got)
	}
}
