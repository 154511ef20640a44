package hippocampus

import (
	"math"
	"testing"

	"github.com/vestige-mem/vestige/pkg/types"
)

func TestCompress_OutputLengthAndNorm(t *testing.T) {
	v := make([]float32, types.DefaultEmbeddingDim)
	for i := range v {
		v[i] = float32(i%7) - 3
	}
	out := Compress(v)
	if len(out) != types.CompressedDim {
		t.Fatalf("expected length %d, got %d", types.CompressedDim, len(out))
	}
	norm := types.Norm(out)
	if math.Abs(norm-1.0) > 1e-3 && norm != 0 {
		t.Errorf("expected unit norm, got %f", norm)
	}
}

func TestCompress_ZeroPadsShortInput(t *testing.T) {
	v := []float32{1, 0, 0}
	out := Compress(v)
	if len(out) != types.CompressedDim {
		t.Fatalf("expected length %d, got %d", types.CompressedDim, len(out))
	}
}

func TestCompress_ZeroVectorAllowed(t *testing.T) {
	v := make([]float32, types.CompressedDim)
	out := Compress(v)
	for _, x := range out {
		if x != 0 {
			t.Errorf("expected zero vector to stay zero, got nonzero element")
			break
		}
	}
}
