package hippocampus

import (
	"math"

	"github.com/vestige-mem/vestige/pkg/types"
)

// Compress maps an arbitrary-length embedding down to
// types.CompressedDim dimensions by contiguous-group mean, then
// L2-normalizes the result. Inputs shorter than
// CompressedDim are zero-padded first; a zero vector is returned
// unchanged.
func Compress(v []float32) []float32 {
	const dim = types.CompressedDim

	if len(v) < dim {
		padded := make([]float32, dim)
		copy(padded, v)
		v = padded
	}

	out := make([]float32, dim)
	groupSize := float64(len(v)) / float64(dim)
	for i := 0; i < dim; i++ {
		start := int(math.Floor(float64(i) * groupSize))
		end := int(math.Floor(float64(i+1) * groupSize))
		if end <= start {
			end = start + 1
		}
		if end > len(v) {
			end = len(v)
		}
		var sum float32
		count := 0
		for j := start; j < end; j++ {
			sum += v[j]
			count++
		}
		if count > 0 {
			out[i] = sum / float32(count)
		}
	}

	return types.Normalize(out)
}
