package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/distill/internal/tensor"
)

// Xavier returns a tensor initialized with the Glorot uniform distribution
// U(-b, b) where b = sqrt(6 / (fanIn + fanOut)).
//
// For convolution kernels the fan-in is inChannels*kH*kW and the fan-out is
// outChannels*kH*kW. The caller passes the rng so that initialization is
// reproducible from a seed.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.RawTensor {
	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	return tensor.Uniform(shape, -bound, bound, rng)
}
