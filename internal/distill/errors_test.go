package distill

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/distill/internal/tensor"
)

func TestErrorMessages(t *testing.T) {
	sm := &ShapeMismatchError{Op: "fitnet", Want: tensor.Shape{2, 64, 8, 8}, Got: tensor.Shape{2, 32, 8, 8}}
	assert.Contains(t, sm.Error(), "fitnet")
	assert.Contains(t, sm.Error(), "shape mismatch")

	mg := &MissingGradientError{Param: "stage2.conv1.weight"}
	assert.Contains(t, mg.Error(), `"stage2.conv1.weight"`)

	ce := &ConfigurationError{Field: "kd.t", Value: float32(-1), Reason: "temperature must be > 0"}
	assert.Contains(t, ce.Error(), "kd.t")
	assert.Contains(t, ce.Error(), "temperature must be > 0")
}
