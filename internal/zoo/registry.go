package zoo

import (
	"github.com/born-ml/distill/internal/distill"
)

// New builds a registered architecture by name.
//
// The registry is closed: "cifarnet16" is the teacher-capacity network
// (16/32/64 channels), "cifarnet8" the student-capacity one (8/16/32).
func New(arch string, numClasses int, seed int64) (*ConvNet, error) {
	switch arch {
	case "cifarnet8":
		return NewConvNet(ConvNetConfig{Width: 8, NumClasses: numClasses, Seed: seed})
	case "cifarnet16":
		return NewConvNet(ConvNetConfig{Width: 16, NumClasses: numClasses, Seed: seed})
	default:
		return nil, &distill.ConfigurationError{
			Field:  "arch",
			Value:  arch,
			Reason: "unknown architecture (have cifarnet8, cifarnet16)",
		}
	}
}
