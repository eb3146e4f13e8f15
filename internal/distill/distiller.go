package distill

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/distill/internal/nn"
	"github.com/born-ml/distill/internal/tensor"
)

// Mode gates which forward passes a Distiller accepts. Transitions are
// caller-driven; nothing switches modes implicitly.
type Mode int

const (
	ModeTrain Mode = iota
	ModeEval
)

// String returns "train" or "eval".
func (m Mode) String() string {
	if m == ModeEval {
		return "eval"
	}
	return "train"
}

// Config configures a Distiller.
type Config struct {
	// Method selects the distillation objective and its parameters.
	Method Method

	// TaskWeight scales the cross-entropy term. Zero is valid and trains on
	// the distillation signal alone.
	TaskWeight float32

	// Seed drives adapter and head initialization.
	Seed int64
}

// Distiller pairs a frozen teacher with a trainable student and decomposes
// every training step into a task gradient and a distillation gradient over
// the same parameter set. It never mutates parameters; updates belong to the
// optimizer.
type Distiller struct {
	teacher Model
	student Model
	cfg     Config
	loss    lossModule // nil for vanilla training

	mode  Mode
	epoch int

	// step state between ForwardTrain and Backward
	logits *tensor.RawTensor
	labels *tensor.RawTensor
	armed  bool
}

// New validates the configuration and wires the selected objective. The
// teacher may be nil only for vanilla training.
func New(teacher, student Model, cfg Config) (*Distiller, error) {
	if student == nil {
		return nil, &ConfigurationError{Field: "student", Value: nil, Reason: "student model is required"}
	}
	if cfg.Method == nil {
		return nil, &ConfigurationError{Field: "Method", Value: nil, Reason: "no method configured"}
	}
	if err := cfg.Method.Validate(); err != nil {
		return nil, err
	}
	if cfg.TaskWeight < 0 {
		return nil, &ConfigurationError{Field: "TaskWeight", Value: cfg.TaskWeight, Reason: "weight must be >= 0"}
	}

	kind := cfg.Method.Kind()
	var teacherLayout Layout
	if teacher == nil {
		if kind != KindVanilla {
			return nil, &ConfigurationError{Field: "teacher", Value: nil,
				Reason: fmt.Sprintf("method %s needs a teacher model", kind)}
		}
	} else {
		teacherLayout = teacher.Layout()
		if teacherLayout.NumClasses != student.Layout().NumClasses {
			return nil, &ConfigurationError{
				Field:  "teacher",
				Value:  fmt.Sprintf("%d vs %d classes", teacherLayout.NumClasses, student.Layout().NumClasses),
				Reason: "teacher and student must share the class set",
			}
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	loss, err := buildLoss(cfg.Method, student.Layout(), teacherLayout, rng)
	if err != nil {
		return nil, err
	}

	return &Distiller{
		teacher: teacher,
		student: student,
		cfg:     cfg,
		loss:    loss,
		mode:    ModeTrain,
		epoch:   1,
	}, nil
}

// buildLoss maps a Method value to its loss module. The switch is the closed
// registry: a Method implementation defined outside this package is rejected.
func buildLoss(m Method, student, teacher Layout, rng *rand.Rand) (lossModule, error) {
	switch p := m.(type) {
	case VanillaParams:
		return nil, nil
	case KDParams:
		return newKDLoss(p), nil
	case DKDParams:
		return newDKDLoss(p), nil
	case FitNetParams:
		return newFitNetLoss(p, student, teacher, rng)
	case ATParams:
		return newATLoss(p), nil
	case SPParams:
		return newSPLoss(p), nil
	case NSTParams:
		return newNSTLoss(p), nil
	case PKTParams:
		return newPKTLoss(p), nil
	case RKDParams:
		return newRKDLoss(p), nil
	case OFDParams:
		return newOFDLoss(p, student, teacher, rng)
	case VIDParams:
		return newVIDLoss(p, student, teacher, rng)
	case CRDParams:
		return newCRDLoss(p, student, teacher, rng)
	case ReviewKDParams:
		return newReviewKDLoss(p, student, teacher, rng)
	case KDSVDParams:
		return newKDSVDLoss(p, student, teacher, rng)
	default:
		return nil, &ConfigurationError{Field: "Method", Value: fmt.Sprintf("%T", m), Reason: "unknown method type"}
	}
}

// methodNeedsFeatures reports whether the objective consumes intermediate
// activations or embeddings in addition to logits.
func methodNeedsFeatures(k Kind) bool {
	switch k {
	case KindVanilla, KindKD, KindDKD:
		return false
	default:
		return true
	}
}

// SetMode switches between training and evaluation.
func (d *Distiller) SetMode(m Mode) { d.mode = m }

// Mode returns the current mode.
func (d *Distiller) Mode() Mode { return d.mode }

// BeginEpoch advances the 1-based epoch counter driving warmup ramps.
func (d *Distiller) BeginEpoch(epoch int) { d.epoch = epoch }

// Student returns the trainable model.
func (d *Distiller) Student() Model { return d.student }

// ForwardTrain runs both networks on one batch and returns the student
// logits together with every weighted loss term, "task" included. The
// teacher runs purely forward; its parameters receive no gradients anywhere.
func (d *Distiller) ForwardTrain(images, labels *tensor.RawTensor) (*tensor.RawTensor, LossTerms, error) {
	if d.mode != ModeTrain {
		return nil, nil, fmt.Errorf("distiller: ForwardTrain called in %s mode", d.mode)
	}

	withFeatures := methodNeedsFeatures(d.cfg.Method.Kind())
	studentOut := d.student.Forward(images, withFeatures)

	terms := LossTerms{
		"task": d.cfg.TaskWeight * nn.CrossEntropy(studentOut.Logits, labels),
	}

	if d.loss != nil {
		teacherOut := d.teacher.Forward(images, withFeatures)
		kdTerms, err := d.loss.forward(teacherOut, studentOut, labels, d.epoch)
		if err != nil {
			return nil, nil, err
		}
		for name, v := range kdTerms {
			terms[name] = v
		}
	}

	d.logits = studentOut.Logits
	d.labels = labels
	d.armed = true
	return studentOut.Logits, terms, nil
}

// ForwardEval runs the student alone and returns its logits.
func (d *Distiller) ForwardEval(images *tensor.RawTensor) (*tensor.RawTensor, error) {
	if d.mode != ModeEval {
		return nil, fmt.Errorf("distiller: ForwardEval called in %s mode", d.mode)
	}
	return d.student.Forward(images, false).Logits, nil
}

// Backward decomposes the last ForwardTrain step into two complete gradient
// maps over TrainableParameters: the cross-entropy gradient and the
// distillation gradient. Parameters a source cannot reach carry explicit
// zeros, so absence in either map always means a bug, never structure.
func (d *Distiller) Backward() (task, kd nn.Grads, err error) {
	if !d.armed {
		return nil, nil, fmt.Errorf("distiller: Backward without a pending ForwardTrain step")
	}
	d.armed = false

	dLogits := nn.CrossEntropyBackward(d.logits, d.labels)
	scale := d.cfg.TaskWeight
	data := dLogits.AsFloat32()
	for i := range data {
		data[i] *= scale
	}
	task = d.student.Backward(&OutputGrads{Logits: dLogits})

	if d.loss == nil {
		kd = nn.ZeroGrads(d.student.Parameters())
		return task, kd, nil
	}

	// Adapter and head parameters exist outside the student; the task loss
	// cannot reach them, so they get declared zeros on the task side.
	aux := d.loss.params()
	for name, g := range nn.ZeroGrads(aux) {
		task[name] = g
	}

	auxGrads := nn.Grads{}
	outGrads := d.loss.backward(auxGrads)
	kd = d.student.Backward(outGrads)
	for name, g := range auxGrads {
		kd[name] = g
	}
	for _, p := range aux {
		if _, ok := kd[p.Name()]; !ok {
			kd[p.Name()] = tensor.Zeros(p.Tensor().Shape(), p.Tensor().DType())
		}
	}
	return task, kd, nil
}

// TrainableParameters returns the full updatable set: student parameters
// plus any adapters and auxiliary heads owned by the objective.
func (d *Distiller) TrainableParameters() []*nn.Parameter {
	ps := d.student.Parameters()
	if d.loss != nil {
		ps = append(ps[:len(ps):len(ps)], d.loss.params()...)
	}
	return ps
}
