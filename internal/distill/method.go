package distill

// Kind identifies a distillation objective. The set is closed: every kind
// maps to exactly one parameter struct and one case in the loss dispatch.
type Kind int

// Supported distillation objectives.
const (
	KindVanilla Kind = iota // task loss only, no teacher signal
	KindKD
	KindDKD
	KindFitNet
	KindAT
	KindSP
	KindNST
	KindPKT
	KindRKD
	KindOFD
	KindVID
	KindCRD
	KindReviewKD
	KindKDSVD
)

// String returns the canonical lowercase method name.
func (k Kind) String() string {
	switch k {
	case KindVanilla:
		return "vanilla"
	case KindKD:
		return "kd"
	case KindDKD:
		return "dkd"
	case KindFitNet:
		return "fitnet"
	case KindAT:
		return "at"
	case KindSP:
		return "sp"
	case KindNST:
		return "nst"
	case KindPKT:
		return "pkt"
	case KindRKD:
		return "rkd"
	case KindOFD:
		return "ofd"
	case KindVID:
		return "vid"
	case KindCRD:
		return "crd"
	case KindReviewKD:
		return "reviewkd"
	case KindKDSVD:
		return "kdsvd"
	default:
		return "unknown"
	}
}

// Method selects a distillation objective together with its parameters.
// Implementations are the *Params structs below; the dispatch in
// buildLoss rejects anything else.
type Method interface {
	Kind() Kind
	Validate() error
}

// VanillaParams trains the student on the task loss alone. Useful for
// training teachers from scratch and for no-distillation baselines.
type VanillaParams struct{}

// Kind implements Method.
func (VanillaParams) Kind() Kind { return KindVanilla }

// Validate implements Method.
func (VanillaParams) Validate() error { return nil }

// KDParams configures classic logit distillation: KL divergence between
// temperature-softened teacher and student distributions, scaled by T².
type KDParams struct {
	T      float32 // softmax temperature, > 0
	Weight float32
}

// Kind implements Method.
func (KDParams) Kind() Kind { return KindKD }

// Validate implements Method.
func (p KDParams) Validate() error {
	if p.T <= 0 {
		return &ConfigurationError{Field: "kd.t", Value: p.T, Reason: "temperature must be > 0"}
	}
	if p.Weight < 0 {
		return &ConfigurationError{Field: "kd.weight", Value: p.Weight, Reason: "weight must be >= 0"}
	}
	return nil
}

// DKDParams configures decoupled knowledge distillation: the KD divergence
// split into a target-class term (weighted Alpha) and a non-target-class
// term (weighted Beta). WarmupEpochs linearly ramps the whole loss.
type DKDParams struct {
	Alpha        float32
	Beta         float32
	T            float32
	WarmupEpochs int
}

// Kind implements Method.
func (DKDParams) Kind() Kind { return KindDKD }

// Validate implements Method.
func (p DKDParams) Validate() error {
	if p.T <= 0 {
		return &ConfigurationError{Field: "dkd.t", Value: p.T, Reason: "temperature must be > 0"}
	}
	if p.Alpha < 0 || p.Beta < 0 {
		return &ConfigurationError{Field: "dkd.alpha/beta", Value: [2]float32{p.Alpha, p.Beta},
			Reason: "term weights must be >= 0"}
	}
	if p.WarmupEpochs < 0 {
		return &ConfigurationError{Field: "dkd.warmup_epochs", Value: p.WarmupEpochs,
			Reason: "warmup must be >= 0"}
	}
	return nil
}

// FitNetParams configures hint-based feature regression: MSE between an
// adapted student stage and the matching teacher stage.
type FitNetParams struct {
	Layer  int // stage index of the hint
	Weight float32
}

// Kind implements Method.
func (FitNetParams) Kind() Kind { return KindFitNet }

// Validate implements Method.
func (p FitNetParams) Validate() error {
	if p.Layer < 0 {
		return &ConfigurationError{Field: "fitnet.layer", Value: p.Layer, Reason: "layer must be >= 0"}
	}
	if p.Weight < 0 {
		return &ConfigurationError{Field: "fitnet.weight", Value: p.Weight, Reason: "weight must be >= 0"}
	}
	return nil
}

// ATParams configures attention transfer: L2 distance between normalized
// spatial attention maps (channel-wise mean of squared activations) at every
// stage.
type ATParams struct {
	Weight float32
}

// Kind implements Method.
func (ATParams) Kind() Kind { return KindAT }

// Validate implements Method.
func (p ATParams) Validate() error {
	if p.Weight < 0 {
		return &ConfigurationError{Field: "at.weight", Value: p.Weight, Reason: "weight must be >= 0"}
	}
	return nil
}

// SPParams configures similarity-preserving distillation: MSE between
// row-normalized batch Gram matrices of the last stage.
type SPParams struct {
	Weight float32
}

// Kind implements Method.
func (SPParams) Kind() Kind { return KindSP }

// Validate implements Method.
func (p SPParams) Validate() error {
	if p.Weight < 0 {
		return &ConfigurationError{Field: "sp.weight", Value: p.Weight, Reason: "weight must be >= 0"}
	}
	return nil
}

// NSTParams configures neuron selectivity transfer: squared-kernel MMD
// between the channel activation patterns of every stage.
type NSTParams struct {
	Weight float32
}

// Kind implements Method.
func (NSTParams) Kind() Kind { return KindNST }

// Validate implements Method.
func (p NSTParams) Validate() error {
	if p.Weight < 0 {
		return &ConfigurationError{Field: "nst.weight", Value: p.Weight, Reason: "weight must be >= 0"}
	}
	return nil
}

// PKTParams configures probabilistic knowledge transfer: KL divergence
// between cosine-similarity distributions over the batch embeddings.
type PKTParams struct {
	Weight float32
}

// Kind implements Method.
func (PKTParams) Kind() Kind { return KindPKT }

// Validate implements Method.
func (p PKTParams) Validate() error {
	if p.Weight < 0 {
		return &ConfigurationError{Field: "pkt.weight", Value: p.Weight, Reason: "weight must be >= 0"}
	}
	return nil
}

// RKDParams configures relational knowledge distillation on embeddings:
// Huber losses over pairwise distance structure and triplet angle structure.
type RKDParams struct {
	DistanceWeight float32
	AngleWeight    float32
}

// Kind implements Method.
func (RKDParams) Kind() Kind { return KindRKD }

// Validate implements Method.
func (p RKDParams) Validate() error {
	if p.DistanceWeight < 0 || p.AngleWeight < 0 {
		return &ConfigurationError{Field: "rkd.weights", Value: [2]float32{p.DistanceWeight, p.AngleWeight},
			Reason: "weights must be >= 0"}
	}
	return nil
}

// OFDParams configures overhaul-of-feature-distillation: partial L2 between
// adapted student stages and margin-rectified teacher stages.
type OFDParams struct {
	Weight float32
}

// Kind implements Method.
func (OFDParams) Kind() Kind { return KindOFD }

// Validate implements Method.
func (p OFDParams) Validate() error {
	if p.Weight < 0 {
		return &ConfigurationError{Field: "ofd.weight", Value: p.Weight, Reason: "weight must be >= 0"}
	}
	return nil
}

// VIDParams configures variational information distillation: Gaussian
// negative log-likelihood of teacher stages under an adapted student mean
// and a learned per-channel variance.
type VIDParams struct {
	Weight  float32
	InitVar float32 // initial predictive variance, > 0
}

// Kind implements Method.
func (VIDParams) Kind() Kind { return KindVID }

// Validate implements Method.
func (p VIDParams) Validate() error {
	if p.Weight < 0 {
		return &ConfigurationError{Field: "vid.weight", Value: p.Weight, Reason: "weight must be >= 0"}
	}
	if p.InitVar <= 0 {
		return &ConfigurationError{Field: "vid.init_var", Value: p.InitVar, Reason: "initial variance must be > 0"}
	}
	return nil
}

// CRDParams configures contrastive representation distillation: InfoNCE
// over projected embeddings against a memory bank of teacher negatives.
type CRDParams struct {
	Weight      float32
	EmbedDim    int
	Temperature float32
	MemorySize  int // negatives kept in the bank
}

// Kind implements Method.
func (CRDParams) Kind() Kind { return KindCRD }

// Validate implements Method.
func (p CRDParams) Validate() error {
	if p.Weight < 0 {
		return &ConfigurationError{Field: "crd.weight", Value: p.Weight, Reason: "weight must be >= 0"}
	}
	if p.EmbedDim <= 0 {
		return &ConfigurationError{Field: "crd.embed_dim", Value: p.EmbedDim, Reason: "embedding dim must be > 0"}
	}
	if p.Temperature <= 0 {
		return &ConfigurationError{Field: "crd.temperature", Value: p.Temperature, Reason: "temperature must be > 0"}
	}
	if p.MemorySize <= 0 {
		return &ConfigurationError{Field: "crd.memory_size", Value: p.MemorySize, Reason: "memory size must be > 0"}
	}
	return nil
}

// ReviewKDParams configures review-style distillation: student stages are
// adapted and fused top-down into a feature pyramid, compared against
// teacher stages with a multi-scale pooled MSE. WarmupEpochs linearly ramps
// the loss.
type ReviewKDParams struct {
	Weight       float32
	WarmupEpochs int
}

// Kind implements Method.
func (ReviewKDParams) Kind() Kind { return KindReviewKD }

// Validate implements Method.
func (p ReviewKDParams) Validate() error {
	if p.Weight < 0 {
		return &ConfigurationError{Field: "reviewkd.weight", Value: p.Weight, Reason: "weight must be >= 0"}
	}
	if p.WarmupEpochs < 0 {
		return &ConfigurationError{Field: "reviewkd.warmup_epochs", Value: p.WarmupEpochs,
			Reason: "warmup must be >= 0"}
	}
	return nil
}

// KDSVDParams configures subspace distillation: the last teacher stage is
// factorized per sample with a truncated SVD, and the adapted student stage
// is regressed onto the teacher's projection into that subspace.
type KDSVDParams struct {
	Rank   int // singular vectors kept
	Weight float32
}

// Kind implements Method.
func (KDSVDParams) Kind() Kind { return KindKDSVD }

// Validate implements Method.
func (p KDSVDParams) Validate() error {
	if p.Rank <= 0 {
		return &ConfigurationError{Field: "kdsvd.rank", Value: p.Rank, Reason: "rank must be > 0"}
	}
	if p.Weight < 0 {
		return &ConfigurationError{Field: "kdsvd.weight", Value: p.Weight, Reason: "weight must be >= 0"}
	}
	return nil
}
