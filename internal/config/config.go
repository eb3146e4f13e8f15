// Package config loads experiment files. A Config starts from Default and
// yaml.v3 decodes the file over it, so absent keys keep their defaults and
// unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/distill/internal/distill"
)

// Config captures one experiment: data, models, objective, optimization,
// and checkpointing.
type Config struct {
	Dataset    DatasetConfig    `yaml:"dataset"`
	Student    ModelConfig      `yaml:"student"`
	Teacher    TeacherConfig    `yaml:"teacher"`
	Distill    DistillConfig    `yaml:"distill"`
	Train      TrainConfig      `yaml:"train"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

// DatasetConfig selects the training data.
type DatasetConfig struct {
	Name      string `yaml:"name"` // cifar10, cifar100, or synthetic
	Dir       string `yaml:"dir"`  // directory with the CIFAR binary files
	BatchSize int    `yaml:"batch_size"`

	// SyntheticSamples sizes the generated dataset when Name is synthetic.
	SyntheticSamples int `yaml:"synthetic_samples"`
	SyntheticClasses int `yaml:"synthetic_classes"`
}

// ModelConfig names a zoo architecture.
type ModelConfig struct {
	Arch string `yaml:"arch"`
}

// TeacherConfig names the teacher and optionally its pretrained weights.
// With no checkpoint the teacher runs from random init, which only makes
// sense for smoke tests.
type TeacherConfig struct {
	Arch       string `yaml:"arch"`
	Checkpoint string `yaml:"checkpoint"`
}

// TrainConfig holds the optimization schedule.
type TrainConfig struct {
	Epochs      int     `yaml:"epochs"`
	Seed        int64   `yaml:"seed"`
	Optimizer   string  `yaml:"optimizer"` // sgd or dot
	LR          float32 `yaml:"lr"`
	Momentum    float32 `yaml:"momentum"`
	WeightDecay float32 `yaml:"weight_decay"`
	Delta       float32 `yaml:"delta"` // dot momentum gap
	Beta        float32 `yaml:"beta"`  // dot kd-velocity weight

	Schedule     string  `yaml:"schedule"` // multistep or cosine
	Milestones   []int   `yaml:"milestones"`
	Gamma        float32 `yaml:"gamma"`
	WarmupEpochs int     `yaml:"warmup_epochs"`
	CosineFloor  float32 `yaml:"cosine_floor"` // final lr as a fraction of base

	LogEvery int `yaml:"log_every"` // batches between TRAIN lines
}

// CheckpointConfig controls where runs save and resume.
type CheckpointConfig struct {
	Dir    string `yaml:"dir"`
	Resume string `yaml:"resume"` // checkpoint to continue from
}

// DistillConfig selects the objective. Every method keeps its own parameter
// section so switching methods never clobbers tuned values.
type DistillConfig struct {
	Method     string  `yaml:"method"`
	TaskWeight float32 `yaml:"task_weight"`

	KD       KDSection       `yaml:"kd"`
	DKD      DKDSection      `yaml:"dkd"`
	FitNet   FitNetSection   `yaml:"fitnet"`
	AT       WeightSection   `yaml:"at"`
	SP       WeightSection   `yaml:"sp"`
	NST      WeightSection   `yaml:"nst"`
	PKT      WeightSection   `yaml:"pkt"`
	RKD      RKDSection      `yaml:"rkd"`
	OFD      WeightSection   `yaml:"ofd"`
	VID      VIDSection      `yaml:"vid"`
	CRD      CRDSection      `yaml:"crd"`
	ReviewKD ReviewKDSection `yaml:"reviewkd"`
	KDSVD    KDSVDSection    `yaml:"kdsvd"`
}

// WeightSection covers the single-knob feature methods.
type WeightSection struct {
	Weight float32 `yaml:"weight"`
}

type KDSection struct {
	T      float32 `yaml:"t"`
	Weight float32 `yaml:"weight"`
}

type DKDSection struct {
	Alpha        float32 `yaml:"alpha"`
	Beta         float32 `yaml:"beta"`
	T            float32 `yaml:"t"`
	WarmupEpochs int     `yaml:"warmup_epochs"`
}

type FitNetSection struct {
	Layer  int     `yaml:"layer"`
	Weight float32 `yaml:"weight"`
}

type RKDSection struct {
	DistanceWeight float32 `yaml:"distance_weight"`
	AngleWeight    float32 `yaml:"angle_weight"`
}

type VIDSection struct {
	Weight  float32 `yaml:"weight"`
	InitVar float32 `yaml:"init_var"`
}

type CRDSection struct {
	Weight      float32 `yaml:"weight"`
	EmbedDim    int     `yaml:"embed_dim"`
	Temperature float32 `yaml:"temperature"`
	MemorySize  int     `yaml:"memory_size"`
}

type ReviewKDSection struct {
	Weight       float32 `yaml:"weight"`
	WarmupEpochs int     `yaml:"warmup_epochs"`
}

type KDSVDSection struct {
	Rank   int     `yaml:"rank"`
	Weight float32 `yaml:"weight"`
}

// Default returns the reference CIFAR recipe: SGD with momentum, multistep
// decay at epochs 150/180/210 over 240 epochs, and per-method parameters from
// the original distillation papers.
func Default() Config {
	return Config{
		Dataset: DatasetConfig{
			Name:             "cifar10",
			BatchSize:        64,
			SyntheticSamples: 512,
			SyntheticClasses: 10,
		},
		Student: ModelConfig{Arch: "cifarnet8"},
		Teacher: TeacherConfig{Arch: "cifarnet16"},
		Distill: DistillConfig{
			Method:     "kd",
			TaskWeight: 1.0,
			KD:         KDSection{T: 4, Weight: 0.9},
			DKD:        DKDSection{Alpha: 1, Beta: 8, T: 4, WarmupEpochs: 20},
			FitNet:     FitNetSection{Layer: 2, Weight: 100},
			AT:         WeightSection{Weight: 1000},
			SP:         WeightSection{Weight: 3000},
			NST:        WeightSection{Weight: 50},
			PKT:        WeightSection{Weight: 30000},
			RKD:        RKDSection{DistanceWeight: 25, AngleWeight: 50},
			OFD:        WeightSection{Weight: 0.001},
			VID:        VIDSection{Weight: 1, InitVar: 5},
			CRD:        CRDSection{Weight: 0.8, EmbedDim: 128, Temperature: 0.07, MemorySize: 16384},
			ReviewKD:   ReviewKDSection{Weight: 1, WarmupEpochs: 20},
			KDSVD:      KDSVDSection{Rank: 4, Weight: 1},
		},
		Train: TrainConfig{
			Epochs:       240,
			Seed:         42,
			Optimizer:    "sgd",
			LR:           0.05,
			Momentum:     0.9,
			WeightDecay:  5e-4,
			Beta:         1,
			Schedule:     "multistep",
			Milestones:   []int{150, 180, 210},
			Gamma:        0.1,
			WarmupEpochs: 0,
			LogEvery:     50,
		},
		Checkpoint: CheckpointConfig{Dir: "checkpoints"},
	}
}

// Load reads path and decodes it over Default. Unknown keys are errors, so
// typos fail instead of silently training the wrong experiment.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // G304: config path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Overrides carries command-line values. Zero values leave the file value in
// place.
type Overrides struct {
	DataDir       string
	DataName      string
	BatchSize     int
	Epochs        int
	Seed          int64
	LR            float32
	Method        string
	Optimizer     string
	CheckpointDir string
	Resume        string
	TeacherCkpt   string
}

// ApplyOverrides folds non-zero overrides into the config.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataDir != "" {
		c.Dataset.Dir = o.DataDir
	}
	if o.DataName != "" {
		c.Dataset.Name = o.DataName
	}
	if o.BatchSize > 0 {
		c.Dataset.BatchSize = o.BatchSize
	}
	if o.Epochs > 0 {
		c.Train.Epochs = o.Epochs
	}
	if o.Seed != 0 {
		c.Train.Seed = o.Seed
	}
	if o.LR > 0 {
		c.Train.LR = o.LR
	}
	if o.Method != "" {
		c.Distill.Method = o.Method
	}
	if o.Optimizer != "" {
		c.Train.Optimizer = o.Optimizer
	}
	if o.CheckpointDir != "" {
		c.Checkpoint.Dir = o.CheckpointDir
	}
	if o.Resume != "" {
		c.Checkpoint.Resume = o.Resume
	}
	if o.TeacherCkpt != "" {
		c.Teacher.Checkpoint = o.TeacherCkpt
	}
}

// Validate checks every config-level constraint. Numeric method and optimizer
// parameters are validated again by their constructors; this layer owns the
// enums, paths, and schedule geometry.
func (c *Config) Validate() error {
	switch c.Dataset.Name {
	case "cifar10", "cifar100":
		if c.Dataset.Dir == "" {
			return &distill.ConfigurationError{Field: "dataset.dir", Value: "",
				Reason: fmt.Sprintf("%s needs a directory with the binary batch files", c.Dataset.Name)}
		}
	case "synthetic":
		if c.Dataset.SyntheticSamples < 1 {
			return &distill.ConfigurationError{Field: "dataset.synthetic_samples",
				Value: c.Dataset.SyntheticSamples, Reason: "need at least one sample"}
		}
		if c.Dataset.SyntheticClasses < 2 {
			return &distill.ConfigurationError{Field: "dataset.synthetic_classes",
				Value: c.Dataset.SyntheticClasses, Reason: "need at least two classes"}
		}
	default:
		return &distill.ConfigurationError{Field: "dataset.name", Value: c.Dataset.Name,
			Reason: "unknown dataset (have cifar10, cifar100, synthetic)"}
	}
	if c.Dataset.BatchSize < 1 {
		return &distill.ConfigurationError{Field: "dataset.batch_size", Value: c.Dataset.BatchSize,
			Reason: "batch size must be >= 1"}
	}

	if c.Student.Arch == "" {
		return &distill.ConfigurationError{Field: "student.arch", Value: "", Reason: "student architecture is required"}
	}
	if c.Distill.Method != "vanilla" && c.Teacher.Arch == "" {
		return &distill.ConfigurationError{Field: "teacher.arch", Value: "",
			Reason: fmt.Sprintf("method %s needs a teacher", c.Distill.Method)}
	}

	if c.Train.Epochs < 1 {
		return &distill.ConfigurationError{Field: "train.epochs", Value: c.Train.Epochs,
			Reason: "epochs must be >= 1"}
	}
	switch c.Train.Optimizer {
	case "sgd", "dot":
	default:
		return &distill.ConfigurationError{Field: "train.optimizer", Value: c.Train.Optimizer,
			Reason: "unknown optimizer (have sgd, dot)"}
	}
	if c.Train.LR <= 0 {
		return &distill.ConfigurationError{Field: "train.lr", Value: c.Train.LR,
			Reason: "learning rate must be > 0"}
	}
	if c.Train.LogEvery < 1 {
		return &distill.ConfigurationError{Field: "train.log_every", Value: c.Train.LogEvery,
			Reason: "log interval must be >= 1"}
	}

	switch c.Train.Schedule {
	case "multistep":
		if c.Train.Gamma <= 0 {
			return &distill.ConfigurationError{Field: "train.gamma", Value: c.Train.Gamma,
				Reason: "decay rate must be > 0"}
		}
		if !sort.IntsAreSorted(c.Train.Milestones) {
			return &distill.ConfigurationError{Field: "train.milestones", Value: c.Train.Milestones,
				Reason: "milestones must be ascending"}
		}
		for _, m := range c.Train.Milestones {
			if m < 1 {
				return &distill.ConfigurationError{Field: "train.milestones", Value: c.Train.Milestones,
					Reason: "milestones are 1-based epochs"}
			}
		}
	case "cosine":
		if c.Train.WarmupEpochs < 0 || c.Train.WarmupEpochs >= c.Train.Epochs {
			return &distill.ConfigurationError{Field: "train.warmup_epochs", Value: c.Train.WarmupEpochs,
				Reason: "warmup must be >= 0 and shorter than the run"}
		}
		if c.Train.CosineFloor < 0 || c.Train.CosineFloor > 1 {
			return &distill.ConfigurationError{Field: "train.cosine_floor", Value: c.Train.CosineFloor,
				Reason: "floor is a fraction of the base lr in [0, 1]"}
		}
	default:
		return &distill.ConfigurationError{Field: "train.schedule", Value: c.Train.Schedule,
			Reason: "unknown schedule (have multistep, cosine)"}
	}

	if c.Checkpoint.Dir == "" {
		return &distill.ConfigurationError{Field: "checkpoint.dir", Value: "",
			Reason: "checkpoint directory is required"}
	}
	return nil
}
