// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package distill

import (
	"github.com/born-ml/distill/internal/distill"
)

// Method is a distillation method selection: one of the *Params structs
// below. Kind identifies the method; Validate checks its numeric fields.
type Method = distill.Method

// Kind enumerates the distillation methods.
type Kind = distill.Kind

// Method kinds, one per *Params struct.
const (
	KindVanilla  = distill.KindVanilla
	KindKD       = distill.KindKD
	KindDKD      = distill.KindDKD
	KindFitNet   = distill.KindFitNet
	KindAT       = distill.KindAT
	KindSP       = distill.KindSP
	KindNST      = distill.KindNST
	KindPKT      = distill.KindPKT
	KindRKD      = distill.KindRKD
	KindOFD      = distill.KindOFD
	KindVID      = distill.KindVID
	KindCRD      = distill.KindCRD
	KindReviewKD = distill.KindReviewKD
	KindKDSVD    = distill.KindKDSVD
)

// VanillaParams trains the student on the task loss alone.
type VanillaParams = distill.VanillaParams

// KDParams is classic logit distillation: KL divergence between
// temperature-softened teacher and student distributions, scaled by T².
type KDParams = distill.KDParams

// DKDParams is decoupled KD: separate target-class and non-target-class
// terms weighted by Alpha and Beta, ramped in over WarmupEpochs.
type DKDParams = distill.DKDParams

// FitNetParams regresses one student feature stage onto the teacher's
// through a trainable 1x1 adapter.
type FitNetParams = distill.FitNetParams

// ATParams matches normalized spatial attention maps across all stages.
type ATParams = distill.ATParams

// SPParams preserves the batch-wise similarity matrix of pooled features.
type SPParams = distill.SPParams

// NSTParams aligns neuron activation patterns with a polynomial-kernel MMD.
type NSTParams = distill.NSTParams

// PKTParams matches cosine-similarity distributions over embeddings.
type PKTParams = distill.PKTParams

// RKDParams matches pairwise distances and triplet angles between
// embeddings, weighted separately.
type RKDParams = distill.RKDParams

// OFDParams distills pre-activation features through a margin ReLU.
type OFDParams = distill.OFDParams

// VIDParams maximizes a variational lower bound on feature mutual
// information with learned per-channel variances.
type VIDParams = distill.VIDParams

// CRDParams is contrastive representation distillation against a seeded
// memory bank of negative embeddings.
type CRDParams = distill.CRDParams

// ReviewKDParams fuses deeper student stages into shallower ones before
// matching the teacher, ramped in over WarmupEpochs.
type ReviewKDParams = distill.ReviewKDParams

// KDSVDParams matches the top-Rank left singular subspace of each stage's
// unfolded feature matrix.
type KDSVDParams = distill.KDSVDParams
