package config

import (
	"github.com/born-ml/distill/internal/distill"
)

// BuildMethod maps the configured method name onto its parameter struct.
// The switch is closed; the parameter values are validated by distill.New.
func (c *Config) BuildMethod() (distill.Method, error) {
	d := &c.Distill
	switch d.Method {
	case "vanilla":
		return distill.VanillaParams{}, nil
	case "kd":
		return distill.KDParams{T: d.KD.T, Weight: d.KD.Weight}, nil
	case "dkd":
		return distill.DKDParams{
			Alpha:        d.DKD.Alpha,
			Beta:         d.DKD.Beta,
			T:            d.DKD.T,
			WarmupEpochs: d.DKD.WarmupEpochs,
		}, nil
	case "fitnet":
		return distill.FitNetParams{Layer: d.FitNet.Layer, Weight: d.FitNet.Weight}, nil
	case "at":
		return distill.ATParams{Weight: d.AT.Weight}, nil
	case "sp":
		return distill.SPParams{Weight: d.SP.Weight}, nil
	case "nst":
		return distill.NSTParams{Weight: d.NST.Weight}, nil
	case "pkt":
		return distill.PKTParams{Weight: d.PKT.Weight}, nil
	case "rkd":
		return distill.RKDParams{
			DistanceWeight: d.RKD.DistanceWeight,
			AngleWeight:    d.RKD.AngleWeight,
		}, nil
	case "ofd":
		return distill.OFDParams{Weight: d.OFD.Weight}, nil
	case "vid":
		return distill.VIDParams{Weight: d.VID.Weight, InitVar: d.VID.InitVar}, nil
	case "crd":
		return distill.CRDParams{
			Weight:      d.CRD.Weight,
			EmbedDim:    d.CRD.EmbedDim,
			Temperature: d.CRD.Temperature,
			MemorySize:  d.CRD.MemorySize,
		}, nil
	case "reviewkd":
		return distill.ReviewKDParams{Weight: d.ReviewKD.Weight, WarmupEpochs: d.ReviewKD.WarmupEpochs}, nil
	case "kdsvd":
		return distill.KDSVDParams{Rank: d.KDSVD.Rank, Weight: d.KDSVD.Weight}, nil
	default:
		return nil, &distill.ConfigurationError{Field: "distill.method", Value: d.Method,
			Reason: "unknown method (have vanilla, kd, dkd, fitnet, at, sp, nst, pkt, rkd, ofd, vid, crd, reviewkd, kdsvd)"}
	}
}
