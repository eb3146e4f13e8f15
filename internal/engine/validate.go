package engine

import (
	"context"

	"github.com/born-ml/distill/internal/data"
	"github.com/born-ml/distill/internal/distill"
	"github.com/born-ml/distill/internal/nn"
)

// Evaluate runs the student over a held-out loader and returns top-1 and
// top-5 accuracy percentages with the average task loss. Top-5 degrades to
// top-C when the problem has fewer than five classes. The distiller's mode
// is restored before returning.
func Evaluate(ctx context.Context, d *distill.Distiller, loader *data.Loader) (top1, top5, loss float64, err error) {
	prev := d.Mode()
	d.SetMode(distill.ModeEval)
	defer d.SetMode(prev)

	var mTop1, mTop5, mLoss AverageMeter
	for batch := range loader.Batches(ctx) {
		logits, ferr := d.ForwardEval(batch.Images)
		if ferr != nil {
			return 0, 0, 0, ferr
		}

		n := batch.Images.Shape()[0]
		k := 5
		if classes := logits.Shape()[1]; classes < k {
			k = classes
		}
		mTop1.Update(float64(nn.Accuracy(logits, batch.Labels)), n)
		mTop5.Update(float64(nn.TopKAccuracy(logits, batch.Labels, k)), n)
		mLoss.Update(float64(nn.CrossEntropy(logits, batch.Labels)), n)
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, 0, err
	}
	return mTop1.Avg, mTop5.Avg, mLoss.Avg, nil
}
