// Package data provides the input pipeline: CIFAR binary readers, a
// deterministic synthetic dataset for tests, and a batching loader with
// shuffling and prefetch.
package data

import (
	"fmt"

	"github.com/born-ml/distill/internal/tensor"
)

// Batch is one step's worth of input: NCHW float32 images and int64 labels.
type Batch struct {
	Images *tensor.RawTensor // [N, C, S, S]
	Labels *tensor.RawTensor // [N]
}

// Dataset is an in-memory labeled image collection, stored sample-major in
// NCHW float32 layout.
type Dataset struct {
	images   []float32
	labels   []int64
	channels int
	size     int
	classes  int
}

// NewDataset creates an empty dataset for square images.
func NewDataset(channels, size, classes int) (*Dataset, error) {
	if channels < 1 || size < 1 {
		return nil, fmt.Errorf("invalid sample geometry %dx%dx%d", channels, size, size)
	}
	if classes < 2 {
		return nil, fmt.Errorf("need at least two classes, got %d", classes)
	}
	return &Dataset{channels: channels, size: size, classes: classes}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.labels)
}

// NumClasses returns the label arity.
func (d *Dataset) NumClasses() int {
	return d.classes
}

// SampleShape returns the per-sample geometry (channels, spatial size).
func (d *Dataset) SampleShape() (channels, size int) {
	return d.channels, d.size
}

// sampleLen is the flat element count of one image.
func (d *Dataset) sampleLen() int {
	return d.channels * d.size * d.size
}

// add appends one sample. The image slice is copied.
func (d *Dataset) add(image []float32, label int64) error {
	if len(image) != d.sampleLen() {
		return fmt.Errorf("sample has %d elements, want %d", len(image), d.sampleLen())
	}
	if label < 0 || label >= int64(d.classes) {
		return fmt.Errorf("label %d out of range [0, %d)", label, d.classes)
	}
	d.images = append(d.images, image...)
	d.labels = append(d.labels, label)
	return nil
}

// Gather assembles the indexed samples into a batch of fresh tensors.
func (d *Dataset) Gather(indices []int) Batch {
	n := len(indices)
	stride := d.sampleLen()

	images := tensor.Zeros(tensor.Shape{n, d.channels, d.size, d.size}, tensor.Float32)
	labels := tensor.Zeros(tensor.Shape{n}, tensor.Int64)
	img := images.AsFloat32()
	lab := labels.AsInt64()
	for row, idx := range indices {
		copy(img[row*stride:][:stride], d.images[idx*stride:][:stride])
		lab[row] = d.labels[idx]
	}
	return Batch{Images: images, Labels: labels}
}
