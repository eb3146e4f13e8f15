// Package cpu implements the float32 NCHW kernels behind the layer and loss
// packages: matrix multiplication, im2col convolution with its analytic
// backward passes, and the pooling and upsampling kernels the feature
// distillation losses need.
//
// Kernels panic on malformed shapes. Shape errors at this level are
// programming errors; user-facing validation happens in the packages above.
package cpu
