// Package distance provides the similarity and distance kernels shared by
// the exact and approximate search paths.
//
// All kernels assume equal-length inputs; length checks belong to the
// calling layer. The inner-product kernels are SIMD-accelerated via
// github.com/viterin/vek.
package distance
