// Package flat provides exact brute-force top-k search over a dense
// row-major matrix of vectors.
//
// Unlike the hnsw graph, flat search is stateless: every call operates
// only on caller-owned buffers, so concurrent calls are independent and
// need no locking. Scores are inner products (higher is better) and the
// returned set is exact.
package flat
