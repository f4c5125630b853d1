// Package blobstore abstracts where index snapshots live: local disk,
// memory, or an object store (see the s3 and minio subpackages).
//
// The absence of a blob is reported via ErrNotFound and is not an I/O
// failure; loading a missing snapshot creates a fresh index instead of
// erroring.
package blobstore
