// Package s3 implements a blobstore.Store backed by Amazon S3 or any
// S3-compatible endpoint, for durable off-host index snapshots.
package s3
