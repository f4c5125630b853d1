// Package persistence defines the versioned binary envelope for index
// snapshots: a fixed header carrying the index geometry, an optionally
// compressed payload, and a CRC32 trailer for corruption detection.
//
// The payload itself is opaque here; the hnsw package owns its encoding.
package persistence
