package persistence

import "errors"

const (
	// MagicNumber identifies vecsim snapshot files (ASCII: "VSIM").
	MagicNumber = 0x5653494D
	// Version is the current snapshot format version (v1.0.0).
	Version = 0x00010000
)

// Compression selects the payload compression codec.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionLZ4:
		return "LZ4"
	case CompressionZstd:
		return "Zstd"
	default:
		return "Unknown"
	}
}

var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("unsupported snapshot version")
	ErrInvalidCompression = errors.New("unsupported compression codec")
	ErrChecksumMismatch   = errors.New("snapshot checksum mismatch")
	ErrTruncated          = errors.New("snapshot truncated")
)

// Header is the fixed-size header at the start of every snapshot.
type Header struct {
	Magic       uint32
	Version     uint32
	Compression uint8
	Padding     [3]byte
	Dimension   uint32
	Capacity    uint64
	Elements    uint64
	PayloadLen  uint64
	Reserved    [16]byte
}

// Metadata is the index geometry carried by a snapshot header.
type Metadata struct {
	Dimension int
	Capacity  int
	Elements  int
}
