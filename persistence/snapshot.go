package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// crc32Table is the IEEE polynomial table. CRC32 detects accidental
// corruption only; it is not a tamper seal.
var crc32Table = crc32.MakeTable(crc32.IEEE)

// Write serializes a snapshot: header, compressed payload, CRC32 trailer
// over the compressed payload bytes.
func Write(w io.Writer, meta Metadata, payload []byte, c Compression) error {
	compressed, err := compress(payload, c)
	if err != nil {
		return err
	}

	header := Header{
		Magic:       MagicNumber,
		Version:     Version,
		Compression: uint8(c),
		Dimension:   uint32(meta.Dimension),
		Capacity:    uint64(meta.Capacity),
		Elements:    uint64(meta.Elements),
		PayloadLen:  uint64(len(compressed)),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("persistence: write header: %w", err)
	}

	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("persistence: write payload: %w", err)
	}

	checksum := crc32.Checksum(compressed, crc32Table)
	if err := binary.Write(w, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("persistence: write checksum: %w", err)
	}
	return nil
}

// Read parses and verifies a snapshot, returning the decompressed
// payload and the header metadata.
func Read(r io.Reader) (Metadata, []byte, error) {
	var header Header
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Metadata{}, nil, ErrTruncated
		}
		return Metadata{}, nil, fmt.Errorf("persistence: read header: %w", err)
	}

	if header.Magic != MagicNumber {
		return Metadata{}, nil, ErrInvalidMagic
	}
	if header.Version != Version {
		return Metadata{}, nil, ErrInvalidVersion
	}

	// The length field is as untrusted as the rest of a corrupt file.
	// Reading through a LimitReader allocates only what is actually
	// present, so an inflated claim surfaces as truncation instead of
	// an oversized allocation.
	if header.PayloadLen > math.MaxInt64 {
		return Metadata{}, nil, ErrTruncated
	}
	compressed, err := io.ReadAll(io.LimitReader(r, int64(header.PayloadLen)))
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("persistence: read payload: %w", err)
	}
	if uint64(len(compressed)) != header.PayloadLen {
		return Metadata{}, nil, ErrTruncated
	}

	var checksum uint32
	if err := binary.Read(r, binary.LittleEndian, &checksum); err != nil {
		return Metadata{}, nil, ErrTruncated
	}
	if crc32.Checksum(compressed, crc32Table) != checksum {
		return Metadata{}, nil, ErrChecksumMismatch
	}

	payload, err := decompress(compressed, Compression(header.Compression))
	if err != nil {
		return Metadata{}, nil, err
	}

	meta := Metadata{
		Dimension: int(header.Dimension),
		Capacity:  int(header.Capacity),
		Elements:  int(header.Elements),
	}
	return meta, payload, nil
}

func compress(payload []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, fmt.Errorf("persistence: lz4 compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("persistence: lz4 compress: %w", err)
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("persistence: zstd compress: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(payload, nil), nil
	default:
		return nil, ErrInvalidCompression
	}
}

func decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		payload, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("persistence: lz4 decompress: %w", err)
		}
		return payload, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("persistence: zstd decompress: %w", err)
		}
		defer dec.Close()
		payload, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("persistence: zstd decompress: %w", err)
		}
		return payload, nil
	default:
		return nil, ErrInvalidCompression
	}
}
