package persistence

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("vectors and graphs "), 100)
	meta := Metadata{Dimension: 64, Capacity: 1000, Elements: 42}

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, meta, payload, c))

			gotMeta, gotPayload, err := Read(&buf)
			require.NoError(t, err)
			assert.Equal(t, meta, gotMeta)
			assert.Equal(t, payload, gotPayload)
		})
	}
}

func TestReadInvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Metadata{Dimension: 2}, []byte("x"), CompressionNone))

	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[0:4], 0xDEADBEEF)

	_, _, err := Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestReadInvalidVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Metadata{Dimension: 2}, []byte("x"), CompressionNone))

	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[4:8], 0x00990000)

	_, _, err := Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestReadInflatedPayloadLength(t *testing.T) {
	tests := []struct {
		name       string
		payloadLen uint64
	}{
		{name: "huge", payloadLen: 1 << 62},
		{name: "beyond int64", payloadLen: math.MaxUint64},
		{name: "slightly long", payloadLen: 1 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, Metadata{Dimension: 2}, []byte("payload-bytes"), CompressionNone))

			// PayloadLen sits after magic, version, compression+padding,
			// dimension, capacity and elements.
			data := buf.Bytes()
			binary.LittleEndian.PutUint64(data[32:40], tt.payloadLen)

			_, _, err := Read(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrTruncated)
		})
	}
}

func TestReadCorruptPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Metadata{Dimension: 2}, []byte("payload-bytes"), CompressionNone))

	data := buf.Bytes()
	// Flip a payload byte after the header.
	data[len(data)-6] ^= 0xFF

	_, _, err := Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReadTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Metadata{Dimension: 2}, bytes.Repeat([]byte("p"), 64), CompressionNone))

	data := buf.Bytes()

	for _, cut := range []int{0, 10, len(data) - 2} {
		_, _, err := Read(bytes.NewReader(data[:cut]))
		assert.ErrorIs(t, err, ErrTruncated, "cut at %d", cut)
	}
}

func TestWriteUnknownCompression(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, Metadata{}, []byte("x"), Compression(99))
	assert.ErrorIs(t, err, ErrInvalidCompression)
}

func TestCompressionString(t *testing.T) {
	assert.Equal(t, "None", CompressionNone.String())
	assert.Equal(t, "LZ4", CompressionLZ4.String())
	assert.Equal(t, "Zstd", CompressionZstd.String())
	assert.Equal(t, "Unknown", Compression(7).String())
}
