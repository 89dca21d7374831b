// Package archive compresses uploaded manifests before they are stored.
package archive

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Algo names the encoding of a stored payload.
type Algo string

const (
	AlgoNone Algo = "none"
	AlgoZstd Algo = "zstd"
)

// DefaultThreshold is the payload size above which content is compressed.
const DefaultThreshold = 1024

// Codec encodes manifest content with zstd. Payloads at or below the
// threshold are stored as-is. Safe for concurrent use.
type Codec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewCodec creates a Codec. threshold <= 0 selects DefaultThreshold.
func NewCodec(threshold int) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	return &Codec{
		encoder:   encoder,
		decoder:   decoder,
		threshold: threshold,
	}, nil
}

// MustCodec is NewCodec with the default threshold that panics on error.
func MustCodec() *Codec {
	c, err := NewCodec(0)
	if err != nil {
		panic(err)
	}
	return c
}

// Encode returns the stored form of data and the algorithm used.
func (c *Codec) Encode(data []byte) ([]byte, Algo) {
	if len(data) <= c.threshold {
		return data, AlgoNone
	}
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), AlgoZstd
}

// Decode reverses Encode.
func (c *Codec) Decode(payload []byte, algo Algo) ([]byte, error) {
	switch algo {
	case AlgoNone, "":
		return payload, nil
	case AlgoZstd:
		out, err := c.decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress manifest: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression algo %q", algo)
	}
}

// Close releases decoder resources.
func (c *Codec) Close() {
	c.decoder.Close()
}
