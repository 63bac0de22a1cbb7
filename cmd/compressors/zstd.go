package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Zstd is the Zstandard codec
type Zstd struct {
	workers int
}

func NewZstd() *Zstd {
	return &Zstd{workers: 4}
}

func (c *Zstd) Name() string { return "zstd" }

// Compress compresses data. Level 0 is fastest, 1-3 default, 4-7 better, 8+ best.
func (c *Zstd) Compress(data []byte, level int) ([]byte, error) {
	var buffer bytes.Buffer

	var encoderLevel zstd.EncoderLevel
	switch {
	case level <= 0:
		encoderLevel = zstd.SpeedFastest
	case level <= 3:
		encoderLevel = zstd.SpeedDefault
	case level <= 7:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(&buffer,
		zstd.WithEncoderLevel(encoderLevel),
		zstd.WithEncoderConcurrency(c.workers))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd encoder: %w", err)
	}
	return buffer.Bytes(), nil
}

func (c *Zstd) NewReader(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(c.workers))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return decoder.IOReadCloser(), nil
}

func (c *Zstd) Extension() string { return ".zst" }

func (c *Zstd) DefaultLevel() int { return 3 }
