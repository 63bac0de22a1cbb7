package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Gzip is the gzip codec
type Gzip struct{}

func NewGzip() *Gzip {
	return &Gzip{}
}

func (c *Gzip) Name() string { return "gzip" }

// Compress compresses data, levels outside 1-9 use the default
func (c *Gzip) Compress(data []byte, level int) ([]byte, error) {
	var buffer bytes.Buffer

	if level < 1 || level > 9 {
		level = gzip.DefaultCompression
	}

	writer, err := gzip.NewWriterLevel(&buffer, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buffer.Bytes(), nil
}

func (c *Gzip) NewReader(r io.Reader) (io.ReadCloser, error) {
	reader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	return reader, nil
}

func (c *Gzip) Extension() string { return ".gz" }

func (c *Gzip) DefaultLevel() int { return 6 }
