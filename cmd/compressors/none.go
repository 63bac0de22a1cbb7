package compressors

import "io"

// None passes data through unchanged
type None struct{}

func NewNone() *None {
	return &None{}
}

func (c *None) Name() string { return "none" }

func (c *None) Compress(data []byte, _ int) ([]byte, error) {
	return data, nil
}

func (c *None) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

func (c *None) Extension() string { return "" }

func (c *None) DefaultLevel() int { return 0 }
