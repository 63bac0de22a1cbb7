// Package compressors provides the codecs used for compressed inputs and
// exported samples.
package compressors

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnsupportedCompression is returned when an unsupported compression type is requested
var ErrUnsupportedCompression = errors.New("unsupported compression type")

// Codec compresses exported files and decompresses loaded ones
type Codec interface {
	// Name is the value accepted by Get ("zstd", "lz4", "gzip", "none")
	Name() string

	// Compress compresses the whole input
	Compress(data []byte, level int) ([]byte, error)

	// NewReader wraps r with a decompressing reader
	NewReader(r io.Reader) (io.ReadCloser, error)

	// Extension is the file suffix for this codec, empty for none
	Extension() string

	// DefaultLevel is the level used when the caller has no preference
	DefaultLevel() int
}

// Get returns the codec for a compression name. An empty name means none.
func Get(compression string) (Codec, error) {
	switch strings.ToLower(compression) {
	case "zstd", "zst":
		return NewZstd(), nil
	case "lz4":
		return NewLZ4(), nil
	case "gzip", "gz":
		return NewGzip(), nil
	case "none", "":
		return NewNone(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, compression)
	}
}

// Detect picks the codec from a file name suffix and returns it along with
// the name stripped of that suffix. Unknown suffixes mean no compression.
func Detect(path string) (Codec, string) {
	lower := strings.ToLower(path)
	for _, c := range []Codec{NewZstd(), NewLZ4(), NewGzip()} {
		if strings.HasSuffix(lower, c.Extension()) {
			return c, path[:len(path)-len(c.Extension())]
		}
	}
	return NewNone(), path
}
