package comparator

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNilDataset        = errors.New("dataset is nil")
	ErrFloatTolInvalid   = errors.New("float tolerance must be a finite number")
	ErrSampleSizeInvalid = errors.New("sample size must not be negative")
	ErrKeyInvalid        = errors.New("invalid key column")
)

// Options controls a comparison
type Options struct {
	// Keys selects keyed mode when non-empty
	Keys []string
	// IgnoreColumnOrder fingerprints rows over the lexicographic column order
	IgnoreColumnOrder bool
	// FloatTol sets the decimal places floats are rounded to before comparing
	FloatTol float64
	// SampleSize caps every sample list in the report
	SampleSize int
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		IgnoreColumnOrder: true,
		FloatTol:          1e-9,
		SampleSize:        50,
	}
}

// Validate rejects options that break the caller contract
func (o Options) Validate() error {
	if math.IsNaN(o.FloatTol) || math.IsInf(o.FloatTol, 0) {
		return fmt.Errorf("%w: %v", ErrFloatTolInvalid, o.FloatTol)
	}
	if o.SampleSize < 0 {
		return fmt.Errorf("%w: %d", ErrSampleSizeInvalid, o.SampleSize)
	}

	seen := make(map[string]struct{}, len(o.Keys))
	for _, k := range o.Keys {
		if k == "" {
			return fmt.Errorf("%w: empty column name", ErrKeyInvalid)
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: %q listed twice", ErrKeyInvalid, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// Keyed reports whether the options select keyed mode
func (o Options) Keyed() bool {
	return len(o.Keys) > 0
}
