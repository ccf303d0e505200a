// internal/chunker/params.go
package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned when the chunk size bounds are rejected
var ErrInvalidParams = errors.New("invalid chunk size bounds")

// Default image profile. Base images tend to weigh a few tens of
// megabytes, so chunks are sized large enough that a whole base layer
// can land in one shared chunk across images.
const (
	DefaultMinSize = 10 * 1024 * 1024
	DefaultAvgSize = 40 * 1024 * 1024
	DefaultMaxSize = 256 * 1024 * 1024
)

// Params holds the chunk size bounds for content-defined chunking.
// Max doubles as the capacity of the streaming window, so a full window
// always contains enough bytes to resolve at least one boundary.
type Params struct {
	Min int // smallest chunk a detector may cut (except the stream tail)
	Avg int // target average chunk size
	Max int // hard cut limit
}

// DefaultParams returns the image builder profile.
func DefaultParams() Params {
	return Params{Min: DefaultMinSize, Avg: DefaultAvgSize, Max: DefaultMaxSize}
}

// Validate checks the size relation. Invalid bounds must be rejected
// before any bytes are buffered.
func (p Params) Validate() error {
	if p.Min <= 0 {
		return fmt.Errorf("%w: min %d must be positive", ErrInvalidParams, p.Min)
	}
	if p.Min > p.Avg || p.Avg > p.Max {
		return fmt.Errorf("%w: need min <= avg <= max, got %d/%d/%d",
			ErrInvalidParams, p.Min, p.Avg, p.Max)
	}
	return nil
}
