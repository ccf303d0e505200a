// internal/chunker/rabin.go
package chunker

import (
	"bytes"
	"fmt"
	"io"

	restic "github.com/restic/chunker"
)

// rabinWindowSize is the rolling hash window of the backing package.
// Its min-size bookkeeping underflows below this, so reject early.
const rabinWindowSize = 64

// Rabin detects boundaries with a Rabin fingerprint rolling hash, the
// scheme restic uses. Min and Max are honored; the average chunk size
// is fixed by the package's split mask, so Avg is advisory for this
// strategy. Boundaries depend on the polynomial: images that should
// dedup against each other must be built with the same one.
type Rabin struct {
	params  Params
	pol     restic.Pol
	scratch []byte
}

// NewRabin returns a Rabin detector cutting with the given irreducible
// polynomial (see chunker.RandomPolynomial in the restic package).
func NewRabin(params Params, pol restic.Pol) (*Rabin, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Min < rabinWindowSize {
		return nil, fmt.Errorf("%w: min %d below rabin window size %d",
			ErrInvalidParams, params.Min, rabinWindowSize)
	}
	if pol == 0 {
		return nil, fmt.Errorf("%w: zero polynomial", ErrInvalidParams)
	}
	return &Rabin{
		params:  params,
		pol:     pol,
		scratch: make([]byte, 0, params.Max),
	}, nil
}

// Params returns the size bounds this detector cuts with.
func (d *Rabin) Params() Params {
	return d.params
}

func (d *Rabin) Cuts(window []byte, final bool) ([]Span, error) {
	if len(window) == 0 {
		return nil, nil
	}

	rc := restic.NewWithBoundaries(bytes.NewReader(window), d.pol,
		uint(d.params.Min), uint(d.params.Max))

	var spans []Span
	for {
		c, err := rc.Next(d.scratch[:0])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("next boundary: %w", err)
		}
		spans = append(spans, Span{Offset: int(c.Start), Length: int(c.Length)})
	}

	return withholdTail(spans, d.params.Max, final), nil
}
