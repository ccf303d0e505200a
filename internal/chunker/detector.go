// internal/chunker/detector.go
package chunker

import (
	"bytes"
	"fmt"
	"io"

	fastcdc "github.com/jotfs/fastcdc-go"
)

// Span is a chunk boundary relative to the window it was detected in.
type Span struct {
	Offset int
	Length int
}

// Detector finds chunk boundaries in a window of buffered stream bytes.
//
// Cuts returns contiguous, non-overlapping spans covering a prefix of
// the window. When final is false the trailing unresolved span is
// withheld, because more bytes may still arrive and move its end; the
// one exception is a span that already reached the max chunk size,
// which no further input can extend. When final is true every remaining
// byte is covered, including a tail shorter than the minimum size.
//
// Implementations must be deterministic: identical bytes at an
// identical position since the previous cut always produce the same
// decision. That is what keeps boundaries, and therefore dedup, stable
// across files, images and hosts.
type Detector interface {
	Cuts(window []byte, final bool) ([]Span, error)
}

// FastCDC detects boundaries with the FastCDC gear-hash algorithm.
// It is the detector used for all images built by this tool.
type FastCDC struct {
	params Params
}

// NewFastCDC returns a FastCDC detector for the given size bounds.
// Bounds are validated here, including the backing library's own
// limits, so a misconfigured detector never reaches a render pass.
func NewFastCDC(params Params) (*FastCDC, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	// fastcdc-go validates its options on construction; a dry run over
	// an empty stream surfaces its stricter limits (64 byte floor etc.)
	// without processing any data.
	if _, err := fastcdc.NewChunker(bytes.NewReader(nil), fastcdc.Options{
		MinSize:     params.Min,
		AverageSize: params.Avg,
		MaxSize:     params.Max,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return &FastCDC{params: params}, nil
}

// Params returns the size bounds this detector cuts with.
func (d *FastCDC) Params() Params {
	return d.params
}

// Cuts runs FastCDC over the window. The library treats the window end
// as end of stream and closes the tail early; withholdTail undoes that
// for non-final passes.
func (d *FastCDC) Cuts(window []byte, final bool) ([]Span, error) {
	if len(window) == 0 {
		return nil, nil
	}

	fc, err := fastcdc.NewChunker(bytes.NewReader(window), fastcdc.Options{
		MinSize:     d.params.Min,
		AverageSize: d.params.Avg,
		MaxSize:     d.params.Max,
	})
	if err != nil {
		return nil, fmt.Errorf("create fastcdc chunker: %w", err)
	}

	var spans []Span
	for {
		c, err := fc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("next boundary: %w", err)
		}
		spans = append(spans, Span{Offset: c.Offset, Length: c.Length})
	}

	return withholdTail(spans, d.params.Max, final), nil
}

// withholdTail drops the trailing span on non-final passes. A cut made
// only because the window ran out of bytes is provisional until the
// real stream ends; a span of max bytes is a forced cut either way and
// stays.
func withholdTail(spans []Span, max int, final bool) []Span {
	if final || len(spans) == 0 {
		return spans
	}
	if spans[len(spans)-1].Length >= max {
		return spans
	}
	return spans[:len(spans)-1]
}
