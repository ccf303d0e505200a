// internal/chunker/chunker.go

// Package chunker turns one file's content stream into content-defined
// chunks. The split points depend only on the bytes themselves, so the
// same content produces the same chunks no matter which file or image
// it appears in, which is what makes blob-level dedup work.
//
// A Chunker accepts writes of any size and count and produces exactly
// the chunks a single whole-buffer run of its Detector would, while
// buffering at most Max bytes. One instance per file; instances share
// nothing, so many files can be chunked concurrently on independent
// goroutines.
package chunker

// Chunk is a finalized piece of one file's content stream.
//
// Within one stream chunks are contiguous and ordered: the first starts
// at offset 0 and each next one starts where the previous ended. Data
// is an owned copy; the engine never touches it again after handing it
// out.
type Chunk struct {
	Offset uint64 // absolute position of the first byte in the stream
	Length uint64
	Data   []byte
}

// Chunker is the streaming engine. It is not safe for concurrent use;
// Append, Finish and Drain must be called sequentially.
type Chunker struct {
	det      Detector
	params   Params
	window   []byte // fixed capacity, len == params.Max
	fill     int    // occupied bytes at the front of window
	offset   uint64 // bytes already finalized into chunks
	pending  []Chunk
	finished bool
}

// New returns a streaming chunker using the FastCDC detector.
func New(params Params) (*Chunker, error) {
	det, err := NewFastCDC(params)
	if err != nil {
		return nil, err
	}
	return NewWithDetector(params, det)
}

// NewWithDetector returns a streaming chunker with a custom boundary
// detection strategy. The detector must cut within the same bounds, or
// the window arithmetic below falls apart.
func NewWithDetector(params Params, det Detector) (*Chunker, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{
		det:    det,
		params: params,
		window: make([]byte, params.Max),
	}, nil
}

// Params returns the size bounds the chunker was built with.
func (c *Chunker) Params() Params {
	return c.params
}

// Append buffers p into the window, rendering chunks each time the
// window fills. The whole input is always consumed, and memory stays
// bounded at the window capacity no matter how large p is. Calling
// Append after Finish is a programming error and panics.
func (c *Chunker) Append(p []byte) (int, error) {
	if c.finished {
		panic("chunker: Append after Finish")
	}

	written := 0
	for written < len(p) {
		room := len(c.window) - c.fill
		if rest := len(p) - written; room > rest {
			room = rest
		}
		copy(c.window[c.fill:], p[written:written+room])
		c.fill += room
		written += room

		// A write landing exactly on the capacity renders now, not on
		// the next call.
		if c.fill == len(c.window) {
			if err := c.render(false); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Finish renders whatever remains in the window as final chunks,
// including a tail shorter than the minimum chunk size. Must be called
// exactly once, after the last Append; a second call panics.
func (c *Chunker) Finish() error {
	if c.finished {
		panic("chunker: Finish called twice")
	}
	c.finished = true
	return c.render(true)
}

// Drain moves all chunks produced since the previous call to the
// caller, in stream order, and leaves the queue empty. It returns nil
// when nothing is pending. Interleaving Drain with Append keeps the
// queue from growing along with the stream.
func (c *Chunker) Drain() []Chunk {
	out := c.pending
	c.pending = nil
	return out
}

// render runs boundary detection over the occupied window, materializes
// each resolved span with its absolute stream offset, and relocates the
// unresolved leftover to the window front.
func (c *Chunker) render(final bool) error {
	spans, err := c.det.Cuts(c.window[:c.fill], final)
	if err != nil {
		return err
	}
	if len(spans) == 0 {
		return nil
	}

	used := 0
	for _, s := range spans {
		data := make([]byte, s.Length)
		copy(data, c.window[used:used+s.Length])
		c.pending = append(c.pending, Chunk{
			Offset: c.offset + uint64(s.Offset),
			Length: uint64(s.Length),
			Data:   data,
		})
		used += s.Length
	}
	c.offset += uint64(used)

	// copy handles the overlap
	copy(c.window, c.window[used:c.fill])
	c.fill -= used
	return nil
}
