// internal/blobstore/codec.go
package blobstore

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Codec names accepted by NewStore and recorded in the manifest.
const (
	CodecZstd = "zstd"
	CodecXZ   = "xz"
	CodecNone = "none"
)

// Codec encodes blob data on the way to disk and decodes it on the way
// back. Digests are always computed over the decoded bytes, so the
// codec choice never affects dedup.
type Codec interface {
	Name() string
	Encode(w io.Writer, data []byte) error
	Decode(r io.Reader) (io.ReadCloser, error)
}

// CodecByName resolves a codec. Level only applies to zstd (1-22).
func CodecByName(name string, level int) (Codec, error) {
	switch name {
	case CodecZstd, "":
		if level == 0 {
			level = 5
		}
		if level < 1 || level > 22 {
			return nil, fmt.Errorf("%w: zstd level %d out of range 1-22", ErrInvalidCodec, level)
		}
		return &zstdCodec{level: level}, nil
	case CodecXZ:
		return &xzCodec{}, nil
	case CodecNone:
		return &noneCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCodec, name)
	}
}

type zstdCodec struct {
	level int
}

func (c *zstdCodec) Name() string { return CodecZstd }

func (c *zstdCodec) Encode(w io.Writer, data []byte) error {
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.level)),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return fmt.Errorf("compress blob: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close encoder: %w", err)
	}
	return nil
}

func (c *zstdCodec) Decode(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return dec.IOReadCloser(), nil
}

type xzCodec struct{}

func (c *xzCodec) Name() string { return CodecXZ }

func (c *xzCodec) Encode(w io.Writer, data []byte) error {
	enc, err := xz.WriterConfig{DictCap: 1 << 24}.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create xz writer: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return fmt.Errorf("compress blob: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close xz writer: %w", err)
	}
	return nil
}

func (c *xzCodec) Decode(r io.Reader) (io.ReadCloser, error) {
	dec, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create xz reader: %w", err)
	}
	return io.NopCloser(dec), nil
}

type noneCodec struct{}

func (c *noneCodec) Name() string { return CodecNone }

func (c *noneCodec) Encode(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}

func (c *noneCodec) Decode(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}
