// internal/format/image.go

// Package format defines the on-disk image layout: a binary superblock
// followed by a CBOR manifest in index.casfs, and content-addressed
// data blobs under blobs/. The manifest is encoded deterministically,
// so identical trees built with identical settings produce identical
// index bytes.
package format

import (
	"encoding/hex"
	"fmt"
)

const (
	// IndexName is the manifest file inside an image directory.
	IndexName = "index.casfs"

	// BlobsDir holds the content-addressed chunk data, one file per
	// digest.
	BlobsDir = "blobs"
)

// DigestSize is the size of a blake3-256 digest in bytes.
const DigestSize = 32

// Digest identifies a blob by the blake3 hash of its uncompressed
// content.
type Digest [DigestSize]byte

// Hex returns the lowercase hex form used as the blob file name.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses the hex form back into a Digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != DigestSize*2 {
		return d, fmt.Errorf("digest %q: want %d hex chars, got %d", s, DigestSize*2, len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("digest %q: %w", s, err)
	}
	return d, nil
}

// InodeKind discriminates manifest entries.
type InodeKind uint8

const (
	KindDir InodeKind = iota + 1
	KindFile
	KindSymlink
)

func (k InodeKind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ChunkRef points at one content chunk of a regular file. References
// appear in stream order; their lengths sum to the inode size.
type ChunkRef struct {
	Digest Digest `cbor:"digest"`
	Length uint64 `cbor:"length"`
}

// Inode is one filesystem entry. Paths are slash-separated and
// relative to the image root; the inode list is sorted by path, with
// every parent directory listed before its children.
type Inode struct {
	Path   string     `cbor:"path"`
	Kind   InodeKind  `cbor:"kind"`
	Mode   uint32     `cbor:"mode"` // permission bits only
	Size   uint64     `cbor:"size,omitempty"`
	Chunks []ChunkRef `cbor:"chunks,omitempty"` // regular files only
	Target string     `cbor:"target,omitempty"` // symlinks only
}

// ChunkingConfig records how file contents were split, so later builds
// against the same blob directory keep producing dedup-compatible
// boundaries.
type ChunkingConfig struct {
	Algorithm string `cbor:"algorithm"` // "fastcdc" or "rabin"
	MinSize   int    `cbor:"min"`
	AvgSize   int    `cbor:"avg"`
	MaxSize   int    `cbor:"max"`
	Pol       uint64 `cbor:"pol,omitempty"` // rabin polynomial
}

// Chunking algorithm names stored in the manifest.
const (
	AlgorithmFastCDC = "fastcdc"
	AlgorithmRabin   = "rabin"
)

// Manifest is the decoded image index.
type Manifest struct {
	Chunking ChunkingConfig `cbor:"chunking"`
	Codec    string         `cbor:"codec"` // blob codec name: zstd, xz, none
	Inodes   []Inode        `cbor:"inodes"`
}

// Lookup returns the inode at the given slash-separated relative path,
// or nil. The root directory is the empty path.
func (m *Manifest) Lookup(path string) *Inode {
	for i := range m.Inodes {
		if m.Inodes[i].Path == path {
			return &m.Inodes[i]
		}
	}
	return nil
}
