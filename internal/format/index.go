// internal/format/index.go
package format

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/creativeyann17/go-casfs/pkg/casfs"
)

const (
	// IndexMagic identifies a casfs image index.
	IndexMagic = "CASFS001"
	MagicSize  = 8

	// IndexVersion is the current index layout version.
	IndexVersion = 0x01
)

// Index layout:
//   Magic (8):         "CASFS001"
//   Version (1):       0x01
//   Reserved (3):      zero
//   Manifest Size (8): uint64, little endian
//   Manifest:          CBOR, deterministic encoding

// encMode uses Core Deterministic Encoding (RFC 8949 4.2): sorted map
// keys, smallest integer encoding. Same manifest always produces
// identical bytes, so rebuilding an unchanged tree yields an identical
// index.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("format: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("format: CBOR decoder initialization failed: " + err.Error())
	}
}

// WriteIndex writes the superblock and CBOR manifest.
func WriteIndex(w io.Writer, m *Manifest) error {
	payload, err := encMode.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if _, err := w.Write([]byte(IndexMagic)); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	header := []byte{IndexVersion, 0, 0, 0}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(payload))); err != nil {
		return fmt.Errorf("write manifest size: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadIndex reads and validates the superblock, then decodes the
// manifest.
func ReadIndex(r io.Reader) (*Manifest, error) {
	magic := make([]byte, MagicSize)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != IndexMagic {
		return nil, fmt.Errorf("invalid magic: got %q, want %q", magic, IndexMagic)
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if header[0] != IndexVersion {
		return nil, fmt.Errorf("unsupported index version %d", header[0])
	}

	var payloadSize uint64
	if err := binary.Read(r, binary.LittleEndian, &payloadSize); err != nil {
		return nil, fmt.Errorf("read manifest size: %w", err)
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := decMode.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// WriteIndexFile writes the index into an image directory and returns
// its size in bytes.
func WriteIndexFile(imageDir string, m *Manifest) (int64, error) {
	f, err := os.Create(filepath.Join(imageDir, IndexName))
	if err != nil {
		return 0, fmt.Errorf("create index: %w", err)
	}
	counted := &casfs.CountingWriter{Writer: f}
	if err := WriteIndex(counted, m); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close index: %w", err)
	}
	return counted.Count, nil
}

// ReadIndexFile reads the index from an image directory.
func ReadIndexFile(imageDir string) (*Manifest, error) {
	f, err := os.Open(filepath.Join(imageDir, IndexName))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()
	return ReadIndex(f)
}

// IndexPath returns the path of the index inside an image directory.
func IndexPath(imageDir string) string {
	return filepath.Join(imageDir, IndexName)
}

// BlobPath returns the path of a blob inside an image directory.
func BlobPath(imageDir string, d Digest) string {
	return filepath.Join(imageDir, BlobsDir, d.Hex())
}
