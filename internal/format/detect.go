// internal/format/detect.go
package format

import (
	"fmt"
	"os"
)

// ProbeImage checks whether path looks like a casfs image directory:
// an index file carrying the right magic next to a blobs directory.
// It reads only the first bytes of the index, so it is cheap enough
// for CLI argument validation.
func ProbeImage(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat image: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	f, err := os.Open(IndexPath(path))
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	magic := make([]byte, MagicSize+1)
	n, err := f.Read(magic)
	if err != nil || n < len(magic) {
		return fmt.Errorf("%s: index too short to hold a superblock", path)
	}
	if string(magic[:MagicSize]) != IndexMagic {
		return fmt.Errorf("%s: not a casfs image (bad magic %q)", path, magic[:MagicSize])
	}
	if magic[MagicSize] != IndexVersion {
		return fmt.Errorf("%s: unsupported index version %d", path, magic[MagicSize])
	}
	return nil
}
