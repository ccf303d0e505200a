// pkg/extract/extract.go

// Package extract restores a directory tree from a content-addressed
// image: directories first, then file contents reassembled chunk by
// chunk from the blob store, symlinks last.
package extract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/creativeyann17/go-casfs/internal/blobstore"
	"github.com/creativeyann17/go-casfs/internal/format"
	"github.com/creativeyann17/go-casfs/pkg/casfs"
)

// Extract restores the image at InputPath into the directory at OutputPath
func Extract(opts *Options, progressCb ProgressCallback) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	result := &Result{}

	manifest, err := format.ReadIndexFile(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("read image index: %w", err)
	}
	result.StoredSize = imageSize(opts.InputPath)

	codec, err := blobstore.CodecByName(manifest.Codec, 0)
	if err != nil {
		return nil, fmt.Errorf("image codec: %w", err)
	}
	store, err := blobstore.NewStore(opts.InputPath, codec, 0)
	if err != nil {
		return nil, err
	}

	for _, inode := range manifest.Inodes {
		if inode.Kind == format.KindFile {
			result.FilesTotal++
		}
	}

	if opts.Verbose {
		fmt.Printf("\nReading image...\n")
		fmt.Printf("  Inodes: %d\n", len(manifest.Inodes))
		fmt.Printf("  Files:  %d\n", result.FilesTotal)
	}

	if progressCb != nil {
		progressCb(ProgressEvent{
			Type:  EventStart,
			Total: int64(result.FilesTotal),
		})
	}

	if err := os.MkdirAll(opts.OutputPath, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	fail := func(inode *format.Inode, err error) {
		result.Errors = append(result.Errors, fmt.Errorf("%s: %w", inode.Path, err))
		if progressCb != nil && inode.Kind == format.KindFile {
			progressCb(ProgressEvent{Type: EventError, FilePath: inode.Path})
		}
	}

	// Directories first so every later inode has its parent in place.
	// The manifest is path-sorted, which puts parents before children.
	for i := range manifest.Inodes {
		inode := &manifest.Inodes[i]
		if inode.Kind != format.KindDir {
			continue
		}
		path, err := safeJoin(opts.OutputPath, inode.Path)
		if err != nil {
			fail(inode, err)
			continue
		}
		if err := os.MkdirAll(path, os.FileMode(inode.Mode)); err != nil {
			fail(inode, fmt.Errorf("create directory: %w", err))
			continue
		}
		// MkdirAll perms pass through the umask; fix them up.
		if err := os.Chmod(path, os.FileMode(inode.Mode)); err != nil {
			fail(inode, fmt.Errorf("chmod directory: %w", err))
		}
	}

	for i := range manifest.Inodes {
		inode := &manifest.Inodes[i]
		if inode.Kind != format.KindFile {
			continue
		}
		if err := restoreFile(inode, opts, store, progressCb); err != nil {
			fail(inode, err)
			continue
		}
		result.FilesProcessed++
		result.RestoredSize += inode.Size
		if progressCb != nil {
			progressCb(ProgressEvent{
				Type:     EventFileComplete,
				FilePath: inode.Path,
				Current:  int64(inode.Size),
				Total:    int64(inode.Size),
			})
		}
	}

	// Symlinks last: their targets may be files restored above, and a
	// link must never be followed while writing into the tree.
	for i := range manifest.Inodes {
		inode := &manifest.Inodes[i]
		if inode.Kind != format.KindSymlink {
			continue
		}
		path, err := safeJoin(opts.OutputPath, inode.Path)
		if err != nil {
			fail(inode, err)
			continue
		}
		if _, err := os.Lstat(path); err == nil {
			if !opts.Overwrite {
				fail(inode, ErrFileExists)
				continue
			}
			if err := os.Remove(path); err != nil {
				fail(inode, fmt.Errorf("replace symlink: %w", err))
				continue
			}
		}
		if err := os.Symlink(inode.Target, path); err != nil {
			fail(inode, fmt.Errorf("create symlink: %w", err))
		}
	}

	if progressCb != nil {
		progressCb(ProgressEvent{
			Type:       EventComplete,
			Current:    int64(result.FilesProcessed),
			Total:      int64(result.FilesTotal),
			TotalBytes: result.RestoredSize,
		})
	}

	return result, nil
}

// restoreFile reassembles one regular file from its chunk references.
func restoreFile(inode *format.Inode, opts *Options, store *blobstore.Store, progressCb ProgressCallback) error {
	path, err := safeJoin(opts.OutputPath, inode.Path)
	if err != nil {
		return err
	}

	if progressCb != nil {
		progressCb(ProgressEvent{
			Type:     EventFileStart,
			FilePath: inode.Path,
			Total:    int64(inode.Size),
		})
	}

	if !opts.Overwrite {
		if _, err := os.Lstat(path); err == nil {
			return ErrFileExists
		}
	}

	outFile, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(inode.Mode))
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	var bytesWritten uint64
	proxy := &casfs.ProgressWriter{
		Writer: outFile,
		OnWrite: func(n int) {
			bytesWritten += uint64(n)
			if progressCb != nil {
				progressCb(ProgressEvent{
					Type:         EventFileProgress,
					FilePath:     inode.Path,
					Current:      int64(bytesWritten),
					Total:        int64(inode.Size),
					CurrentBytes: bytesWritten,
				})
			}
		},
	}

	for _, ref := range inode.Chunks {
		chunk, err := store.Open(ref.Digest)
		if err != nil {
			outFile.Close()
			os.Remove(path)
			return err
		}
		n, err := io.Copy(proxy, chunk)
		chunk.Close()
		if err != nil {
			outFile.Close()
			os.Remove(path)
			return fmt.Errorf("write chunk %s: %w", ref.Digest.Hex(), err)
		}
		if uint64(n) != ref.Length {
			outFile.Close()
			os.Remove(path)
			return fmt.Errorf("chunk %s: decoded %d bytes, reference says %d", ref.Digest.Hex(), n, ref.Length)
		}
	}

	if err := outFile.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close file: %w", err)
	}

	if bytesWritten != inode.Size {
		os.Remove(path)
		return fmt.Errorf("incomplete (wrote %d, expected %d)", bytesWritten, inode.Size)
	}

	// Creation perms pass through the umask; fix them up.
	if err := os.Chmod(path, os.FileMode(inode.Mode)); err != nil {
		return fmt.Errorf("chmod file: %w", err)
	}

	if opts.Verbose {
		fmt.Printf("Restored: %s (%d bytes, %d chunks)\n", inode.Path, inode.Size, len(inode.Chunks))
	}
	return nil
}

// safeJoin joins an inode path to the output root, rejecting anything
// that would land outside it.
func safeJoin(outputDir, relPath string) (string, error) {
	if relPath == "" {
		return outputDir, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(relPath)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, relPath)
	}
	return filepath.Join(outputDir, filepath.FromSlash(relPath)), nil
}

// imageSize sums the on-disk size of an image directory.
func imageSize(imageDir string) uint64 {
	var total uint64
	filepath.Walk(imageDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
