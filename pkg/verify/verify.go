// pkg/verify/verify.go

// Package verify validates a content-addressed image: the index must
// decode, the inode list must be structurally sound, and optionally
// every referenced blob is re-hashed against its digest.
package verify

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/creativeyann17/go-casfs/internal/blobstore"
	"github.com/creativeyann17/go-casfs/internal/chunker"
	"github.com/creativeyann17/go-casfs/internal/format"
	"github.com/creativeyann17/go-casfs/pkg/casfs"
)

// ProgressCallback is called for various progress events
type ProgressCallback func(event ProgressEvent)

// ProgressEvent contains progress information
type ProgressEvent struct {
	Type     EventType
	FilePath string
	Current  int64
	Total    int64
}

// EventType indicates the type of progress event
type EventType int

const (
	EventStart EventType = iota
	EventBlobVerified
	EventComplete
)

// Verify validates the image at InputPath
func Verify(opts *Options, progressCb ProgressCallback) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	result := &Result{ImagePath: opts.InputPath}

	if _, err := os.Stat(opts.InputPath); err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}
	result.ImageSize = imageSize(opts.InputPath)

	manifest, err := format.ReadIndexFile(opts.InputPath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("%w: %v", ErrInvalidIndex, err))
		return result, nil
	}
	result.Algorithm = manifest.Chunking.Algorithm
	result.Codec = manifest.Codec

	verifyConfig(manifest, result)
	result.IndexValid = len(result.Errors) == 0

	refs := verifyStructure(manifest, result)
	result.StructureValid = len(result.Errors) == 0

	if opts.VerifyData && result.IndexValid {
		verifyBlobs(opts, manifest, refs, result, progressCb)
		result.DataVerified = true
	}

	if progressCb != nil {
		progressCb(ProgressEvent{
			Type:    EventComplete,
			Current: int64(result.BlobsVerified),
			Total:   int64(result.UniqueChunks),
		})
	}

	return result, nil
}

// verifyConfig checks the chunking and codec configuration.
func verifyConfig(manifest *format.Manifest, result *Result) {
	params := chunker.Params{
		Min: manifest.Chunking.MinSize,
		Avg: manifest.Chunking.AvgSize,
		Max: manifest.Chunking.MaxSize,
	}
	if err := params.Validate(); err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("%w: %v", ErrInvalidIndex, err))
	}
	switch manifest.Chunking.Algorithm {
	case format.AlgorithmFastCDC:
	case format.AlgorithmRabin:
		if manifest.Chunking.Pol == 0 {
			result.Errors = append(result.Errors, fmt.Errorf("%w: rabin algorithm without polynomial", ErrInvalidIndex))
		}
	default:
		result.Errors = append(result.Errors, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidIndex, manifest.Chunking.Algorithm))
	}
	if _, err := blobstore.CodecByName(manifest.Codec, 0); err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("%w: %v", ErrInvalidIndex, err))
	}
}

// verifyStructure checks the inode list and returns the set of
// referenced digests with their expected lengths.
func verifyStructure(manifest *format.Manifest, result *Result) map[format.Digest]uint64 {
	refs := make(map[format.Digest]uint64)
	kinds := make(map[string]format.InodeKind, len(manifest.Inodes))
	dups := casfs.NewPathTracker()
	maxChunk := uint64(manifest.Chunking.MaxSize)

	sorted := sort.SliceIsSorted(manifest.Inodes, func(i, j int) bool {
		return manifest.Inodes[i].Path < manifest.Inodes[j].Path
	})
	if !sorted {
		result.Errors = append(result.Errors, ErrUnsortedInodes)
	}

	result.InodeCount = len(manifest.Inodes)

	for i := range manifest.Inodes {
		inode := &manifest.Inodes[i]

		if dups.CheckDuplicate(inode.Path) {
			result.Errors = append(result.Errors, fmt.Errorf("%w: %q", ErrDuplicatePath, inode.Path))
			continue
		}
		kinds[inode.Path] = inode.Kind

		if inode.Path != "" && !filepath.IsLocal(filepath.FromSlash(inode.Path)) {
			result.Errors = append(result.Errors, fmt.Errorf("%w: %q", ErrUnsafePath, inode.Path))
			continue
		}

		switch inode.Kind {
		case format.KindDir:
			result.DirCount++
			if len(inode.Chunks) > 0 || inode.Target != "" {
				result.Errors = append(result.Errors, fmt.Errorf("%w: directory %q", ErrBadInode, inode.Path))
			}

		case format.KindSymlink:
			result.LinkCount++
			if inode.Target == "" || len(inode.Chunks) > 0 || inode.Size != 0 {
				result.Errors = append(result.Errors, fmt.Errorf("%w: symlink %q", ErrBadInode, inode.Path))
			}

		case format.KindFile:
			result.FileCount++
			if inode.Target != "" {
				result.Errors = append(result.Errors, fmt.Errorf("%w: file %q has a symlink target", ErrBadInode, inode.Path))
			}
			if inode.Size == 0 {
				result.EmptyFiles++
			}
			result.TotalSize += inode.Size

			var sum uint64
			for _, ref := range inode.Chunks {
				result.ChunkRefs++
				refs[ref.Digest] = ref.Length
				sum += ref.Length
				if ref.Length == 0 || (maxChunk > 0 && ref.Length > maxChunk) {
					result.Errors = append(result.Errors, fmt.Errorf("%w: %q chunk of %d bytes", ErrChunkTooLarge, inode.Path, ref.Length))
				}
			}
			if sum != inode.Size {
				result.Errors = append(result.Errors, fmt.Errorf("%w: %q (chunks %d, size %d)", ErrSizeMismatch, inode.Path, sum, inode.Size))
			}

		default:
			result.Errors = append(result.Errors, fmt.Errorf("%w: %q has kind %d", ErrBadInode, inode.Path, inode.Kind))
		}
	}

	// Every inode needs its parent directory in the index.
	if rootKind, ok := kinds[""]; !ok || rootKind != format.KindDir {
		result.Errors = append(result.Errors, ErrMissingRoot)
	}
	for path := range kinds {
		if path == "" {
			continue
		}
		parent := ""
		if idx := strings.LastIndex(path, "/"); idx >= 0 {
			parent = path[:idx]
		}
		if kind, ok := kinds[parent]; !ok || kind != format.KindDir {
			result.Errors = append(result.Errors, fmt.Errorf("%w: %q", ErrMissingParent, path))
		}
	}

	result.UniqueChunks = uint64(len(refs))
	return refs
}

// verifyBlobs re-hashes every referenced blob and scans the blob
// directory for orphans.
func verifyBlobs(opts *Options, manifest *format.Manifest, refs map[format.Digest]uint64, result *Result, progressCb ProgressCallback) {
	codec, err := blobstore.CodecByName(manifest.Codec, 0)
	if err != nil {
		return
	}
	store, err := blobstore.NewStore(opts.InputPath, codec, 0)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return
	}

	if progressCb != nil {
		progressCb(ProgressEvent{
			Type:  EventStart,
			Total: int64(len(refs)),
		})
	}

	// Deterministic order makes verbose output and progress stable.
	digests := make([]format.Digest, 0, len(refs))
	for d := range refs {
		digests = append(digests, d)
	}
	sort.Slice(digests, func(i, j int) bool {
		return digests[i].Hex() < digests[j].Hex()
	})

	for i, digest := range digests {
		blobLen, err := rehashBlob(store, digest)
		if errors.Is(err, blobstore.ErrNotFound) {
			result.MissingBlobs++
			result.Errors = append(result.Errors, fmt.Errorf("%w: %s", ErrMissingBlob, digest.Hex()))
			continue
		}
		if err != nil || blobLen != refs[digest] {
			result.CorruptBlobs++
			if err == nil {
				err = fmt.Errorf("decoded %d bytes, reference says %d", blobLen, refs[digest])
			}
			result.Errors = append(result.Errors, fmt.Errorf("%w: %s: %v", ErrCorruptBlob, digest.Hex(), err))
			continue
		}
		result.BlobsVerified++

		if opts.Verbose {
			fmt.Printf("  verified %s (%d bytes)\n", digest.Hex(), blobLen)
		}
		if progressCb != nil {
			progressCb(ProgressEvent{
				Type:     EventBlobVerified,
				FilePath: digest.Hex(),
				Current:  int64(i + 1),
				Total:    int64(len(digests)),
			})
		}
	}

	// Orphans are harmless for extraction but waste space.
	entries, err := os.ReadDir(filepath.Join(opts.InputPath, format.BlobsDir))
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		digest, err := format.ParseDigest(entry.Name())
		if err != nil {
			result.OrphanedBlobs++
			continue
		}
		if _, ok := refs[digest]; !ok {
			result.OrphanedBlobs++
		}
	}
}

// rehashBlob streams one blob through the codec and checks its content
// digest without holding the decoded chunk in memory. Returns the
// decoded length.
func rehashBlob(store *blobstore.Store, digest format.Digest) (uint64, error) {
	blob, err := store.Open(digest)
	if err != nil {
		return 0, err
	}
	defer blob.Close()

	hasher := blake3.New()
	var decoded uint64
	reader := &casfs.ProgressReader{
		Reader: blob,
		OnRead: func(n int) { decoded += uint64(n) },
	}
	if _, err := io.Copy(hasher, reader); err != nil {
		// The blob is present but its frame no longer decodes.
		return decoded, err
	}

	var sum format.Digest
	hasher.Sum(sum[:0])
	if sum != digest {
		return decoded, errors.New("content hash mismatch")
	}
	return decoded, nil
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
