// pkg/verify/verify_test.go
package verify

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/creativeyann17/go-casfs/internal/blobstore"
	"github.com/creativeyann17/go-casfs/internal/chunker"
	"github.com/creativeyann17/go-casfs/internal/format"
	"github.com/creativeyann17/go-casfs/pkg/build"
)

func buildImage(t *testing.T) string {
	t.Helper()
	input := t.TempDir()
	rnd := rand.New(rand.NewSource(41))
	data := make([]byte, 100*1024)
	rnd.Read(data)
	if err := os.WriteFile(filepath.Join(input, "a.bin"), data, 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(input, "sub"), 0755); err != nil {
		t.Fatalf("mkdir input: %v", err)
	}
	if err := os.WriteFile(filepath.Join(input, "sub", "b.txt"), []byte("content"), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	output := t.TempDir()
	opts := build.DefaultOptions()
	opts.InputPath = input
	opts.OutputPath = output
	opts.Params = chunker.Params{Min: 8192, Avg: 16384, Max: 32768}
	opts.Codec = blobstore.CodecNone
	opts.Quiet = true
	result, err := build.Build(opts, nil)
	if err != nil || !result.Success() {
		t.Fatalf("build image: err=%v errors=%v", err, result)
	}
	return output
}

func verifyOptions(image string) *Options {
	return &Options{InputPath: image, VerifyData: true, Quiet: true}
}

func TestVerifyValidImage(t *testing.T) {
	image := buildImage(t)

	result, err := Verify(verifyOptions(image), nil)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if !result.IsValid() {
		t.Fatalf("valid image reported invalid: %v", result.Errors)
	}
	if !result.IndexValid || !result.StructureValid || !result.DataVerified {
		t.Errorf("result flags = %+v, want all valid", result)
	}
	if result.FileCount != 2 || result.DirCount != 2 {
		t.Errorf("counts = %d files / %d dirs, want 2/2", result.FileCount, result.DirCount)
	}
	if result.BlobsVerified == 0 || uint64(result.BlobsVerified) != result.UniqueChunks {
		t.Errorf("BlobsVerified = %d, want %d", result.BlobsVerified, result.UniqueChunks)
	}
	if result.Summary() == "" {
		t.Error("Summary() returned empty string")
	}
}

func TestVerifyDetectsCorruptBlob(t *testing.T) {
	image := buildImage(t)

	// Flip a byte in the first blob.
	entries, err := os.ReadDir(filepath.Join(image, format.BlobsDir))
	if err != nil || len(entries) == 0 {
		t.Fatalf("read blobs dir: err=%v entries=%d", err, len(entries))
	}
	blobPath := filepath.Join(image, format.BlobsDir, entries[0].Name())
	data, err := os.ReadFile(blobPath)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	data[len(data)/2] ^= 0xFF
	if err := os.WriteFile(blobPath, data, 0644); err != nil {
		t.Fatalf("write blob: %v", err)
	}

	result, err := Verify(verifyOptions(image), nil)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if result.IsValid() {
		t.Fatal("corrupted image reported valid")
	}
	if result.CorruptBlobs == 0 {
		t.Error("corruption not attributed to a blob")
	}
	var found bool
	for _, e := range result.Errors {
		if errors.Is(e, ErrCorruptBlob) {
			found = true
		}
	}
	if !found {
		t.Errorf("errors = %v, want ErrCorruptBlob", result.Errors)
	}
}

func TestVerifyDetectsMissingBlob(t *testing.T) {
	image := buildImage(t)

	entries, err := os.ReadDir(filepath.Join(image, format.BlobsDir))
	if err != nil || len(entries) == 0 {
		t.Fatalf("read blobs dir: err=%v entries=%d", err, len(entries))
	}
	if err := os.Remove(filepath.Join(image, format.BlobsDir, entries[0].Name())); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	result, err := Verify(verifyOptions(image), nil)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if result.IsValid() || result.MissingBlobs == 0 {
		t.Errorf("missing blob not detected: valid=%v missing=%d", result.IsValid(), result.MissingBlobs)
	}
}

func TestVerifyDetectsOrphanedBlob(t *testing.T) {
	image := buildImage(t)

	orphan := format.BlobPath(image, format.Digest{0xAA})
	if err := os.WriteFile(orphan, []byte("stray"), 0644); err != nil {
		t.Fatalf("write orphan: %v", err)
	}

	result, err := Verify(verifyOptions(image), nil)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	// Orphans are reported but do not invalidate the image.
	if !result.IsValid() {
		t.Errorf("orphan blob invalidated the image: %v", result.Errors)
	}
	if result.OrphanedBlobs != 1 {
		t.Errorf("OrphanedBlobs = %d, want 1", result.OrphanedBlobs)
	}
}

func writeManifest(t *testing.T, manifest *format.Manifest) string {
	t.Helper()
	image := t.TempDir()
	if err := os.MkdirAll(filepath.Join(image, format.BlobsDir), 0755); err != nil {
		t.Fatalf("mkdir blobs: %v", err)
	}
	if _, err := format.WriteIndexFile(image, manifest); err != nil {
		t.Fatalf("write index: %v", err)
	}
	return image
}

func TestVerifyStructuralErrors(t *testing.T) {
	config := format.ChunkingConfig{
		Algorithm: format.AlgorithmFastCDC,
		MinSize:   8192, AvgSize: 16384, MaxSize: 32768,
	}
	root := format.Inode{Path: "", Kind: format.KindDir, Mode: 0755}

	tests := []struct {
		name     string
		manifest *format.Manifest
		wantErr  error
	}{
		{
			"missing root",
			&format.Manifest{Chunking: config, Codec: blobstore.CodecNone, Inodes: []format.Inode{
				{Path: "a.txt", Kind: format.KindFile, Mode: 0644},
			}},
			ErrMissingRoot,
		},
		{
			"unsorted inodes",
			&format.Manifest{Chunking: config, Codec: blobstore.CodecNone, Inodes: []format.Inode{
				root,
				{Path: "b.txt", Kind: format.KindFile, Mode: 0644},
				{Path: "a.txt", Kind: format.KindFile, Mode: 0644},
			}},
			ErrUnsortedInodes,
		},
		{
			"duplicate path",
			&format.Manifest{Chunking: config, Codec: blobstore.CodecNone, Inodes: []format.Inode{
				root,
				{Path: "a.txt", Kind: format.KindFile, Mode: 0644},
				{Path: "a.txt", Kind: format.KindFile, Mode: 0644},
			}},
			ErrDuplicatePath,
		},
		{
			"unsafe path",
			&format.Manifest{Chunking: config, Codec: blobstore.CodecNone, Inodes: []format.Inode{
				{Path: "", Kind: format.KindDir, Mode: 0755},
				{Path: "../escape", Kind: format.KindFile, Mode: 0644},
			}},
			ErrUnsafePath,
		},
		{
			"missing parent",
			&format.Manifest{Chunking: config, Codec: blobstore.CodecNone, Inodes: []format.Inode{
				root,
				{Path: "ghost/a.txt", Kind: format.KindFile, Mode: 0644},
			}},
			ErrMissingParent,
		},
		{
			"size mismatch",
			&format.Manifest{Chunking: config, Codec: blobstore.CodecNone, Inodes: []format.Inode{
				root,
				{Path: "a.bin", Kind: format.KindFile, Mode: 0644, Size: 100,
					Chunks: []format.ChunkRef{{Digest: format.Digest{1}, Length: 50}}},
			}},
			ErrSizeMismatch,
		},
		{
			"symlink without target",
			&format.Manifest{Chunking: config, Codec: blobstore.CodecNone, Inodes: []format.Inode{
				root,
				{Path: "link", Kind: format.KindSymlink, Mode: 0777},
			}},
			ErrBadInode,
		},
		{
			"oversized chunk",
			&format.Manifest{Chunking: config, Codec: blobstore.CodecNone, Inodes: []format.Inode{
				root,
				{Path: "a.bin", Kind: format.KindFile, Mode: 0644, Size: 65536,
					Chunks: []format.ChunkRef{{Digest: format.Digest{1}, Length: 65536}}},
			}},
			ErrChunkTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			image := writeManifest(t, tt.manifest)
			result, err := Verify(&Options{InputPath: image, Quiet: true}, nil)
			if err != nil {
				t.Fatalf("Verify() failed: %v", err)
			}
			if result.IsValid() {
				t.Fatal("broken manifest reported valid")
			}
			var found bool
			for _, e := range result.Errors {
				if errors.Is(e, tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %v, want %v", result.Errors, tt.wantErr)
			}
		})
	}
}

func TestVerifyMissingImage(t *testing.T) {
	if _, err := Verify(&Options{InputPath: filepath.Join(t.TempDir(), "nope")}, nil); err == nil {
		t.Error("Verify() on missing image did not fail")
	}
}
