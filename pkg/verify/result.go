// pkg/verify/result.go
package verify

import "fmt"

// Result contains comprehensive verification results
type Result struct {
	// Image metadata
	ImagePath string // Path to the verified image
	ImageSize uint64 // Total image size on disk in bytes
	Algorithm string // Chunking algorithm recorded in the index
	Codec     string // Blob codec recorded in the index

	// Inode statistics
	InodeCount int    // Total inodes in the index
	FileCount  int    // Regular files
	DirCount   int    // Directories
	LinkCount  int    // Symlinks
	EmptyFiles int    // Zero-byte files
	TotalSize  uint64 // Sum of file sizes

	// Chunk statistics
	ChunkRefs    uint64 // Total chunk references across all files
	UniqueChunks uint64 // Distinct digests referenced

	// Structural integrity
	IndexValid     bool // Index decoded and its config is sane
	StructureValid bool // Inode list passed all structural checks

	// Data integrity (only populated when VerifyData=true)
	DataVerified   bool // Whether blob re-hashing was performed
	BlobsVerified  int  // Blobs whose content matched their digest
	CorruptBlobs   int  // Blobs that failed re-hashing
	MissingBlobs   int  // Referenced blobs absent from the store
	OrphanedBlobs  int  // Stored blobs no inode references

	// Errors encountered during verification
	Errors []error
}

// DedupRatio returns the share of chunk references that were
// deduplicated, as a percentage.
func (r *Result) DedupRatio() float64 {
	if r.ChunkRefs == 0 || r.ChunkRefs <= r.UniqueChunks {
		return 0
	}
	duplicates := r.ChunkRefs - r.UniqueChunks
	return float64(duplicates) / float64(r.ChunkRefs) * 100
}

// IsValid returns true if the image passed all validation checks
func (r *Result) IsValid() bool {
	return r.IndexValid && r.StructureValid &&
		len(r.Errors) == 0 && r.MissingBlobs == 0 && r.CorruptBlobs == 0
}

// Success returns true if verification completed without critical errors
func (r *Result) Success() bool {
	return r.IsValid()
}

// Summary returns a human-readable summary of the verification result
func (r *Result) Summary() string {
	status := "VALID"
	if !r.IsValid() {
		status = "INVALID"
	}

	s := fmt.Sprintf("Image:  %s [%s]\n", r.ImagePath, status)
	s += fmt.Sprintf("Size:   %s\n", formatSize(r.ImageSize))
	s += fmt.Sprintf("Codec:  %s\n", r.Codec)
	s += fmt.Sprintf("Chunks: %s\n", r.Algorithm)
	s += fmt.Sprintf("Inodes: %d (%d files, %d dirs, %d links)\n",
		r.InodeCount, r.FileCount, r.DirCount, r.LinkCount)

	if r.TotalSize > 0 {
		s += fmt.Sprintf("Data:   %s in %d chunk refs (%d unique)\n",
			formatSize(r.TotalSize), r.ChunkRefs, r.UniqueChunks)
		if r.DedupRatio() > 0 {
			s += fmt.Sprintf("Dedup:  %.1f%%\n", r.DedupRatio())
		}
	}

	if r.DataVerified {
		s += "\nData Integrity:\n"
		s += fmt.Sprintf("  Blobs Verified: %d/%d\n", r.BlobsVerified, r.UniqueChunks)
		if r.CorruptBlobs > 0 {
			s += fmt.Sprintf("  Corrupt Blobs:  %d\n", r.CorruptBlobs)
		}
		if r.MissingBlobs > 0 {
			s += fmt.Sprintf("  Missing Blobs:  %d\n", r.MissingBlobs)
		}
		if r.OrphanedBlobs > 0 {
			s += fmt.Sprintf("  Orphaned Blobs: %d (unreferenced)\n", r.OrphanedBlobs)
		}
	}

	if len(r.Errors) > 0 {
		s += fmt.Sprintf("\nErrors (%d):\n", len(r.Errors))
		for i, err := range r.Errors {
			if i >= 10 {
				s += fmt.Sprintf("  ... and %d more errors\n", len(r.Errors)-10)
				break
			}
			s += fmt.Sprintf("  - %v\n", err)
		}
	}

	return s
}

// formatSize formats bytes to human-readable string
func formatSize(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
