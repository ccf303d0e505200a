// pkg/build/result.go
package build

// Result contains statistics about the build operation
type Result struct {
	// Total number of regular files found
	FilesTotal int

	// Number of files successfully chunked and stored
	FilesProcessed int

	// Total input size in bytes
	InputSize uint64

	// Total bytes written to the blob directory plus the index
	StoredSize uint64

	// Chunk deduplication statistics
	TotalChunks   uint64 // Total chunks processed
	UniqueChunks  uint64 // Unique chunks stored
	DedupedChunks uint64 // Chunks that were deduplicated
	BytesSaved    uint64 // Bytes saved through deduplication
	Evictions     uint64 // Blob index cache evictions

	// List of errors encountered (non-fatal)
	Errors []error
}

// StorageRatio returns stored size over input size as a percentage
func (r *Result) StorageRatio() float64 {
	if r.InputSize == 0 {
		return 0
	}
	return float64(r.StoredSize) / float64(r.InputSize) * 100
}

// DedupRatio returns the deduplication ratio as a percentage
func (r *Result) DedupRatio() float64 {
	if r.TotalChunks == 0 {
		return 0
	}
	return float64(r.DedupedChunks) / float64(r.TotalChunks) * 100
}

// Success returns true if all files were processed without errors
func (r *Result) Success() bool {
	return len(r.Errors) == 0 && r.FilesProcessed == r.FilesTotal
}

// Accessors for the generic summary formatter

func (r *Result) GetFilesTotal() int     { return r.FilesTotal }
func (r *Result) GetFilesProcessed() int { return r.FilesProcessed }
func (r *Result) GetErrors() []error     { return r.Errors }
func (r *Result) GetInputSize() uint64   { return r.InputSize }
func (r *Result) GetStoredSize() uint64  { return r.StoredSize }
