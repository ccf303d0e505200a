// pkg/extract/result.go
package extract

// Result contains statistics about the extraction operation
type Result struct {
	// Total number of regular files in the image
	FilesTotal int

	// Number of files successfully restored
	FilesProcessed int

	// Total size of the image on disk (index plus blobs)
	StoredSize uint64

	// Total bytes written to the output tree
	RestoredSize uint64

	// List of errors encountered (non-fatal)
	Errors []error
}

// Success returns true if all files were restored without errors
func (r *Result) Success() bool {
	return len(r.Errors) == 0 && r.FilesProcessed == r.FilesTotal
}

// Accessors for the generic summary formatter

func (r *Result) GetFilesTotal() int     { return r.FilesTotal }
func (r *Result) GetFilesProcessed() int { return r.FilesProcessed }
func (r *Result) GetErrors() []error     { return r.Errors }
func (r *Result) GetInputSize() uint64   { return r.RestoredSize }
func (r *Result) GetStoredSize() uint64  { return r.StoredSize }
