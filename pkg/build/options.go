// pkg/build/options.go
package build

import (
	"runtime"

	"github.com/creativeyann17/go-casfs/internal/blobstore"
	"github.com/creativeyann17/go-casfs/internal/chunker"
	"github.com/creativeyann17/go-casfs/internal/format"
)

// Parallelism defines the parallelism strategy
type Parallelism string

const (
	// ParallelismAuto auto-detects based on input structure
	// Uses folder mode if enough folders, file mode otherwise
	ParallelismAuto Parallelism = "auto"

	// ParallelismFolder processes whole folders per worker
	// Best when: many folders with few files each
	ParallelismFolder Parallelism = "folder"

	// ParallelismFile processes individual files per worker with folder affinity
	// Files from same folder go to same worker for locality
	// Best when: flat directories or few folders with many files
	ParallelismFile Parallelism = "file"
)

// defaultRabinPol is used when rabin chunking is requested without an
// explicit polynomial. A fixed polynomial keeps images reproducible.
const defaultRabinPol = 0x3DA3358B4DC173

// Options configures image building
type Options struct {
	// Input path (directory or single file)
	InputPath string

	// Output image directory path
	OutputPath string

	// Chunk size bounds for content-defined chunking
	// Zero value uses chunker.DefaultParams()
	Params chunker.Params

	// Chunking algorithm: "fastcdc" (default) or "rabin"
	Algorithm string

	// Rabin polynomial, used only when Algorithm is "rabin"
	// 0 selects a fixed default so repeated builds stay dedup-compatible
	Pol uint64

	// Blob codec: "zstd" (default), "xz" or "none"
	Codec string

	// Compression level (1-22 for zstd, ignored by the other codecs)
	// Default: 5
	Level int

	// Maximum number of concurrent chunking threads
	// Default: runtime.NumCPU()
	MaxThreads int

	// Parallelism strategy: "auto", "folder", or "file"
	// Default: "auto"
	Parallelism Parallelism

	// Maximum blob index cache size in MB (bounds memory during dedup)
	// 0 = unlimited
	BlobCacheSize uint64

	// DryRun chunks and deduplicates without writing the image
	DryRun bool

	// Verbose enables detailed logging
	Verbose bool

	// Quiet suppresses all output except errors
	Quiet bool

	// UseGitignore respects .gitignore files to exclude matching paths
	UseGitignore bool
}

// DefaultOptions returns options with sensible defaults
func DefaultOptions() *Options {
	return &Options{
		Params:      chunker.DefaultParams(),
		Algorithm:   format.AlgorithmFastCDC,
		Codec:       blobstore.CodecZstd,
		Level:       5,
		MaxThreads:  runtime.NumCPU(),
		Parallelism: ParallelismAuto,
	}
}

// Validate checks if options are valid
func (o *Options) Validate() error {
	if o.InputPath == "" {
		return ErrInputRequired
	}
	if o.OutputPath == "" && !o.DryRun {
		return ErrOutputRequired
	}
	if o.MaxThreads <= 0 {
		o.MaxThreads = runtime.NumCPU()
	}

	if o.Params == (chunker.Params{}) {
		o.Params = chunker.DefaultParams()
	}
	if err := o.Params.Validate(); err != nil {
		return err
	}

	switch o.Algorithm {
	case "":
		o.Algorithm = format.AlgorithmFastCDC
	case format.AlgorithmFastCDC, format.AlgorithmRabin:
		// valid
	default:
		return ErrInvalidAlgorithm
	}
	if o.Algorithm == format.AlgorithmRabin && o.Pol == 0 {
		o.Pol = defaultRabinPol
	}

	if o.Codec == "" {
		o.Codec = blobstore.CodecZstd
	}
	if o.Level == 0 {
		o.Level = 5
	}
	// Surface codec and level problems before any work happens
	if _, err := blobstore.CodecByName(o.Codec, o.Level); err != nil {
		return err
	}

	if o.Parallelism == "" {
		o.Parallelism = ParallelismAuto
	}
	switch o.Parallelism {
	case ParallelismAuto, ParallelismFolder, ParallelismFile:
		// valid
	default:
		return ErrInvalidParallelism
	}

	if o.Quiet {
		o.Verbose = false
	}
	return nil
}
