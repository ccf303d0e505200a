// pkg/build/errors.go
package build

import "errors"

var (
	// ErrInputRequired is returned when input path is not specified
	ErrInputRequired = errors.New("input path is required")

	// ErrOutputRequired is returned when the image path is not specified
	ErrOutputRequired = errors.New("output image path is required")

	// ErrInvalidAlgorithm is returned for unknown chunking algorithms
	ErrInvalidAlgorithm = errors.New("chunking algorithm must be fastcdc or rabin")

	// ErrInvalidParallelism is returned for unknown parallelism strategies
	ErrInvalidParallelism = errors.New("parallelism must be auto, folder or file")

	// ErrNoFiles is returned when the input contains no entries to image
	ErrNoFiles = errors.New("no files found to build an image from")
)
