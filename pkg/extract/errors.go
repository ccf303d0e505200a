// pkg/extract/errors.go
package extract

import "errors"

var (
	// ErrInputRequired is returned when the image path is not specified
	ErrInputRequired = errors.New("input image path is required")

	// ErrFileExists is returned when an output file exists and overwrite is false
	ErrFileExists = errors.New("file exists (use --overwrite to replace)")

	// ErrUnsafePath is returned for inode paths that would escape the output directory
	ErrUnsafePath = errors.New("inode path escapes the output directory")
)
