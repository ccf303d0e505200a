// pkg/verify/errors.go
package verify

import "errors"

var (
	// ErrInputRequired is returned when input path is not specified
	ErrInputRequired = errors.New("input image path is required")

	// ErrInvalidIndex is returned when the image index is malformed
	ErrInvalidIndex = errors.New("invalid image index")

	// ErrUnsortedInodes is returned when the inode list is not sorted by path
	ErrUnsortedInodes = errors.New("inode list is not sorted by path")

	// ErrDuplicatePath is returned when two inodes share a path
	ErrDuplicatePath = errors.New("duplicate inode path")

	// ErrUnsafePath is returned for inode paths that escape the image root
	ErrUnsafePath = errors.New("inode path escapes the image root")

	// ErrMissingParent is returned when an inode has no parent directory inode
	ErrMissingParent = errors.New("inode has no parent directory")

	// ErrMissingRoot is returned when the index has no root directory inode
	ErrMissingRoot = errors.New("index has no root directory inode")

	// ErrBadInode is returned when an inode's fields contradict its kind
	ErrBadInode = errors.New("inode fields contradict its kind")

	// ErrSizeMismatch is returned when chunk lengths do not sum to the inode size
	ErrSizeMismatch = errors.New("chunk lengths do not sum to inode size")

	// ErrChunkTooLarge is returned when a chunk exceeds the configured maximum
	ErrChunkTooLarge = errors.New("chunk exceeds configured maximum size")

	// ErrMissingBlob is returned when a referenced blob is absent from the store
	ErrMissingBlob = errors.New("referenced blob missing from store")

	// ErrCorruptBlob is returned when blob content does not match its digest
	ErrCorruptBlob = errors.New("blob content does not match its digest")
)
