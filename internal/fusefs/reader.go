// internal/fusefs/reader.go
package fusefs

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/creativeyann17/go-casfs/internal/blobstore"
	"github.com/creativeyann17/go-casfs/internal/format"
)

// chunkEntry maps a byte offset range of a file to the blob holding
// that range's content.
type chunkEntry struct {
	// offset is the cumulative byte offset where this chunk starts
	// within the file.
	offset int64

	// size is the uncompressed size of this chunk in bytes.
	size int64

	// digest identifies the blob holding this chunk's data.
	digest format.Digest
}

// blobProvider abstracts how chunk bytes are obtained, enabling
// testing without a real store.
type blobProvider interface {
	// chunkBytes returns the decoded content of a blob.
	chunkBytes(digest format.Digest) ([]byte, error)
}

// storeProvider implements blobProvider on the blob store with a
// one-chunk cache. Sequential reads hit the same chunk many times in
// a row; caching the last decode avoids re-reading the blob for every
// kernel read request.
type storeProvider struct {
	store *blobstore.Store

	mu       sync.Mutex
	lastHash format.Digest
	lastData []byte
}

func (p *storeProvider) chunkBytes(digest format.Digest) ([]byte, error) {
	p.mu.Lock()
	if p.lastData != nil && p.lastHash == digest {
		data := p.lastData
		p.mu.Unlock()
		return data, nil
	}
	p.mu.Unlock()

	data, err := p.store.ReadAll(digest)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.lastHash = digest
	p.lastData = data
	p.mu.Unlock()
	return data, nil
}

// buildChunkTable constructs the offset-sorted chunk table of a file
// inode. Chunk references are already in stream order, so this is a
// single accumulation pass.
func buildChunkTable(inode *format.Inode) ([]chunkEntry, error) {
	chunks := make([]chunkEntry, 0, len(inode.Chunks))
	var cumulativeOffset int64

	for _, ref := range inode.Chunks {
		chunks = append(chunks, chunkEntry{
			offset: cumulativeOffset,
			size:   int64(ref.Length),
			digest: ref.Digest,
		})
		cumulativeOffset += int64(ref.Length)
	}

	if cumulativeOffset != int64(inode.Size) {
		return nil, fmt.Errorf("chunk sizes sum to %d bytes, but inode %q says %d",
			cumulativeOffset, inode.Path, inode.Size)
	}

	return chunks, nil
}

// findChunk returns the index of the chunk that contains the given
// byte offset. Returns -1 if the offset is out of range.
func findChunk(chunks []chunkEntry, offset int64) int {
	if len(chunks) == 0 || offset < 0 {
		return -1
	}

	// Binary search for the last chunk whose offset <= the target.
	index := sort.Search(len(chunks), func(i int) bool {
		return chunks[i].offset > offset
	}) - 1

	if index < 0 || index >= len(chunks) {
		return -1
	}

	chunk := chunks[index]
	if offset >= chunk.offset+chunk.size {
		return -1
	}

	return index
}

// readAt reads up to len(dest) bytes starting at the given offset
// within the file. Returns the number of bytes read. The read may
// span multiple chunks.
func readAt(chunks []chunkEntry, provider blobProvider, dest []byte, offset int64, totalSize int64) (int, error) {
	if offset >= totalSize {
		return 0, io.EOF
	}

	// Clamp the read to the file size.
	remaining := totalSize - offset
	if int64(len(dest)) > remaining {
		dest = dest[:remaining]
	}

	var totalRead int
	for totalRead < len(dest) {
		currentOffset := offset + int64(totalRead)
		chunkIndex := findChunk(chunks, currentOffset)
		if chunkIndex < 0 {
			if totalRead > 0 {
				return totalRead, nil
			}
			return 0, io.EOF
		}

		chunk := chunks[chunkIndex]

		data, err := provider.chunkBytes(chunk.digest)
		if err != nil {
			return totalRead, fmt.Errorf("reading chunk at offset %d: %w", currentOffset, err)
		}
		if int64(len(data)) != chunk.size {
			return totalRead, fmt.Errorf("blob %s decoded to %d bytes, chunk table says %d",
				chunk.digest.Hex(), len(data), chunk.size)
		}

		offsetInChunk := int(currentOffset - chunk.offset)
		available := len(data) - offsetInChunk
		if available <= 0 {
			break
		}

		toCopy := len(dest) - totalRead
		if toCopy > available {
			toCopy = available
		}
		copy(dest[totalRead:totalRead+toCopy], data[offsetInChunk:offsetInChunk+toCopy])
		totalRead += toCopy
	}

	return totalRead, nil
}
