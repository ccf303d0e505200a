// internal/blobstore/store.go

// Package blobstore persists chunk data under blobs/<hex-digest>, one
// file per unique chunk. A chunk already present, from this build or
// any earlier build sharing the directory, is never written again;
// this is where dedup across files and across images happens.
package blobstore

import (
	"container/list"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/zeebo/blake3"

	"github.com/creativeyann17/go-casfs/internal/format"
	"github.com/creativeyann17/go-casfs/pkg/casfs"
)

// ErrInvalidCodec is returned for unknown codec names.
var ErrInvalidCodec = errors.New("unknown blob codec")

// ErrNotFound is returned when a referenced blob is missing on disk.
var ErrNotFound = errors.New("blob not found")

// Info describes one stored blob.
type Info struct {
	Digest     format.Digest
	Length     uint64 // uncompressed chunk size
	StoredSize uint64 // bytes on disk after the codec
}

// blobEntry tracks a blob in the LRU cache.
type blobEntry struct {
	info    Info
	lruNode *list.Element
}

// Store is a content-addressed blob store, safe for concurrent use by
// the build workers. Lookups hit a bounded LRU cache backed by a
// permanent index; evicted entries cost a map lookup in the permanent
// index, never a rewrite.
type Store struct {
	dir   string // blobs directory
	codec Codec

	mu         sync.RWMutex
	cache      map[format.Digest]*blobEntry
	all        map[format.Digest]Info // never evicted
	lruList    *list.List
	maxEntries int // 0 = unbounded

	totalChunks   atomic.Uint64
	uniqueChunks  atomic.Uint64
	dedupedChunks atomic.Uint64
	bytesSaved    atomic.Uint64 // uncompressed bytes not stored again
	storedBytes   atomic.Uint64 // bytes written to disk
	evictions     atomic.Uint64
}

// NewStore opens (creating if needed) the blob directory of an image.
// maxEntries bounds the LRU cache; 0 keeps every entry cached.
func NewStore(imageDir string, codec Codec, maxEntries int) (*Store, error) {
	dir := filepath.Join(imageDir, format.BlobsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create blobs directory: %w", err)
	}
	return &Store{
		dir:        dir,
		codec:      codec,
		cache:      make(map[format.Digest]*blobEntry),
		all:        make(map[format.Digest]Info),
		lruList:    list.New(),
		maxEntries: maxEntries,
	}, nil
}

// NewDryRun returns a store that runs the codec and tracks dedup
// statistics without touching the disk.
func NewDryRun(codec Codec) *Store {
	return &Store{
		codec:   codec,
		cache:   make(map[format.Digest]*blobEntry),
		all:     make(map[format.Digest]Info),
		lruList: list.New(),
	}
}

// Codec returns the codec blobs are stored with.
func (s *Store) Codec() Codec {
	return s.codec
}

// Put stores a chunk keyed by the blake3 digest of its content.
// Returns the blob info and whether the data was actually written;
// false means the chunk was deduplicated.
func (s *Store) Put(data []byte) (Info, bool, error) {
	s.totalChunks.Add(1)
	digest := format.Digest(blake3.Sum256(data))

	// Fast path: already indexed.
	s.mu.RLock()
	if entry, ok := s.cache[digest]; ok {
		info := entry.info
		s.mu.RUnlock()
		s.touch(entry)
		s.dedupedChunks.Add(1)
		s.bytesSaved.Add(info.Length)
		return info, false, nil
	}
	if info, ok := s.all[digest]; ok {
		s.mu.RUnlock()
		s.dedupedChunks.Add(1)
		s.bytesSaved.Add(info.Length)
		return info, false, nil
	}
	s.mu.RUnlock()

	var storedSize uint64
	if s.dir == "" {
		// Dry run: encode to measure the stored size, discard the bytes.
		var counter casfs.DiscardCounter
		if err := s.codec.Encode(&counter, data); err != nil {
			return Info{}, false, err
		}
		storedSize = counter.Count
	} else {
		// A blob left by an earlier build against the same directory
		// also dedups; only its on-disk size needs recovering.
		path := filepath.Join(s.dir, digest.Hex())
		if fi, err := os.Stat(path); err == nil {
			info := Info{Digest: digest, Length: uint64(len(data)), StoredSize: uint64(fi.Size())}
			s.rememberExisting(info)
			s.dedupedChunks.Add(1)
			s.bytesSaved.Add(info.Length)
			return info, false, nil
		}

		var err error
		storedSize, err = s.writeBlob(path, data)
		if err != nil {
			return Info{}, false, err
		}
	}
	info := Info{Digest: digest, Length: uint64(len(data)), StoredSize: storedSize}

	s.mu.Lock()
	// Double-check: another worker may have stored the same chunk
	// while we were compressing. Its file content is identical, so the
	// duplicate rename was harmless; only the stats need fixing.
	if existing, ok := s.all[digest]; ok {
		s.mu.Unlock()
		s.dedupedChunks.Add(1)
		s.bytesSaved.Add(existing.Length)
		return existing, false, nil
	}
	s.all[digest] = info
	if s.maxEntries > 0 && len(s.cache) >= s.maxEntries {
		s.evictLocked()
	}
	node := s.lruList.PushFront(digest)
	s.cache[digest] = &blobEntry{info: info, lruNode: node}
	s.mu.Unlock()

	s.uniqueChunks.Add(1)
	s.storedBytes.Add(storedSize)
	return info, true, nil
}

// writeBlob encodes data into a temporary file and renames it into
// place, so concurrent writers of the same digest cannot expose a
// partial blob.
func (s *Store) writeBlob(path string, data []byte) (uint64, error) {
	tmp, err := os.CreateTemp(s.dir, ".blob-*")
	if err != nil {
		return 0, fmt.Errorf("create blob temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := s.codec.Encode(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	fi, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("stat blob temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("close blob temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename blob into place: %w", err)
	}
	return uint64(fi.Size()), nil
}

// rememberExisting indexes a blob found on disk from an earlier build.
func (s *Store) rememberExisting(info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.all[info.Digest]; ok {
		return
	}
	s.all[info.Digest] = info
	if s.maxEntries > 0 && len(s.cache) >= s.maxEntries {
		s.evictLocked()
	}
	node := s.lruList.PushFront(info.Digest)
	s.cache[info.Digest] = &blobEntry{info: info, lruNode: node}
}

func (s *Store) touch(entry *blobEntry) {
	s.mu.Lock()
	if entry.lruNode != nil {
		s.lruList.MoveToFront(entry.lruNode)
	}
	s.mu.Unlock()
}

// evictLocked removes the least recently used cache entry. The
// permanent index keeps its info. Caller holds the write lock.
func (s *Store) evictLocked() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	digest := back.Value.(format.Digest)
	delete(s.cache, digest)
	s.lruList.Remove(back)
	s.evictions.Add(1)
}

// Has reports whether a blob exists, checking the index first and the
// disk as a fallback.
func (s *Store) Has(digest format.Digest) bool {
	s.mu.RLock()
	_, inCache := s.cache[digest]
	_, inAll := s.all[digest]
	s.mu.RUnlock()
	if inCache || inAll {
		return true
	}
	if s.dir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, digest.Hex()))
	return err == nil
}

// Open returns a reader over the decoded content of a blob.
func (s *Store) Open(digest format.Digest) (io.ReadCloser, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, digest.Hex())
	}
	f, err := os.Open(filepath.Join(s.dir, digest.Hex()))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, digest.Hex())
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	dec, err := s.codec.Decode(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &blobReader{Reader: dec, closers: []io.Closer{dec, f}}, nil
}

// ReadAll returns the decoded content of a blob.
func (s *Store) ReadAll(digest format.Digest) ([]byte, error) {
	r, err := s.Open(digest)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", digest.Hex(), err)
	}
	return data, nil
}

// blobReader closes the decoder and the underlying file together.
type blobReader struct {
	io.Reader
	closers []io.Closer
}

func (b *blobReader) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stats contains deduplication statistics.
type Stats struct {
	TotalChunks   uint64
	UniqueChunks  uint64
	DedupedChunks uint64
	BytesSaved    uint64
	StoredBytes   uint64
	Evictions     uint64
}

// Stats returns a snapshot of the store's counters.
func (s *Store) Stats() Stats {
	return Stats{
		TotalChunks:   s.totalChunks.Load(),
		UniqueChunks:  s.uniqueChunks.Load(),
		DedupedChunks: s.dedupedChunks.Load(),
		BytesSaved:    s.bytesSaved.Load(),
		StoredBytes:   s.storedBytes.Load(),
		Evictions:     s.evictions.Load(),
	}
}

// DedupRatio returns the share of chunks that were deduplicated, as a
// percentage.
func (st Stats) DedupRatio() float64 {
	if st.TotalChunks == 0 {
		return 0
	}
	return float64(st.DedupedChunks) / float64(st.TotalChunks) * 100
}
