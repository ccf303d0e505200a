// pkg/build/build.go

// Package build turns a directory tree into a content-addressed image:
// an index listing every inode plus a blob directory of deduplicated,
// compressed content chunks. Chunk boundaries are content-defined, so
// shifted or shared data dedups across files and across images that
// target the same output directory.
package build

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	restic "github.com/restic/chunker"

	"github.com/creativeyann17/go-casfs/internal/blobstore"
	"github.com/creativeyann17/go-casfs/internal/chunker"
	"github.com/creativeyann17/go-casfs/internal/format"
)

// readBufferSize is the Append granularity when streaming file
// contents into the chunking engine.
const readBufferSize = 1 << 20

// Build images the input tree into an image directory at OutputPath
func Build(opts *Options, progressCb ProgressCallback) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	result := &Result{}

	tree, err := scanInput(opts, result)
	if err != nil {
		return nil, err
	}
	// A lone root inode means the walk found nothing to image.
	if tree.TotalFiles == 0 && len(tree.Entries) <= 1 {
		return nil, ErrNoFiles
	}

	result.FilesTotal = tree.TotalFiles
	result.InputSize = tree.TotalSize

	codec, err := blobstore.CodecByName(opts.Codec, opts.Level)
	if err != nil {
		return nil, err
	}

	var store *blobstore.Store
	if opts.DryRun {
		store = blobstore.NewDryRun(codec)
	} else {
		store, err = blobstore.NewStore(opts.OutputPath, codec, blobCacheEntries(opts))
		if err != nil {
			return nil, err
		}
	}

	resolvedParallelism := resolveParallelism(opts.Parallelism, tree.Folders, opts.MaxThreads)

	if progressCb != nil {
		progressCb(ProgressEvent{
			Type:       EventStart,
			Total:      int64(tree.TotalFiles),
			TotalBytes: tree.TotalSize,
		})
	}

	// File inodes land here as workers finish; order is restored by the
	// final sort.
	var fileInodes []format.Inode
	var inodesMu sync.Mutex

	var processedCount atomic.Uint32
	var errorsMu sync.Mutex
	var wg sync.WaitGroup

	processFileTask := func(task fileTask, workerID int) {
		if progressCb != nil {
			progressCb(ProgressEvent{
				Type:     EventFileStart,
				FilePath: task.RelPath,
				Total:    int64(task.OrigSize),
			})
		}

		inode, err := chunkFile(task, opts, store, progressCb)
		if err != nil {
			errorsMu.Lock()
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", task.RelPath, err))
			errorsMu.Unlock()
			if progressCb != nil {
				progressCb(ProgressEvent{
					Type:     EventError,
					FilePath: task.RelPath,
				})
			}
			return
		}

		if opts.Verbose {
			fmt.Printf("  [Worker %d] %s: %d chunks\n", workerID, task.RelPath, len(inode.Chunks))
		}

		inodesMu.Lock()
		fileInodes = append(fileInodes, inode)
		inodesMu.Unlock()

		processedCount.Add(1)
		if progressCb != nil {
			progressCb(ProgressEvent{
				Type:     EventFileComplete,
				FilePath: task.RelPath,
				Current:  int64(task.OrigSize),
				Total:    int64(task.OrigSize),
			})
		}
	}

	if resolvedParallelism == ParallelismFolder {
		// Folder-based parallelism: workers grab whole folders
		folderCh := make(chan folderTask, len(tree.Folders))

		for i := 0; i < opts.MaxThreads; i++ {
			wg.Add(1)
			go func(workerID int) {
				defer wg.Done()

				for folder := range folderCh {
					for _, task := range folder.Files {
						processFileTask(task, workerID)
					}
				}
			}(i + 1)
		}

		go func() {
			for _, task := range tree.Folders {
				folderCh <- task
			}
			close(folderCh)
		}()
	} else {
		// File-based parallelism: per-worker channels with folder affinity
		// Files from the same folder go to the same worker for locality
		workerChannels := make([]chan fileTask, opts.MaxThreads)
		for i := range workerChannels {
			workerChannels[i] = make(chan fileTask, 64)
		}

		for i := 0; i < opts.MaxThreads; i++ {
			wg.Add(1)
			go func(workerID int, workerCh chan fileTask) {
				defer wg.Done()

				for task := range workerCh {
					processFileTask(task, workerID)
				}
			}(i+1, workerChannels[i])
		}

		// Route files to workers based on folder hash (maintains folder locality)
		go func() {
			for _, folder := range tree.Folders {
				workerIdx := int(folderHash(folder.FolderPath) % uint64(opts.MaxThreads))
				for _, task := range folder.Files {
					workerChannels[workerIdx] <- task
				}
			}
			for _, ch := range workerChannels {
				close(ch)
			}
		}()
	}

	wg.Wait()

	manifest := assembleManifest(opts, tree.Entries, fileInodes)

	var indexSize int64
	if !opts.DryRun {
		indexSize, err = format.WriteIndexFile(opts.OutputPath, manifest)
		if err != nil {
			return nil, fmt.Errorf("write image index: %w", err)
		}
	}

	result.FilesProcessed = int(processedCount.Load())

	stats := store.Stats()
	result.TotalChunks = stats.TotalChunks
	result.UniqueChunks = stats.UniqueChunks
	result.DedupedChunks = stats.DedupedChunks
	result.BytesSaved = stats.BytesSaved
	result.Evictions = stats.Evictions
	result.StoredSize = stats.StoredBytes + uint64(indexSize)

	if progressCb != nil {
		progressCb(ProgressEvent{
			Type:       EventComplete,
			Current:    int64(result.FilesProcessed),
			Total:      int64(result.FilesTotal),
			TotalBytes: result.InputSize,
			StoredSize: result.StoredSize,
		})
	}

	return result, nil
}

// blobCacheEntries converts the cache budget in MB into an entry count.
func blobCacheEntries(opts *Options) int {
	if opts.BlobCacheSize == 0 {
		return 0
	}
	// Index entries are small; the budget mainly guards pathological
	// chunk counts. Assume ~200 bytes per entry.
	const bytesPerEntry = 200
	entries := int(opts.BlobCacheSize * 1024 * 1024 / bytesPerEntry)
	if entries < 1 {
		entries = 1
	}
	return entries
}

// newEngine builds a fresh chunking engine. Every file gets its own so
// boundaries never depend on what was imaged before it.
func newEngine(opts *Options) (*chunker.Chunker, error) {
	if opts.Algorithm == format.AlgorithmRabin {
		det, err := chunker.NewRabin(opts.Params, restic.Pol(opts.Pol))
		if err != nil {
			return nil, err
		}
		return chunker.NewWithDetector(opts.Params, det)
	}
	return chunker.New(opts.Params)
}

// chunkFile streams one file through the chunking engine, stores every
// produced chunk, and returns the file's inode.
func chunkFile(task fileTask, opts *Options, store *blobstore.Store, progressCb ProgressCallback) (format.Inode, error) {
	file, err := os.Open(task.AbsPath)
	if err != nil {
		return format.Inode{}, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	eng, err := newEngine(opts)
	if err != nil {
		return format.Inode{}, err
	}

	var chunks []format.ChunkRef
	var bytesRead uint64

	flush := func() error {
		for _, ch := range eng.Drain() {
			info, _, err := store.Put(ch.Data)
			if err != nil {
				return fmt.Errorf("store chunk at offset %d: %w", ch.Offset, err)
			}
			chunks = append(chunks, format.ChunkRef{Digest: info.Digest, Length: ch.Length})
		}
		return nil
	}

	buf := make([]byte, readBufferSize)
	for {
		n, rerr := file.Read(buf)
		if n > 0 {
			if _, err := eng.Append(buf[:n]); err != nil {
				return format.Inode{}, fmt.Errorf("chunk file: %w", err)
			}
			bytesRead += uint64(n)

			if progressCb != nil {
				progressCb(ProgressEvent{
					Type:         EventFileProgress,
					FilePath:     task.RelPath,
					Current:      int64(bytesRead),
					Total:        int64(task.OrigSize),
					CurrentBytes: bytesRead,
				})
			}

			// Store finished chunks as they appear instead of holding
			// the whole file's worth in memory.
			if err := flush(); err != nil {
				return format.Inode{}, err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return format.Inode{}, fmt.Errorf("read file: %w", rerr)
		}
	}

	if err := eng.Finish(); err != nil {
		return format.Inode{}, fmt.Errorf("finish chunking: %w", err)
	}
	if err := flush(); err != nil {
		return format.Inode{}, err
	}

	return format.Inode{
		Path:   task.RelPath,
		Kind:   format.KindFile,
		Mode:   uint32(task.Mode.Perm()),
		Size:   bytesRead,
		Chunks: chunks,
	}, nil
}

// assembleManifest merges the walk's directory and symlink inodes with
// the workers' file inodes into a path-sorted manifest.
func assembleManifest(opts *Options, entries, fileInodes []format.Inode) *format.Manifest {
	inodes := make([]format.Inode, 0, len(entries)+len(fileInodes))
	inodes = append(inodes, entries...)
	inodes = append(inodes, fileInodes...)
	sort.Slice(inodes, func(i, j int) bool {
		return inodes[i].Path < inodes[j].Path
	})

	return &format.Manifest{
		Chunking: format.ChunkingConfig{
			Algorithm: opts.Algorithm,
			MinSize:   opts.Params.Min,
			AvgSize:   opts.Params.Avg,
			MaxSize:   opts.Params.Max,
			Pol:       opts.Pol,
		},
		Codec:  opts.Codec,
		Inodes: inodes,
	}
}
