// pkg/build/walk.go
package build

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/creativeyann17/go-casfs/internal/format"
)

type fileTask struct {
	AbsPath  string
	RelPath  string // slash-separated, relative to the input root
	Mode     os.FileMode
	OrigSize uint64
}

type folderTask struct {
	FolderPath string     // Relative folder path
	Files      []fileTask // Files in this folder
}

// inputTree is everything a build needs to know about the input before
// chunking starts. Directories and symlinks carry no content, so their
// inodes are final as soon as the walk ends; regular files still need
// their chunk lists filled in by the workers.
type inputTree struct {
	Folders    []folderTask
	Entries    []format.Inode // root, directories and symlinks
	TotalFiles int
	TotalSize  uint64
}

// folderHash returns a consistent hash for a folder path, used to assign files to workers
func folderHash(folderPath string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(folderPath))
	return h.Sum64()
}

// resolveParallelism determines the actual parallelism strategy.
// If auto, it analyzes the folder structure to decide.
func resolveParallelism(parallelism Parallelism, folders []folderTask, maxThreads int) Parallelism {
	if parallelism != ParallelismAuto {
		return parallelism
	}

	// Count top-level folders (direct children of input root)
	topLevelFolders := 0
	for _, f := range folders {
		if f.FolderPath == "" || !strings.Contains(f.FolderPath, "/") {
			topLevelFolders++
		}
	}

	// Use folder mode if we have enough top-level folders to keep workers busy
	// Otherwise use file mode for better parallelism
	if topLevelFolders >= maxThreads*2 {
		return ParallelismFolder
	}
	return ParallelismFile
}

// scanInput walks the input tree and collects directory and symlink
// inodes plus the regular files to chunk, grouped by parent folder.
// Walk errors on individual entries are recorded as non-fatal.
func scanInput(opts *Options, result *Result) (*inputTree, error) {
	baseDir := filepath.Clean(opts.InputPath)
	rootInfo, err := os.Lstat(baseDir)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}

	tree := &inputTree{}
	folderMap := make(map[string][]fileTask)

	addFile := func(absPath, relPath string, info os.FileInfo) {
		folderPath := filepath.ToSlash(filepath.Dir(relPath))
		if folderPath == "." {
			folderPath = "" // Root level files
		}
		folderMap[folderPath] = append(folderMap[folderPath], fileTask{
			AbsPath:  absPath,
			RelPath:  filepath.ToSlash(relPath),
			Mode:     info.Mode(),
			OrigSize: uint64(info.Size()),
		})
		tree.TotalSize += uint64(info.Size())
		tree.TotalFiles++
	}

	// Single regular file: image it under its base name.
	if rootInfo.Mode().IsRegular() {
		tree.Entries = append(tree.Entries, format.Inode{
			Path: "",
			Kind: format.KindDir,
			Mode: 0755,
		})
		addFile(baseDir, filepath.Base(baseDir), rootInfo)
		tree.Folders = foldersFromMap(folderMap)
		return tree, nil
	}
	if !rootInfo.IsDir() {
		return nil, fmt.Errorf("input %s: unsupported file type %s", baseDir, rootInfo.Mode())
	}

	var ignorer *gitignoreMatcher
	if opts.UseGitignore {
		ignorer, err = newGitignoreMatcher(baseDir)
		if err != nil {
			return nil, fmt.Errorf("scan gitignore files: %w", err)
		}
	}

	err = filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", path, err))
			return nil
		}

		relPath, err := filepath.Rel(baseDir, path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", path, err))
			return nil
		}
		if relPath == "." {
			relPath = ""
		}
		relPath = filepath.ToSlash(relPath)

		switch {
		case info.IsDir():
			if relPath != "" && ignorer.ShouldIgnoreDir(relPath) {
				return filepath.SkipDir
			}
			tree.Entries = append(tree.Entries, format.Inode{
				Path: relPath,
				Kind: format.KindDir,
				Mode: uint32(info.Mode().Perm()),
			})

		case info.Mode()&os.ModeSymlink != 0:
			if ignorer.ShouldIgnore(relPath) {
				return nil
			}
			target, err := os.Readlink(path)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("%s: %w", relPath, err))
				return nil
			}
			tree.Entries = append(tree.Entries, format.Inode{
				Path:   relPath,
				Kind:   format.KindSymlink,
				Mode:   0777,
				Target: target,
			})

		case info.Mode().IsRegular():
			if ignorer.ShouldIgnore(relPath) {
				return nil
			}
			addFile(path, relPath, info)

		default:
			// Sockets, devices and pipes cannot be represented.
			result.Errors = append(result.Errors, fmt.Errorf("%s: unsupported file type %s", relPath, info.Mode()))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("directory walk failed: %w", err)
	}

	tree.Folders = foldersFromMap(folderMap)
	return tree, nil
}

func foldersFromMap(folderMap map[string][]fileTask) []folderTask {
	folders := make([]folderTask, 0, len(folderMap))
	for folderPath, files := range folderMap {
		folders = append(folders, folderTask{
			FolderPath: folderPath,
			Files:      files,
		})
	}
	return folders
}
