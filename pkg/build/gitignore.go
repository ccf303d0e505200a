// pkg/build/gitignore.go
package build

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// gitignoreMatcher applies .gitignore files found anywhere in the input
// tree. Each file's patterns are matched against paths relative to the
// directory holding it, root to most-specific.
type gitignoreMatcher struct {
	baseDir  string
	matchers map[string]*ignore.GitIgnore // key: relative dir, "" = root
}

// newGitignoreMatcher pre-scans the tree for .gitignore files.
// Returns nil when none exist so callers can skip filtering entirely.
func newGitignoreMatcher(baseDir string) (*gitignoreMatcher, error) {
	baseDir = filepath.Clean(baseDir)
	gm := &gitignoreMatcher{
		baseDir:  baseDir,
		matchers: make(map[string]*ignore.GitIgnore),
	}

	err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || filepath.Base(path) != ".gitignore" {
			return nil
		}
		relDir, err := filepath.Rel(baseDir, filepath.Dir(path))
		if err != nil {
			return nil
		}
		if relDir == "." {
			relDir = ""
		}
		matcher, err := ignore.CompileIgnoreFile(path)
		if err != nil {
			// Skip invalid .gitignore files silently
			return nil
		}
		gm.matchers[filepath.ToSlash(relDir)] = matcher
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(gm.matchers) == 0 {
		return nil, nil
	}
	return gm, nil
}

// ShouldIgnore checks if the file at relPath matches any ignore
// pattern. Negation patterns within one .gitignore file work; a child
// file negating a parent's pattern must re-specify the negation.
func (gm *gitignoreMatcher) ShouldIgnore(relPath string) bool {
	if gm == nil || len(gm.matchers) == 0 {
		return false
	}
	relPath = filepath.ToSlash(relPath)

	for _, dirPath := range hierarchyOf(relPath) {
		matcher, exists := gm.matchers[dirPath]
		if !exists {
			continue
		}
		pathToCheck := relPath
		if dirPath != "" {
			pathToCheck = strings.TrimPrefix(relPath, dirPath+"/")
		}
		if matcher.MatchesPath(pathToCheck) {
			return true
		}
	}
	return false
}

// ShouldIgnoreDir checks if a directory subtree should be pruned.
// Only directory-specific patterns like "build/" prune; file patterns
// like "*.log" that happen to match a directory name do not.
func (gm *gitignoreMatcher) ShouldIgnoreDir(relPath string) bool {
	if gm == nil || len(gm.matchers) == 0 {
		return false
	}
	return gm.ShouldIgnore(relPath+"/") && !gm.ShouldIgnore(relPath)
}

// hierarchyOf lists the directories from the root down to the file's
// parent. For "src/lib/file.log" that is ["", "src", "src/lib"].
func hierarchyOf(relPath string) []string {
	hierarchy := []string{""}
	parentDir := filepath.ToSlash(filepath.Dir(relPath))
	if parentDir == "." || parentDir == "" {
		return hierarchy
	}
	current := ""
	for _, part := range strings.Split(parentDir, "/") {
		if part == "" {
			continue
		}
		if current == "" {
			current = part
		} else {
			current = current + "/" + part
		}
		hierarchy = append(hierarchy, current)
	}
	return hierarchy
}
