// internal/fusefs/tree.go
package fusefs

import (
	"fmt"
	"strings"

	"github.com/creativeyann17/go-casfs/internal/format"
)

// treeNode is one entry of the in-memory tree assembled from the
// manifest's flat inode list.
type treeNode struct {
	inode    *format.Inode
	children map[string]*treeNode // by base name, directories only
}

// buildTree folds the path-sorted inode list into a tree rooted at the
// empty path. Parents sort before children, so every inode's parent
// exists by the time the inode is seen.
func buildTree(manifest *format.Manifest) (*treeNode, error) {
	byPath := make(map[string]*treeNode, len(manifest.Inodes))

	for i := range manifest.Inodes {
		inode := &manifest.Inodes[i]
		node := &treeNode{inode: inode}
		if inode.Kind == format.KindDir {
			node.children = make(map[string]*treeNode)
		}
		if _, exists := byPath[inode.Path]; exists {
			return nil, fmt.Errorf("duplicate inode path %q", inode.Path)
		}
		byPath[inode.Path] = node

		if inode.Path == "" {
			continue
		}
		parentPath, baseName := splitPath(inode.Path)
		parent, ok := byPath[parentPath]
		if !ok || parent.children == nil {
			return nil, fmt.Errorf("inode %q has no parent directory", inode.Path)
		}
		parent.children[baseName] = node
	}

	root, ok := byPath[""]
	if !ok || root.children == nil {
		return nil, fmt.Errorf("manifest has no root directory inode")
	}
	return root, nil
}

// splitPath splits a slash-separated path into parent and base name.
func splitPath(path string) (parent, base string) {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return "", path
}
