// internal/fusefs/mount.go

// Package fusefs serves a content-addressed image as a read-only
// filesystem. The whole inode tree is materialized from the index at
// mount time; file contents are fetched from the blob store on demand,
// one chunk at a time.
package fusefs

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/creativeyann17/go-casfs/internal/blobstore"
	"github.com/creativeyann17/go-casfs/internal/format"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the image is mounted.
	Mountpoint string

	// ImagePath is the image directory to serve.
	ImagePath string

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Debug enables FUSE protocol debugging output.
	Debug bool
}

// Mount mounts the image as a read-only filesystem at the configured
// mountpoint. The caller must call Unmount on the returned server when
// done. The mountpoint directory is created if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.ImagePath == "" {
		return nil, fmt.Errorf("image path is required")
	}

	manifest, err := format.ReadIndexFile(options.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("read image index: %w", err)
	}
	codec, err := blobstore.CodecByName(manifest.Codec, 0)
	if err != nil {
		return nil, fmt.Errorf("image codec: %w", err)
	}
	store, err := blobstore.NewStore(options.ImagePath, codec, 0)
	if err != nil {
		return nil, err
	}

	tree, err := buildTree(manifest)
	if err != nil {
		return nil, fmt.Errorf("assemble image tree: %w", err)
	}

	if err := os.MkdirAll(options.Mountpoint, 0755); err != nil {
		return nil, fmt.Errorf("create mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &dirNode{store: store, tree: tree}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "casfs:" + options.ImagePath,
			Name:       "casfs",
			AllowOther: options.AllowOther,
			Debug:      options.Debug,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mount image at %s: %w", options.Mountpoint, err)
	}

	return server, nil
}

// dirNode serves one directory inode. Children are added once as
// persistent inodes; the image is immutable, so they never change.
type dirNode struct {
	gofuse.Inode
	store *blobstore.Store
	tree  *treeNode
}

var _ gofuse.InodeEmbedder = (*dirNode)(nil)
var _ gofuse.NodeOnAdder = (*dirNode)(nil)
var _ gofuse.NodeGetattrer = (*dirNode)(nil)

func (d *dirNode) OnAdd(ctx context.Context) {
	for name, child := range d.tree.children {
		switch child.inode.Kind {
		case format.KindDir:
			node := &dirNode{store: d.store, tree: child}
			inode := d.NewPersistentInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFDIR})
			d.AddChild(name, inode, true)

		case format.KindFile:
			node := &fileNode{store: d.store, inode: child.inode}
			inode := d.NewPersistentInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG})
			d.AddChild(name, inode, true)

		case format.KindSymlink:
			node := &gofuse.MemSymlink{Data: []byte(child.inode.Target)}
			node.Attr.Mode = syscall.S_IFLNK | child.inode.Mode
			inode := d.NewPersistentInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFLNK})
			d.AddChild(name, inode, true)
		}
	}
}

func (d *dirNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | d.tree.inode.Mode
	return 0
}

// fileNode serves one regular file. The chunk table is built lazily on
// first open and shared by every handle.
type fileNode struct {
	gofuse.Inode
	store *blobstore.Store
	inode *format.Inode

	// mu protects chunks and provider (lazy initialization).
	mu       sync.Mutex
	chunks   []chunkEntry
	provider *storeProvider
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)
var _ gofuse.NodeReader = (*fileNode)(nil)

func (f *fileNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | f.inode.Mode
	out.Size = f.inode.Size
	out.Blocks = (out.Size + 511) / 512
	return 0
}

func (f *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}

	if err := f.ensureChunkTable(); err != nil {
		return nil, 0, syscall.EIO
	}

	// Image content is immutable, so the kernel page cache is always
	// valid.
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (f *fileNode) Read(ctx context.Context, fh gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if err := f.ensureChunkTable(); err != nil {
		return nil, syscall.EIO
	}

	bytesRead, err := readAt(f.chunks, f.provider, dest, off, int64(f.inode.Size))
	if err == io.EOF {
		return fuse.ReadResultData(nil), 0
	}
	if err != nil {
		return nil, syscall.EIO
	}

	return fuse.ReadResultData(dest[:bytesRead]), 0
}

func (f *fileNode) ensureChunkTable() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.chunks != nil || len(f.inode.Chunks) == 0 {
		return nil
	}

	chunks, err := buildChunkTable(f.inode)
	if err != nil {
		return err
	}
	f.chunks = chunks
	f.provider = &storeProvider{store: f.store}
	return nil
}
