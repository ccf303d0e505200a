// internal/format/image_test.go
package format

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func sampleManifest() *Manifest {
	var d1, d2 Digest
	for i := range d1 {
		d1[i] = byte(i)
		d2[i] = byte(255 - i)
	}
	return &Manifest{
		Chunking: ChunkingConfig{
			Algorithm: AlgorithmFastCDC,
			MinSize:   8192,
			AvgSize:   16384,
			MaxSize:   32768,
		},
		Codec: "zstd",
		Inodes: []Inode{
			{Path: "", Kind: KindDir, Mode: 0755},
			{Path: "bin", Kind: KindDir, Mode: 0755},
			{Path: "bin/sh", Kind: KindSymlink, Mode: 0777, Target: "busybox"},
			{Path: "etc", Kind: KindDir, Mode: 0755},
			{Path: "etc/hostname", Kind: KindFile, Mode: 0644, Size: 40000,
				Chunks: []ChunkRef{{Digest: d1, Length: 30000}, {Digest: d2, Length: 10000}}},
		},
	}
}

func TestIndexRoundTrip(t *testing.T) {
	m := sampleManifest()

	var buf bytes.Buffer
	if err := WriteIndex(&buf, m); err != nil {
		t.Fatalf("WriteIndex failed: %v", err)
	}

	got, err := ReadIndex(&buf)
	if err != nil {
		t.Fatalf("ReadIndex failed: %v", err)
	}

	if got.Codec != m.Codec {
		t.Errorf("codec %q, want %q", got.Codec, m.Codec)
	}
	if got.Chunking != m.Chunking {
		t.Errorf("chunking config %+v, want %+v", got.Chunking, m.Chunking)
	}
	if len(got.Inodes) != len(m.Inodes) {
		t.Fatalf("got %d inodes, want %d", len(got.Inodes), len(m.Inodes))
	}
	for i := range m.Inodes {
		want := m.Inodes[i]
		have := got.Inodes[i]
		if have.Path != want.Path || have.Kind != want.Kind || have.Mode != want.Mode ||
			have.Size != want.Size || have.Target != want.Target {
			t.Errorf("inode %d: got %+v, want %+v", i, have, want)
		}
		if len(have.Chunks) != len(want.Chunks) {
			t.Errorf("inode %d: %d chunk refs, want %d", i, len(have.Chunks), len(want.Chunks))
			continue
		}
		for j := range want.Chunks {
			if have.Chunks[j] != want.Chunks[j] {
				t.Errorf("inode %d chunk %d: got %+v, want %+v", i, j, have.Chunks[j], want.Chunks[j])
			}
		}
	}
}

func TestIndexDeterministicEncoding(t *testing.T) {
	var a, b bytes.Buffer
	if err := WriteIndex(&a, sampleManifest()); err != nil {
		t.Fatalf("first WriteIndex failed: %v", err)
	}
	if err := WriteIndex(&b, sampleManifest()); err != nil {
		t.Fatalf("second WriteIndex failed: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("identical manifests encoded to different bytes")
	}
}

func TestReadIndexRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteIndex(&buf, sampleManifest()); err != nil {
		t.Fatalf("WriteIndex failed: %v", err)
	}
	raw := buf.Bytes()
	copy(raw, "GDELTA02")

	if _, err := ReadIndex(bytes.NewReader(raw)); err == nil {
		t.Error("expected error for foreign magic")
	}
}

func TestReadIndexRejectsBadVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteIndex(&buf, sampleManifest()); err != nil {
		t.Fatalf("WriteIndex failed: %v", err)
	}
	raw := buf.Bytes()
	raw[MagicSize] = 0x7F

	if _, err := ReadIndex(bytes.NewReader(raw)); err == nil {
		t.Error("expected error for unknown version")
	}
}

func TestReadIndexTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteIndex(&buf, sampleManifest()); err != nil {
		t.Fatalf("WriteIndex failed: %v", err)
	}
	raw := buf.Bytes()

	if _, err := ReadIndex(bytes.NewReader(raw[:len(raw)/2])); err == nil {
		t.Error("expected error for truncated index")
	}
}

func TestDigestHexRoundTrip(t *testing.T) {
	var d Digest
	for i := range d {
		d[i] = byte(i * 7)
	}
	parsed, err := ParseDigest(d.Hex())
	if err != nil {
		t.Fatalf("ParseDigest failed: %v", err)
	}
	if parsed != d {
		t.Errorf("round trip mismatch: %v vs %v", parsed, d)
	}

	if _, err := ParseDigest("abc"); err == nil {
		t.Error("expected error for short digest")
	}
	if _, err := ParseDigest(string(make([]byte, 64))); err == nil {
		t.Error("expected error for non-hex digest")
	}
}

func TestManifestLookup(t *testing.T) {
	m := sampleManifest()

	if ino := m.Lookup("etc/hostname"); ino == nil || ino.Kind != KindFile {
		t.Errorf("lookup etc/hostname: got %+v", ino)
	}
	if ino := m.Lookup(""); ino == nil || ino.Kind != KindDir {
		t.Errorf("lookup root: got %+v", ino)
	}
	if ino := m.Lookup("missing"); ino != nil {
		t.Errorf("lookup missing: got %+v", ino)
	}
}

func TestProbeImage(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, BlobsDir), 0755); err != nil {
		t.Fatal(err)
	}
	size, err := WriteIndexFile(dir, sampleManifest())
	if err != nil {
		t.Fatalf("WriteIndexFile failed: %v", err)
	}
	if fi, err := os.Stat(IndexPath(dir)); err != nil || fi.Size() != size {
		t.Fatalf("reported index size %d does not match file on disk: %v", size, err)
	}

	if err := ProbeImage(dir); err != nil {
		t.Errorf("ProbeImage failed on valid image: %v", err)
	}
	if err := ProbeImage(t.TempDir()); err == nil {
		t.Error("expected error for empty directory")
	}
}
