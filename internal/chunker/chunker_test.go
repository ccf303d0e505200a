// internal/chunker/chunker_test.go
package chunker

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	fastcdc "github.com/jotfs/fastcdc-go"
)

// testParams is the conformance profile: small enough that a modest
// buffer produces dozens of chunks.
var testParams = Params{Min: 8192, Avg: 16384, Max: 32768}

// testBytes returns deterministic pseudo-random data. Random content
// gives the rolling hash realistic boundaries; repeated patterns would
// degenerate to forced cuts at max.
func testBytes(n int) []byte {
	data := make([]byte, n)
	rnd := rand.New(rand.NewSource(23))
	rnd.Read(data)
	return data
}

// referenceSpans runs the fastcdc library over the whole buffer in one
// go. The streaming engine must reproduce this sequence exactly.
func referenceSpans(t testing.TB, data []byte, p Params) []Span {
	t.Helper()

	fc, err := fastcdc.NewChunker(bytes.NewReader(data), fastcdc.Options{
		MinSize:     p.Min,
		AverageSize: p.Avg,
		MaxSize:     p.Max,
	})
	if err != nil {
		t.Fatalf("reference chunker: %v", err)
	}

	var spans []Span
	for {
		c, err := fc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reference next: %v", err)
		}
		spans = append(spans, Span{Offset: c.Offset, Length: c.Length})
	}
	return spans
}

// streamChunks feeds data to a fresh engine in writes of writeSize
// bytes and returns everything drained after Finish.
func streamChunks(t testing.TB, data []byte, p Params, writeSize int) []Chunk {
	t.Helper()

	c, err := New(p)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for off := 0; off < len(data); off += writeSize {
		end := off + writeSize
		if end > len(data) {
			end = len(data)
		}
		n, err := c.Append(data[off:end])
		if err != nil {
			t.Fatalf("Append failed at offset %d: %v", off, err)
		}
		if n != end-off {
			t.Fatalf("Append accepted %d of %d bytes", n, end-off)
		}
	}

	if err := c.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	return c.Drain()
}

func assertMatchesReference(t *testing.T, chunks []Chunk, ref []Span) {
	t.Helper()

	for i := 0; i < len(chunks) && i < len(ref); i++ {
		if chunks[i].Offset != uint64(ref[i].Offset) {
			t.Errorf("chunk %d: offset %d, reference %d", i, chunks[i].Offset, ref[i].Offset)
		}
		if chunks[i].Length != uint64(ref[i].Length) {
			t.Errorf("chunk %d: length %d, reference %d", i, chunks[i].Length, ref[i].Length)
		}
	}
	if len(chunks) != len(ref) {
		t.Errorf("got %d chunks, reference has %d", len(chunks), len(ref))
	}
}

func TestParamsValidate(t *testing.T) {
	cases := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"valid", Params{Min: 8192, Avg: 16384, Max: 32768}, false},
		{"equal bounds", Params{Min: 4096, Avg: 4096, Max: 4096}, false},
		{"zero min", Params{Min: 0, Avg: 16384, Max: 32768}, true},
		{"negative min", Params{Min: -1, Avg: 16384, Max: 32768}, true},
		{"min above avg", Params{Min: 32768, Avg: 16384, Max: 65536}, true},
		{"avg above max", Params{Min: 8192, Avg: 65536, Max: 32768}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate()
			if tc.wantErr && err == nil {
				t.Errorf("expected error for %+v", tc.params)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error for %+v: %v", tc.params, err)
			}
			if tc.wantErr && err != nil && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("error %v is not ErrInvalidParams", err)
			}
		})
	}
}

func TestNewRejectsInvalidParams(t *testing.T) {
	if _, err := New(Params{Min: 0, Avg: 16384, Max: 32768}); err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestSingleWriteMatchesReference(t *testing.T) {
	data := testBytes(1 << 20)
	ref := referenceSpans(t, data, testParams)
	if len(ref) < 10 {
		t.Fatalf("reference produced only %d chunks, test data too small", len(ref))
	}

	chunks := streamChunks(t, data, testParams, len(data))
	assertMatchesReference(t, chunks, ref)
}

func TestChunkInvariants(t *testing.T) {
	data := testBytes(1 << 20)
	chunks := streamChunks(t, data, testParams, 10000)

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	if chunks[0].Offset != 0 {
		t.Errorf("first chunk starts at %d, want 0", chunks[0].Offset)
	}

	var total uint64
	for i, c := range chunks {
		if uint64(len(c.Data)) != c.Length {
			t.Errorf("chunk %d: len(Data) %d != Length %d", i, len(c.Data), c.Length)
		}
		if c.Length > uint64(testParams.Max) {
			t.Errorf("chunk %d: length %d above max %d", i, c.Length, testParams.Max)
		}
		if i < len(chunks)-1 && c.Length < uint64(testParams.Min) {
			t.Errorf("chunk %d: length %d below min %d", i, c.Length, testParams.Min)
		}
		if i > 0 {
			prev := chunks[i-1]
			if prev.Offset+prev.Length != c.Offset {
				t.Errorf("chunk %d: offset %d not contiguous with previous end %d",
					i, c.Offset, prev.Offset+prev.Length)
			}
		}
		total += c.Length
	}
	if total != uint64(len(data)) {
		t.Errorf("chunks cover %d bytes, input has %d", total, len(data))
	}

	// Reassembly must reproduce the input byte for byte.
	var reassembled []byte
	for _, c := range chunks {
		reassembled = append(reassembled, c.Data...)
	}
	if !bytes.Equal(reassembled, data) {
		t.Error("reassembled data doesn't match original")
	}
}

func TestEmptyStream(t *testing.T) {
	c, err := New(testParams)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if chunks := c.Drain(); len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty stream, got %d", len(chunks))
	}
}

func TestShortStreamSingleChunk(t *testing.T) {
	data := []byte("well below the minimum chunk size")
	chunks := streamChunks(t, data, testParams, len(data))

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Offset != 0 || chunks[0].Length != uint64(len(data)) {
		t.Errorf("got (offset=%d, length=%d), want (0, %d)",
			chunks[0].Offset, chunks[0].Length, len(data))
	}
	if !bytes.Equal(chunks[0].Data, data) {
		t.Error("chunk data doesn't match input")
	}
}

func TestDrainMovesAndClears(t *testing.T) {
	data := testBytes(1 << 20)
	ref := referenceSpans(t, data, testParams)

	c, err := New(testParams)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Drain while still writing, like the builder does between reads.
	var chunks []Chunk
	const step = 100_000
	for off := 0; off < len(data); off += step {
		end := off + step
		if end > len(data) {
			end = len(data)
		}
		if _, err := c.Append(data[off:end]); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		chunks = append(chunks, c.Drain()...)
	}
	if err := c.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	chunks = append(chunks, c.Drain()...)

	assertMatchesReference(t, chunks, ref)

	// Nothing new produced, so a second drain returns nothing.
	if again := c.Drain(); len(again) != 0 {
		t.Errorf("second drain returned %d chunks, want 0", len(again))
	}
}

func TestAppendAfterFinishPanics(t *testing.T) {
	c, err := New(testParams)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic from Append after Finish")
		}
	}()
	c.Append([]byte("too late")) //nolint:errcheck
}

func TestDoubleFinishPanics(t *testing.T) {
	c, err := New(testParams)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic from second Finish")
		}
	}()
	c.Finish() //nolint:errcheck
}

func BenchmarkStream16MiB(b *testing.B) {
	data := testBytes(16 << 20)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, err := New(testParams)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := c.Append(data); err != nil {
			b.Fatal(err)
		}
		if err := c.Finish(); err != nil {
			b.Fatal(err)
		}
		c.Drain()
	}
}
