// internal/chunker/streaming_test.go
package chunker

import (
	"testing"
)

// TestWriteGranularityInvariance is the core guarantee: the chunk
// sequence depends only on the bytes, never on how they were split
// across Append calls.
func TestWriteGranularityInvariance(t *testing.T) {
	data := testBytes(1 << 20)
	ref := referenceSpans(t, data, testParams)

	cases := []struct {
		name      string
		writeSize int
	}{
		{"below min", 4096},
		{"equal to min", 8192},
		{"between min and max", 20000},
		{"equal to window capacity", testParams.Max},
		{"above max", 40960},
		{"one giant write", len(data)},
		{"unaligned", 4097},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := streamChunks(t, data, testParams, tc.writeSize)
			assertMatchesReference(t, chunks, ref)
		})
	}
}

// TestTinyWrites merges a long run of writes far below min into proper
// chunks. Smaller input keeps the per-call overhead bearable.
func TestTinyWrites(t *testing.T) {
	data := testBytes(256 << 10)
	ref := referenceSpans(t, data, testParams)

	for _, writeSize := range []int{1, 7, 64} {
		chunks := streamChunks(t, data, testParams, writeSize)
		assertMatchesReference(t, chunks, ref)
	}
}

// TestExactCapacityWriteRendersImmediately checks that a write landing
// precisely on the window capacity triggers a render pass in the same
// call, not on the next one.
func TestExactCapacityWriteRendersImmediately(t *testing.T) {
	data := testBytes(testParams.Max)

	c, err := New(testParams)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := c.Append(data); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// A full window always resolves at least one boundary: either a
	// hash cut, or the forced cut at max.
	if chunks := c.Drain(); len(chunks) == 0 {
		t.Error("full window produced no chunks before Finish")
	}
}

// TestBoundedWindow feeds an input far larger than the window in one
// call and checks that buffering never exceeds the configured capacity.
func TestBoundedWindow(t *testing.T) {
	data := testBytes(8 << 20) // 256x the window
	ref := referenceSpans(t, data, testParams)

	c, err := New(testParams)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if len(c.window) != testParams.Max {
		t.Fatalf("window capacity %d, want %d", len(c.window), testParams.Max)
	}

	if _, err := c.Append(data); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if c.fill >= testParams.Max {
		t.Errorf("window still full after Append: fill=%d", c.fill)
	}
	if err := c.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	assertMatchesReference(t, c.Drain(), ref)
}

// TestLeftoverStaysBelowMax checks the window invariant after every
// render pass: unconsumed leftover is always strictly below capacity.
func TestLeftoverStaysBelowMax(t *testing.T) {
	data := testBytes(1 << 20)

	c, err := New(testParams)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	const step = 10000
	for off := 0; off < len(data); off += step {
		end := off + step
		if end > len(data) {
			end = len(data)
		}
		if _, err := c.Append(data[off:end]); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if c.fill >= len(c.window) {
			t.Fatalf("fill %d reached capacity %d after Append at offset %d",
				c.fill, len(c.window), off)
		}
	}
}

// TestPendingQueueAccumulates checks that chunks queue up without an
// intervening drain and come out in order afterwards.
func TestPendingQueueAccumulates(t *testing.T) {
	data := testBytes(1 << 20)
	ref := referenceSpans(t, data, testParams)

	c, err := New(testParams)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := c.Append(data); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := c.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	// All chunks buffered; one drain hands them over in stream order.
	assertMatchesReference(t, c.Drain(), ref)
}
