// pkg/build/progress.go
package build

import (
	"fmt"
	"strings"

	"github.com/vbauerster/mpb/v8"

	"github.com/creativeyann17/go-casfs/pkg/casfs"
)

// ProgressCallback is called for various progress events
type ProgressCallback func(event ProgressEvent)

// ProgressEvent contains progress information
type ProgressEvent struct {
	Type         EventType
	FilePath     string
	Current      int64
	Total        int64
	CurrentBytes uint64
	TotalBytes   uint64
	StoredSize   uint64
}

// EventType indicates the type of progress event
type EventType int

const (
	EventStart EventType = iota
	EventFileStart
	EventFileProgress
	EventFileComplete
	EventComplete
	EventError
)

// ProgressBarCallback creates a progress callback that displays multi-progress bars
// Returns the callback function and the progress container (call Wait() after the build)
func ProgressBarCallback() (ProgressCallback, *mpb.Progress) {
	genericCb, progress := casfs.ProgressBarCallback()

	// Wrap the generic callback to adapt build.ProgressEvent to casfs.ProgressEvent
	callback := func(event ProgressEvent) {
		genericCb(casfs.ProgressEvent{
			Type:         casfs.EventType(event.Type),
			FilePath:     event.FilePath,
			Current:      event.Current,
			Total:        event.Total,
			CurrentBytes: event.CurrentBytes,
			TotalBytes:   event.TotalBytes,
		})
	}

	return callback, progress
}

// FormatSummary formats a build result into a human-readable summary string
func FormatSummary(result *Result, opts *Options) string {
	var sb strings.Builder

	isDryRun := opts != nil && opts.DryRun
	sb.WriteString(casfs.FormatSummary(result, casfs.OperationBuild, isDryRun))

	if result.TotalChunks > 0 {
		sb.WriteString("\nDeduplication:\n")
		fmt.Fprintf(&sb, "  Total chunks:    %d\n", result.TotalChunks)
		fmt.Fprintf(&sb, "  Unique chunks:   %d\n", result.UniqueChunks)
		fmt.Fprintf(&sb, "  Deduped chunks:  %d\n", result.DedupedChunks)
		fmt.Fprintf(&sb, "  Dedup ratio:     %.1f%%\n", result.DedupRatio())
		fmt.Fprintf(&sb, "  Bytes saved:     %.2f MiB\n", float64(result.BytesSaved)/1024/1024)
		if result.Evictions > 0 {
			fmt.Fprintf(&sb, "  Evictions:       %d (LRU cache)\n", result.Evictions)
		}
	}

	return sb.String()
}

// FormatSize formats bytes into human-readable string
func FormatSize(bytes uint64) string {
	return casfs.FormatSize(bytes)
}
