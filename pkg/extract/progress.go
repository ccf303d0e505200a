// pkg/extract/progress.go
package extract

import (
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
// Returns the callback function and the progress container (call Wait() after extraction)
func ProgressBarCallback() (ProgressCallback, *mpb.Progress) {
	genericCb, progress := casfs.ProgressBarCallback()

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

// FormatSummary formats an extraction result into a human-readable summary string
func FormatSummary(result *Result) string {
	var sb strings.Builder
	sb.WriteString(casfs.FormatSummary(result, casfs.OperationExtract, false))
	return sb.String()
}
