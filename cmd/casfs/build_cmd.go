// cmd/casfs/build_cmd.go

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"

	"github.com/creativeyann17/go-casfs/internal/chunker"
	"github.com/creativeyann17/go-casfs/pkg/build"
)

func init() {
	rootCmd.AddCommand(buildCmd())
}

func buildCmd() *cobra.Command {
	var inputPath, outputPath string
	var minSize, avgSize, maxSize int
	var algorithm string
	var pol uint64
	var codec string
	var level int
	var maxThreads int
	var parallelism string
	var blobCacheSize uint64
	var dryRun bool
	var verbose bool
	var quiet bool
	var useGitignore bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a content-addressed image from files",
		Long: `Build a deduplicated image from a directory or single file.

Files are split into content-defined chunks, identical chunks are
stored once, and an index describing the tree is written alongside
the chunk blobs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Prepare options
			opts := build.DefaultOptions()
			opts.InputPath = inputPath
			opts.OutputPath = outputPath
			opts.Params = chunker.Params{Min: minSize, Avg: avgSize, Max: maxSize}
			opts.Algorithm = algorithm
			opts.Pol = pol
			opts.Codec = codec
			opts.Level = level
			opts.MaxThreads = maxThreads
			opts.Parallelism = build.Parallelism(parallelism)
			opts.BlobCacheSize = blobCacheSize
			opts.DryRun = dryRun
			opts.Verbose = verbose
			opts.Quiet = quiet
			opts.UseGitignore = useGitignore

			// Validate and set defaults
			if err := opts.Validate(); err != nil {
				return err
			}

			// Cap worker count so concurrent chunk buffers fit in RAM
			opts.MaxThreads = clampThreadsToMemory(opts.MaxThreads, opts.Params.Max)

			// Logging helper
			log := func(format string, args ...interface{}) {
				if !quiet {
					fmt.Printf(format+"\n", args...)
				}
			}

			log("Starting build...")
			log("  Input:       %s", opts.InputPath)
			if dryRun {
				log("  Output:      (dry run, nothing written)")
			} else {
				log("  Output:      %s", opts.OutputPath)
			}
			log("  Chunking:    %s (%d/%d/%d)", opts.Algorithm, opts.Params.Min, opts.Params.Avg, opts.Params.Max)
			log("  Codec:       %s (level %d)", opts.Codec, opts.Level)
			log("  Threads:     %d", opts.MaxThreads)
			log("")

			// Create progress callback and progress container
			var progressCb build.ProgressCallback
			var progress *mpb.Progress

			if !quiet && !verbose {
				progressCb, progress = build.ProgressBarCallback()
			}

			// Perform the build
			result, err := build.Build(opts, progressCb)

			// Wait for progress bars to finish rendering
			if progress != nil {
				progress.Wait()
			}

			if err != nil {
				return err
			}

			// Final report
			fmt.Println()
			fmt.Print(build.FormatSummary(result, opts))

			if len(result.Errors) > 0 {
				return fmt.Errorf("finished with %d errors", len(result.Errors))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input directory or file (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output image directory (required unless --dry-run)")
	cmd.Flags().IntVar(&minSize, "min", chunker.DefaultMinSize, "Minimum chunk size in bytes")
	cmd.Flags().IntVar(&avgSize, "avg", chunker.DefaultAvgSize, "Target average chunk size in bytes")
	cmd.Flags().IntVar(&maxSize, "max", chunker.DefaultMaxSize, "Maximum chunk size in bytes")
	cmd.Flags().StringVar(&algorithm, "algorithm", "fastcdc", "Chunking algorithm: fastcdc, rabin")
	cmd.Flags().Uint64Var(&pol, "pol", 0, "Rabin polynomial (0 = built-in default)")
	cmd.Flags().StringVarP(&codec, "codec", "c", "zstd", "Blob codec: zstd, xz, none")
	cmd.Flags().IntVarP(&level, "level", "l", 5, "Compression level (1-22 for zstd)")
	cmd.Flags().IntVarP(&maxThreads, "threads", "t", 0, "Max concurrent threads (0 = auto)")
	cmd.Flags().StringVar(&parallelism, "parallelism", "auto", "Parallelism strategy: auto, folder, file")
	cmd.Flags().Uint64Var(&blobCacheSize, "blob-cache", 0, "Blob index cache size in MB (0 = unlimited)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Chunk and deduplicate without writing the image")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show detailed output")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Minimal output (overrides verbose)")
	cmd.Flags().BoolVar(&useGitignore, "gitignore", false, "Respect .gitignore files")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// clampThreadsToMemory lowers the worker count when each worker's read
// buffer plus a max-size chunk would not fit in half of system RAM.
func clampThreadsToMemory(threads, maxChunkSize int) int {
	totalKB, err := getTotalSystemMemory()
	if err != nil || totalKB == 0 {
		return threads
	}

	perWorker := uint64(maxChunkSize) * 2
	if perWorker == 0 {
		return threads
	}

	budget := totalKB * 1024 / 2
	maxWorkers := int(budget / perWorker)
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if threads > maxWorkers {
		return maxWorkers
	}
	return threads
}
