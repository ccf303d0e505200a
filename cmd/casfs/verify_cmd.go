// cmd/casfs/verify_cmd.go

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/creativeyann17/go-casfs/pkg/verify"
)

func init() {
	rootCmd.AddCommand(verifyCmd())
}

func verifyCmd() *cobra.Command {
	var inputPath string
	var verifyData bool
	var verbose bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify image integrity",
		Long: `Verify the integrity of a content-addressed image.

By default, performs structural validation (index, inode tree, chunk
references). Use --data to also re-hash every blob against its digest.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &verify.Options{
				InputPath:  inputPath,
				VerifyData: verifyData,
				Verbose:    verbose,
				Quiet:      quiet,
			}

			if err := opts.Validate(); err != nil {
				return err
			}

			// Logging helper
			log := func(format string, args ...interface{}) {
				if !quiet {
					fmt.Printf(format+"\n", args...)
				}
			}

			log("Verifying image: %s", inputPath)
			if verifyData {
				log("Mode: Full data integrity check")
			} else {
				log("Mode: Structural validation only")
			}
			log("")

			// Create progress callback
			var progressCb verify.ProgressCallback
			if !quiet && !verbose {
				progressCb = func(event verify.ProgressEvent) {
					switch event.Type {
					case verify.EventStart:
						fmt.Printf("Checking %d blobs...\n", event.Total)
					case verify.EventBlobVerified:
						if event.Current%100 == 0 || event.Current == event.Total {
							fmt.Printf("\r  Progress: %d/%d blobs", event.Current, event.Total)
						}
					case verify.EventComplete:
						fmt.Printf("\r  Progress: %d/%d blobs\n", event.Current, event.Total)
					}
				}
			} else if verbose {
				progressCb = func(event verify.ProgressEvent) {
					switch event.Type {
					case verify.EventStart:
						fmt.Printf("Starting blob verification: %d blobs\n", event.Total)
					case verify.EventBlobVerified:
						fmt.Printf("  [%d/%d] %s\n", event.Current, event.Total, event.FilePath)
					case verify.EventComplete:
						fmt.Printf("Verification complete\n")
					}
				}
			}

			// Perform verification
			result, err := verify.Verify(opts, progressCb)
			if err != nil && result == nil {
				return err
			}

			// Print summary
			fmt.Println()
			fmt.Print(result.Summary())

			// Return error if invalid
			if !result.IsValid() {
				return fmt.Errorf("image verification failed")
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input image directory (required)")
	cmd.Flags().BoolVar(&verifyData, "data", false, "Verify data integrity by re-hashing all blobs")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show detailed output")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Minimal output (overrides verbose)")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}
