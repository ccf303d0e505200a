// cmd/casfs/mount_cmd.go

//go:build linux || darwin

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/creativeyann17/go-casfs/internal/format"
	"github.com/creativeyann17/go-casfs/internal/fusefs"
)

func init() {
	rootCmd.AddCommand(mountCmd())
}

func mountCmd() *cobra.Command {
	var inputPath string
	var allowOther bool
	var debug bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "mount MOUNTPOINT",
		Short: "Mount an image as a read-only filesystem",
		Long: `Mount a content-addressed image at the given mountpoint via FUSE.

The mount serves the image tree read-only. Unmount with Ctrl-C, or
externally with fusermount -u MOUNTPOINT.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mountpoint := args[0]

			// Cheap sanity check before touching the FUSE layer
			if err := format.ProbeImage(inputPath); err != nil {
				return err
			}

			server, err := fusefs.Mount(fusefs.Options{
				Mountpoint: mountpoint,
				ImagePath:  inputPath,
				AllowOther: allowOther,
				Debug:      debug,
			})
			if err != nil {
				return fmt.Errorf("mount %s: %w", mountpoint, err)
			}

			if !quiet {
				fmt.Printf("Mounted %s at %s\n", inputPath, mountpoint)
				fmt.Println("Press Ctrl-C to unmount")
			}

			// Unmount on SIGINT/SIGTERM; Wait returns once the kernel
			// connection closes (also covers external fusermount -u)
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigs
				if err := server.Unmount(); err != nil {
					fmt.Fprintf(os.Stderr, "unmount: %v\n", err)
				}
			}()

			server.Wait()
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input image directory (required)")
	cmd.Flags().BoolVar(&allowOther, "allow-other", false, "Allow other users to access the mount")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable FUSE debug output")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Minimal output")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}
