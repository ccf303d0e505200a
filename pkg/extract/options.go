// pkg/extract/options.go
package extract

// Options configures image extraction
type Options struct {
	// Input image directory path
	InputPath string

	// Output directory path
	OutputPath string

	// Verbose enables detailed logging
	Verbose bool

	// Quiet suppresses all output except errors
	Quiet bool

	// Overwrite existing files without prompting
	Overwrite bool
}

// DefaultOptions returns options with sensible defaults
func DefaultOptions() *Options {
	return &Options{}
}

// Validate checks if options are valid
func (o *Options) Validate() error {
	if o.InputPath == "" {
		return ErrInputRequired
	}
	if o.OutputPath == "" {
		o.OutputPath = "."
	}
	if o.Quiet {
		o.Verbose = false
	}
	return nil
}
