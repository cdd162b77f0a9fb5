package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion sets the version information displayed by --version.
// Typically called by the main package with values injected via ldflags.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the labelgrid CLI and returns an error if any command fails.
//
// The function sets up the root command with all subcommands (serve, place,
// completion), configures logging based on the --verbose flag, and executes
// the command tree. The logger is attached to the context and accessible to
// all commands via loggerFromContext. Cancelling ctx stops a running serve
// command gracefully.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          "labelgrid",
		Short:        "Labelgrid places map labels without overlap",
		Long:         `Labelgrid is a label placement service: it generates candidate positions for point, line, and polygon features and commits a non-overlapping subset in priority order, either as a one-shot CLI run or as an incremental HTTP session service.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("labelgrid %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newServeCmd())
	root.AddCommand(newPlaceCmd())
	root.AddCommand(newCompletionCmd())

	return root.ExecuteContext(ctx)
}
