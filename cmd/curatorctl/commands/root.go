// Package commands implements the curatorctl command tree.
package commands

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// options holds the global flag values shared by every subcommand.
type options struct {
	configPath string
	output     string
	verbose    bool
	in         io.Reader
}

// Execute builds the command tree and runs it until completion or SIGINT.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd returns a fresh command tree reading prompts from stdin.
func NewRootCmd() *cobra.Command {
	return newRoot(&options{in: os.Stdin})
}

func newRoot(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "curatorctl",
		Short: "Curate a media library from the command line",
		Long: `curatorctl moves media into and out of the recycle bin, renames,
moves, hides and rotates files, repairs "date taken" values and rescans
the library. It reads the same curator.yaml and CURATOR_* environment
variables as the server.

Use "curatorctl [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: ./curator.yaml)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", string(formatTable), "output format: table, json or yaml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log component startup and debug output")

	root.AddCommand(
		newTrashCmd(opts),
		newRestoreCmd(opts),
		newDeleteCmd(opts),
		newEmptyCmd(opts),
		newListCmd(opts),
		newRenameCmd(opts),
		newMoveCmd(opts),
		newHideCmd(opts, true),
		newHideCmd(opts, false),
		newRotateCmd(opts),
		newFavoriteCmd(opts),
		newFixDatesCmd(opts),
		newRescanCmd(opts),
		newStatusCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(opts),
	)
	return root
}
