package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"media-curator/internal/startup"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the curator configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(opts), newConfigShowCmd(opts))
	return cmd
}

func newConfigInitCmd(_ *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := startup.DefaultConfigName
			if len(args) == 1 {
				path = args[0]
			}
			if err := startup.WriteDefault(path, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging the file, .env and CURATOR_*
environment variables. Relative paths are shown resolved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := startup.Load(opts.configPath)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), cfg, func() *table {
				t := newTable("Key", "Value")
				t.add("media_dir", cfg.MediaDir)
				t.add("staging_dir", cfg.StagingDir)
				t.add("recycle_bin_prefix", cfg.RecycleBinPrefix)
				t.add("database", cfg.DatabasePath)
				t.add("content_index", cfg.ContentIndexPath)
				t.add("port", cfg.Port)
				t.add("keep_last_modified", strconv.FormatBool(cfg.KeepLastModified))
				t.add("index_interval", cfg.IndexInterval.String())
				t.add("repair.batch_size", strconv.Itoa(cfg.Repair.BatchSize))
				return t
			})
		},
	}
}
