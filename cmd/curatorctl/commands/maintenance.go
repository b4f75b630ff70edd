package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"media-curator/internal/app"
	"media-curator/internal/startup"
)

func newFixDatesCmd(opts *options) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "fix-dates [path]...",
		Short: "Write EXIF dates into the content index",
		Long: `Read the EXIF "date taken" of each file and write it to the content index
in rate limited batches. --dir adds every indexed file in a directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := args
			if dir != "" {
				targets = append(targets, dir)
			}
			if len(targets) == 0 {
				return errors.New("fix-dates: no paths given")
			}
			paths, err := absPaths(targets)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Repairer == nil {
					return errors.New("fix-dates: content index is not available")
				}
				if dir != "" {
					dirPath := paths[len(paths)-1]
					paths = paths[:len(paths)-1]
					items, err := a.DB.GetMediaInDirectory(ctx, dirPath)
					if err != nil {
						return err
					}
					for _, m := range items {
						paths = append(paths, m.Path)
					}
					if len(paths) == 0 {
						return fmt.Errorf("fix-dates: %s contains no indexed media", dirPath)
					}
				}
				report, err := a.Repairer.Run(ctx, paths)
				if report != nil {
					if perr := opts.print(cmd.OutOrStdout(), report, func() *table {
						t := newTable("Processed", "Skipped", "Applied", "Batches")
						t.add(strconv.Itoa(report.Processed), strconv.Itoa(report.Skipped),
							strconv.Itoa(report.Applied), strconv.Itoa(len(report.Batches)))
						return t
					}); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "repair every indexed file in this directory")
	return cmd
}

func newRescanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rescan",
		Short: "Reconcile the index with the filesystem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Indexer.Rescan(ctx)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), res, func() *table {
					t := newTable("Files", "Directories", "Updated", "Removed", "Adopted", "Trashed", "Duration")
					t.add(strconv.Itoa(res.Files), strconv.Itoa(res.Directories), strconv.Itoa(res.Updated),
						strconv.FormatInt(res.Removed, 10), strconv.Itoa(res.Adopted), strconv.Itoa(res.Trashed),
						res.Duration.String())
					return t
				})
			})
		},
	}
}

// status summarizes the index and recycle bin.
type status struct {
	MediaDir          string `json:"mediaDir" yaml:"mediaDir"`
	StagingDir        string `json:"stagingDir" yaml:"stagingDir"`
	RecycleBinEnabled bool   `json:"recycleBinEnabled" yaml:"recycleBinEnabled"`
	ActiveMedia       int    `json:"activeMedia" yaml:"activeMedia"`
	TrashedMedia      int    `json:"trashedMedia" yaml:"trashedMedia"`
	TrashedBytes      int64  `json:"trashedBytes" yaml:"trashedBytes"`
	Directories       int    `json:"directories" yaml:"directories"`
	ContentIndex      bool   `json:"contentIndex" yaml:"contentIndex"`
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index and recycle bin counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				stats, err := a.DB.IndexStats(ctx)
				if err != nil {
					return err
				}
				enabled, err := a.DB.RecycleBinEnabled(ctx)
				if err != nil {
					return err
				}
				st := status{
					MediaDir:          a.Config.MediaDir,
					StagingDir:        a.Config.StagingDir,
					RecycleBinEnabled: enabled,
					ActiveMedia:       stats.ActiveMedia,
					TrashedMedia:      stats.TrashedMedia,
					TrashedBytes:      stats.TrashedBytes,
					Directories:       stats.Directories,
					ContentIndex:      a.Index != nil,
				}
				return opts.print(cmd.OutOrStdout(), st, func() *table {
					t := newTable("Key", "Value")
					t.add("Media dir", st.MediaDir)
					t.add("Staging dir", st.StagingDir)
					t.add("Recycle bin", enabledWord(st.RecycleBinEnabled))
					t.add("Active media", strconv.Itoa(st.ActiveMedia))
					t.add("Trashed media", fmt.Sprintf("%d (%s)", st.TrashedMedia, formatSize(st.TrashedBytes)))
					t.add("Directories", strconv.Itoa(st.Directories))
					t.add("Content index", enabledWord(st.ContentIndex))
					return t
				})
			})
		},
	}
}

func enabledWord(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := startup.GetBuildInfo()
			return opts.print(cmd.OutOrStdout(), info, func() *table {
				t := newTable("Version", "Commit", "Built", "Go")
				t.add(info.Version, info.Commit, info.BuildTime, info.GoVersion)
				return t
			})
		},
	}
}
