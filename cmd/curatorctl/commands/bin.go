package commands

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"media-curator/internal/app"
	"media-curator/internal/recyclebin"
)

func newTrashCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "trash <path>...",
		Short: "Move files into the recycle bin",
		Long: `Move files into the recycle bin. Each file is copied into the staging
tree, verified and only then removed from its original location. The
index row keeps favorites and dates so a restore brings them back.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, args, func(ctx context.Context, a *app.App, paths []string) *recyclebin.BatchResult {
				return a.Bin.Trash(ctx, paths)
			})
		},
	}
}

func newRestoreCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <path>...",
		Short: "Restore files from the recycle bin",
		Long: `Restore files from the recycle bin to their original location. Paths
may name either the original location or the staged copy. Restored files
are re-dated in the content index when it is available.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, args, func(ctx context.Context, a *app.App, paths []string) *recyclebin.BatchResult {
				for i, p := range paths {
					if !a.Translator.IsStaged(p) {
						paths[i] = a.Translator.ToRecycleBinPath(p)
					}
				}
				return a.Bin.Restore(ctx, paths)
			})
		},
	}
}

func newDeleteCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <path>...",
		Short: "Delete files, through the recycle bin when it is enabled",
		Long: `Delete files. While the recycle bin is enabled media paths are trashed;
otherwise, and always for staged paths, files are removed permanently.
You will be prompted for confirmation unless --force is specified.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.confirm("Delete "+plural(len(args), "path"), force); err != nil {
				return err
			}
			return runBatch(cmd, opts, args, func(ctx context.Context, a *app.App, paths []string) *recyclebin.BatchResult {
				return a.Bin.Delete(ctx, paths)
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}

func newEmptyCmd(opts *options) *cobra.Command {
	var force, disable bool
	cmd := &cobra.Command{
		Use:   "empty",
		Short: "Permanently remove everything in the recycle bin",
		Long: `Permanently remove every file in the recycle bin and its index rows.
With --disable the recycle bin is switched off afterwards, so later
deletes are permanent. This action is irreversible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.confirm("Empty the recycle bin", force); err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if disable {
					return a.Bin.EmptyAndDisable(ctx)
				}
				return a.Bin.Empty(ctx)
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	cmd.Flags().BoolVar(&disable, "disable", false, "Disable the recycle bin after emptying it")
	return cmd
}

// trashedItem is one recycle bin entry as listed.
type trashedItem struct {
	OriginalPath string `json:"originalPath" yaml:"originalPath"`
	StagedPath   string `json:"stagedPath" yaml:"stagedPath"`
	Size         int64  `json:"size" yaml:"size"`
	DeletedAt    int64  `json:"deletedAt" yaml:"deletedAt"`
	Favorite     bool   `json:"favorite" yaml:"favorite"`
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the recycle bin",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				trashed, err := a.DB.GetTrashedMedia(ctx)
				if err != nil {
					return err
				}
				items := make([]trashedItem, 0, len(trashed))
				for _, m := range trashed {
					orig := a.Translator.OriginalFromIndexKey(m.Path)
					items = append(items, trashedItem{
						OriginalPath: orig,
						StagedPath:   a.Translator.ToRecycleBinPath(orig),
						Size:         m.Size,
						DeletedAt:    m.DeletedTimestamp,
						Favorite:     m.Favorite,
					})
				}
				return opts.print(cmd.OutOrStdout(), items, func() *table {
					t := newTable("Original Path", "Size", "Deleted")
					for _, it := range items {
						t.add(it.OriginalPath, formatSize(it.Size), time.UnixMilli(it.DeletedAt).Format(time.RFC3339))
					}
					return t
				})
			})
		},
	}
}

// runBatch resolves args, runs op and prints the per-path outcomes.
func runBatch(cmd *cobra.Command, opts *options, args []string,
	op func(ctx context.Context, a *app.App, paths []string) *recyclebin.BatchResult,
) error {
	paths, err := absPaths(args)
	if err != nil {
		return err
	}
	return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
		res := op(ctx, a, paths)
		if err := opts.printBatch(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		return batchError(res)
	})
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
