package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"media-curator/internal/app"
	"media-curator/internal/recyclebin"
)

// pathChange reports where a single path ended up.
type pathChange struct {
	Path    string `json:"path" yaml:"path"`
	NewPath string `json:"newPath" yaml:"newPath"`
}

func (o *options) printChange(cmd *cobra.Command, c pathChange) error {
	return o.print(cmd.OutOrStdout(), c, func() *table {
		t := newTable("Path", "New Path")
		t.add(c.Path, c.NewPath)
		return t
	})
}

func newRenameCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <from> <to>",
		Short: "Rename a file or directory and update the index",
		Long: `Rename a file or directory. Renaming a directory rewrites the index rows
of everything beneath it. The filesystem change is undone when the index
cannot be updated.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Bin.Rename(ctx, paths[0], paths[1]); err != nil {
					return err
				}
				return opts.printChange(cmd, pathChange{Path: paths[0], NewPath: paths[1]})
			})
		},
	}
}

func newMoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "move <destination> <path>...",
		Short: "Move files into a directory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, args, func(ctx context.Context, a *app.App, paths []string) *recyclebin.BatchResult {
				return a.Bin.MoveFiles(ctx, paths[1:], paths[0])
			})
		},
	}
}

func newHideCmd(opts *options, hide bool) *cobra.Command {
	use, short := "hide <path>", "Hide a file or directory from the index"
	if !hide {
		use, short = "unhide <path>", "Make a hidden file or directory visible again"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long: `Files are hidden by prefixing their name with a dot. Directories are
hidden by a .nomedia marker inside them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				newPath, err := a.Bin.ToggleHidden(ctx, paths[0], hide)
				if err != nil {
					return err
				}
				return opts.printChange(cmd, pathChange{Path: paths[0], NewPath: newPath})
			})
		},
	}
}

func newRotateCmd(opts *options) *cobra.Command {
	var (
		degrees int
		to      string
	)
	cmd := &cobra.Command{
		Use:   "rotate <path>",
		Short: "Rotate an image clockwise",
		Long: `Rotate an image clockwise by --degrees (negative turns counter-clockwise).
The result replaces the file unless --to names a new path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := []string{args[0]}
			if to != "" {
				targets = append(targets, to)
			}
			paths, err := absPaths(targets)
			if err != nil {
				return err
			}
			src, dst := paths[0], paths[0]
			if len(paths) > 1 {
				dst = paths[1]
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Rotator.Rotate(ctx, src, dst, degrees); err != nil {
					return fmt.Errorf("rotate: %w", err)
				}
				return opts.printChange(cmd, pathChange{Path: src, NewPath: dst})
			})
		},
	}
	cmd.Flags().IntVarP(&degrees, "degrees", "d", 90, "clockwise angle")
	cmd.Flags().StringVar(&to, "to", "", "write the rotated image to this path")
	return cmd
}

// favoriteState reports the favorite flag of one path.
type favoriteState struct {
	Path     string `json:"path" yaml:"path"`
	Favorite bool   `json:"favorite" yaml:"favorite"`
}

func newFavoriteCmd(opts *options) *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "favorite <path>...",
		Short: "Mark indexed files as favorites",
		Long: `Mark indexed files as favorites, or clear the mark with --unset.
Favorites keep their date taken when dates are repaired.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				states := make([]favoriteState, 0, len(paths))
				for _, p := range paths {
					if err := a.DB.SetFavorite(ctx, p, !unset); err != nil {
						return fmt.Errorf("%s: %w", p, err)
					}
					states = append(states, favoriteState{Path: p, Favorite: !unset})
				}
				return opts.print(cmd.OutOrStdout(), states, func() *table {
					t := newTable("Path", "Favorite")
					for _, s := range states {
						t.add(s.Path, strconv.FormatBool(s.Favorite))
					}
					return t
				})
			})
		},
	}
	cmd.Flags().BoolVar(&unset, "unset", false, "clear the favorite mark")
	return cmd
}
