package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"media-curator/internal/app"
	"media-curator/internal/logging"
	"media-curator/internal/recyclebin"
	"media-curator/internal/startup"
)

// closeTimeout bounds how long background tasks get after a command.
const closeTimeout = 30 * time.Second

// errAborted is returned when the user declines a confirmation prompt.
var errAborted = errors.New("aborted")

// loadConfig reads and prepares the configuration named by --config.
func (o *options) loadConfig() (*startup.Config, error) {
	level := logging.LevelWarn
	if o.verbose {
		level = logging.LevelDebug
	}
	logging.SetLevel(level)

	cfg, err := startup.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp opens the components, runs fn and closes them again.
func (o *options) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) (err error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		err = errors.Join(err, a.Close(closeCtx))
	}()

	return fn(ctx, a)
}

// absPaths makes every argument absolute against the working directory.
func absPaths(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", arg, err)
		}
		out[i] = abs
	}
	return out, nil
}

// confirm asks label on an interactive terminal. force skips the prompt.
// Without a terminal the action is refused unless forced.
func (o *options) confirm(label string, force bool) error {
	if force {
		return nil
	}
	f, ok := o.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return fmt.Errorf("%s: refusing without --force on a non-interactive terminal", label)
	}

	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     f,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return errAborted
		}
		return err
	}
	return nil
}

// batchError turns a partially failed batch into a command error after the
// per-path results were printed.
func batchError(res *recyclebin.BatchResult) error {
	failed := len(res.Failed())
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%s: %d of %d paths failed", res.Operation, failed, len(res.Results))
}
