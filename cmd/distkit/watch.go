package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/distkit/internal/errors"
	"github.com/vango-dev/distkit/internal/watch"
)

func watchCmd(a *app) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild on source changes",
		Long: `Run the local build, then rebuild whenever a .go file, go.mod or go.sum
changes. Builds never overlap; changes made during a build queue one more.

Examples:
  distkit watch
  distkit watch --debounce=500ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.builder(ctx, a.cfg)
			if err != nil {
				return err
			}

			w, err := watch.New(watch.Config{
				Root:     a.cfg.Root(),
				Ignore:   append(append([]string{}, watch.DefaultIgnore...), a.cfg.BuildDir),
				Debounce: debounce,
				Initial:  true,
				Logger:   a.logger.Logger,
			})
			if err != nil {
				return err
			}

			a.info("Watching %s (Ctrl+C to stop)", a.cfg.Root())
			return w.Run(ctx, func(ctx context.Context, changed []string) error {
				if len(changed) > 0 {
					fmt.Fprintln(a.stderr)
					a.info("%d file(s) changed", len(changed))
				}
				start := time.Now()
				if err := b.Local(ctx); err != nil {
					errors.Fprint(a.stderr, err)
					return nil
				}
				a.success("Built in %s", time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "Quiet period before rebuilding")

	return cmd
}
