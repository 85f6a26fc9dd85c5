package main

import (
	"github.com/spf13/cobra"

	"github.com/vango-dev/distkit/internal/errors"
	"github.com/vango-dev/distkit/internal/platform"
)

func distCmd(a *app) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "dist",
		Short: "Build one release artifact",
		Long: `Cross-compile a stripped, versioned release binary for one platform.

The target comes from --target, then GOOS/GOARCH, then the toolchain's host.
The artifact path is printed to stdout.

Examples:
  distkit dist
  distkit dist --target=linux/arm64
  GOOS=windows distkit dist`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return err
			}
			if target == "" {
				return nil
			}
			if _, err := platform.Parse(target); err != nil {
				return errors.New("D503").WithDetail("--target: " + err.Error())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			if target != "" {
				p, _ := platform.Parse(target)
				cfg = cfg.WithPlatform(p)
			}

			b, err := a.builder(ctx, cfg)
			if err != nil {
				return err
			}
			art, err := b.Dist(ctx)
			if err != nil {
				return err
			}

			if art.Version == "" {
				a.warn("No version tag found; built without one")
			}
			a.success("Built %s in %s", art.Name, art.Duration.Round(1000000))
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Build target (e.g., linux/amd64)")

	return cmd
}
