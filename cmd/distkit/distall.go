package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func distAllCmd(a *app) *cobra.Command {
	var clean bool

	cmd := &cobra.Command{
		Use:   "dist-all",
		Short: "Build the full release matrix with checksums",
		Long: `Build a release artifact for every supported platform, one after
another, then write the artifacts manifest and the SHA256 file.

Platforms:
  linux/amd64 linux/arm64 linux/386 linux/arm
  darwin/amd64 darwin/arm64 freebsd/amd64 windows/amd64

Examples:
  distkit dist-all
  distkit dist-all --clean --metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.builder(ctx, a.cfg)
			if err != nil {
				return err
			}

			if clean {
				a.info("Cleaning build directory...")
				if err := b.Clean(); err != nil {
					return err
				}
			}

			rel, err := b.DistAll(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.stderr)
			a.success("Release built in %s", rel.Duration.Round(1000000))
			for _, art := range rel.Artifacts {
				a.info("%-16s %s", art.Platform, art.Name)
			}
			a.info("Manifest:  %s", rel.Manifest)
			a.info("Checksums: %s", rel.Checksums)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clean, "clean", false, "Remove the build directory first")

	return cmd
}
