package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/distkit/internal/checksum"
)

func checksumCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checksum <manifest>",
		Short: "Generate the SHA256 file for a manifest",
		Long: `Digest every artifact listed in the manifest with sha256sum or shasum
and write the tagged output to SHA256 next to the manifest.

Exits with status 69 when no digest utility is installed.

Examples:
  distkit checksum build/artifacts.txt`,
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: a.setupOptional,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest := args[0]
			if !filepath.IsAbs(manifest) {
				manifest = filepath.Join(a.workDir(), manifest)
			}

			gen := &checksum.Generator{
				Runner: a.runner,
				Output: a.stdout,
				Logger: a.logger.Logger,
			}
			path, err := gen.Generate(cmd.Context(), manifest)
			if err != nil {
				return err
			}
			a.success("Wrote %s", path)
			return nil
		},
	}
}
