package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/distkit/internal/publish"
	"github.com/vango-dev/distkit/internal/vcs"
)

func publishCmd(a *app) *cobra.Command {
	var (
		releaseVersion string
		bucket         string
		prefix         string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the release to S3",
		Long: `Upload every artifact in the manifest, the SHA256 file and the manifest
to s3://<bucket>/<prefix>/<version>/.

The version defaults to the current tag. Credentials and region come from
the standard AWS configuration chain.

Examples:
  distkit dist-all && distkit publish
  distkit publish --bucket=downloads --prefix=myapp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pc := a.cfg.Publish
			if bucket != "" {
				pc.Bucket = bucket
			}
			if prefix != "" {
				pc.Prefix = prefix
			}

			if err := publish.CheckConfig(pc); err != nil {
				return err
			}

			if releaseVersion == "" {
				v, err := vcs.New(a.cfg.VCS, a.runner).Describe(ctx, a.cfg.Root())
				if err != nil {
					a.warn("No version tag found; publishing under %q", publish.Untagged)
				}
				releaseVersion = v
			}

			client := a.s3
			if client == nil {
				c, err := publish.NewClient(ctx, pc)
				if err != nil {
					return err
				}
				client = c
			}

			p, err := publish.New(client, pc, a.logger.Logger)
			if err != nil {
				return err
			}

			a.info("Publishing to s3://%s/%s/", pc.Bucket, p.Key(releaseVersion, ""))
			objs, err := p.Publish(ctx, a.cfg.ManifestPath(), releaseVersion)
			if err != nil {
				return err
			}
			for _, o := range objs {
				a.info("%s (%s)", o.Key, formatBytes(o.Size))
			}
			a.success("Published %d objects", len(objs))
			return nil
		},
	}

	cmd.Flags().StringVar(&releaseVersion, "version", "", "Release version (default: current tag)")
	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket (default from distkit.json)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix (default from distkit.json)")

	return cmd
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
