package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/distkit/internal/checksum"
)

func verifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [dir]",
		Short: "Check artifacts against their SHA256 file",
		Long: `Re-hash every artifact listed in dir/SHA256 and report mismatches.
dir defaults to the build directory, which needs a project. With an
explicit dir, verify works anywhere.`,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: a.setupOptional,
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			switch {
			case len(args) == 1:
				dir = args[0]
				if !filepath.IsAbs(dir) {
					dir = filepath.Join(a.workDir(), dir)
				}
			case a.cfg == nil:
				return a.projectErr
			default:
				dir = a.cfg.BuildPath()
			}

			results, err := checksum.Verify(dir)
			for _, r := range results {
				switch {
				case r.OK():
					fmt.Fprintf(a.stdout, "%s: OK\n", r.Name)
				case r.Err != nil:
					fmt.Fprintf(a.stdout, "%s: FAILED open or read\n", r.Name)
				default:
					fmt.Fprintf(a.stdout, "%s: FAILED\n", r.Name)
				}
			}
			if err != nil {
				return err
			}
			a.success("%d artifacts verified", len(results))
			return nil
		},
	}
}
