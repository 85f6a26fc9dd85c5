// Package build compiles release binaries with the Go toolchain.
//
// This package handles:
//   - Local development builds for the host platform
//   - Stripped, versioned, reproducible dist builds for one platform
//   - The sequential dist-all matrix build, its artifacts manifest and
//     SHA256 file
//
// # Usage
//
//	b := build.New(cfg, runner.NewExec(), tc, build.Options{Stdout: os.Stdout})
//	release, err := b.DistAll(ctx)
//	if err != nil {
//	    os.Exit(errors.ExitCode(err))
//	}
//
//	fmt.Printf("Built %d artifacts\n", len(release.Artifacts))
//
// # Dist Flags
//
// Every dist build runs
//
//	go build -trimpath -buildvcs=false -ldflags "-s -w [-X main.version=<tag>]" -o <file> <main>
//
// with GOOS, GOARCH and CGO_ENABLED set. The version tag comes from git
// describe; without one the -X flag is left out and the artifact name carries
// an empty version segment.
//
// # Output Structure
//
//	build/
//	├── app-v1.2.0-linux-amd64
//	├── ...
//	├── app-v1.2.0-windows-amd64.exe
//	├── artifacts.txt      # one artifact name per line, matrix order
//	└── SHA256             # tagged digests of every artifact
package build
