package checksum

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vango-dev/distkit/internal/errors"
	"github.com/vango-dev/distkit/internal/runner"
)

// FileName is the digest manifest written next to the artifacts manifest.
const FileName = "SHA256"

// Tool is a digest utility invocation.
type Tool struct {
	Name string
	Args []string
}

// Tools lists the supported utilities in preference order.
var Tools = []Tool{
	{Name: "sha256sum", Args: []string{"--tag"}},
	{Name: "shasum", Args: []string{"-a", "256", "--tag"}},
}

// Generator writes SHA256 files.
type Generator struct {
	Runner runner.Runner

	// Output receives a live copy of the digest lines. May be nil.
	Output io.Writer

	// Logger is used for progress. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Probe returns the first available digest utility.
func (g *Generator) Probe() (Tool, error) {
	names := make([]string, 0, len(Tools))
	for _, tool := range Tools {
		if _, err := g.Runner.LookPath(tool.Name); err == nil {
			return tool, nil
		}
		names = append(names, tool.Name)
	}
	return Tool{}, errors.New("D101").
		WithDetail("Looked for " + strings.Join(names, ", ") + " on PATH.").
		WithSuggestion("Install GNU coreutils (sha256sum) or Perl (shasum)")
}

// Generate digests every artifact named in the manifest at manifestPath and
// returns the path of the SHA256 file it wrote.
func (g *Generator) Generate(ctx context.Context, manifestPath string) (string, error) {
	tool, err := g.Probe()
	if err != nil {
		return "", err
	}

	names, err := ReadManifest(manifestPath)
	if err != nil {
		return "", err
	}
	// With no file arguments the digest tools hash stdin.
	if len(names) == 0 {
		return "", errors.New("D703").
			WithDetail(manifestPath + " lists no artifacts.").
			WithSuggestion("Run: distkit dist-all")
	}

	dir := filepath.Dir(manifestPath)
	outPath := filepath.Join(dir, FileName)
	out, err := os.Create(outPath)
	if err != nil {
		return "", errors.New("D704").Wrap(err)
	}
	defer out.Close()

	var stdout io.Writer = out
	if g.Output != nil {
		stdout = io.MultiWriter(g.Output, out)
	}

	g.logger().Debug("generating checksums", "tool", tool.Name, "files", len(names), "dir", dir)

	args := append(append([]string{}, tool.Args...), names...)
	if _, err := g.Runner.Run(ctx, runner.Cmd{
		Name:   tool.Name,
		Args:   args,
		Dir:    dir,
		Stdout: stdout,
	}); err != nil {
		return "", errors.New("D304").Wrap(err)
	}

	if err := out.Close(); err != nil {
		return "", errors.New("D704").Wrap(err)
	}
	return outPath, nil
}

// ReadManifest returns the artifact names listed one per line in path.
// Blank lines are skipped.
func ReadManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New("D703").Wrap(err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New("D703").Wrap(err)
	}
	return names, nil
}

// WriteManifest writes names one per line to path.
func WriteManifest(path string, names []string) error {
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return errors.New("D702").Wrap(err)
	}
	return nil
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
