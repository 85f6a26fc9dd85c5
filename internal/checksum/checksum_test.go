package checksum

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/distkit/internal/errors"
	"github.com/vango-dev/distkit/internal/runner"
	"github.com/vango-dev/distkit/internal/runner/runnertest"
)

// fakeDigest behaves like "sha256sum --tag" for the files named in cmd.
func fakeDigest(cmd runner.Cmd) error {
	for _, arg := range cmd.Args {
		if strings.HasPrefix(arg, "-") || arg == "256" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(cmd.Dir, arg))
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		fmt.Fprintf(cmd.Stdout, "SHA256 (%s) = %s\n", arg, hex.EncodeToString(sum[:]))
	}
	return nil
}

func setupRelease(t *testing.T, names ...string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("binary:"+name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	manifest := filepath.Join(dir, "artifacts.txt")
	if err := WriteManifest(manifest, names); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	return dir, manifest
}

func TestProbe_PreferenceOrder(t *testing.T) {
	tests := []struct {
		name      string
		installed []string
		want      string
	}{
		{"coreutils only", []string{"sha256sum"}, "sha256sum"},
		{"perl only", []string{"shasum"}, "shasum"},
		{"both prefers coreutils", []string{"shasum", "sha256sum"}, "sha256sum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := runnertest.New()
			for _, name := range tt.installed {
				fake.Install(name)
			}
			g := &Generator{Runner: fake}
			tool, err := g.Probe()
			if err != nil {
				t.Fatalf("Probe: %v", err)
			}
			if tool.Name != tt.want {
				t.Errorf("tool = %q, want %q", tool.Name, tt.want)
			}
		})
	}
}

func TestGenerate_NoUtility(t *testing.T) {
	dir, manifest := setupRelease(t, "app-v1-linux-amd64")
	fake := runnertest.New()
	g := &Generator{Runner: fake}

	_, err := g.Generate(context.Background(), manifest)
	if !errors.HasCode(err, "D101") {
		t.Fatalf("err = %v, want D101", err)
	}
	if got := errors.ExitCode(err); got != 69 {
		t.Errorf("ExitCode = %d, want 69", got)
	}
	if _, statErr := os.Stat(filepath.Join(dir, FileName)); !os.IsNotExist(statErr) {
		t.Error("SHA256 file should not exist when no utility is available")
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("nothing should run, ran %v", fake.CommandLines())
	}
}

func TestGenerate_WritesTaggedFileAndTerminal(t *testing.T) {
	names := []string{"app-v1-linux-amd64", "app-v1-windows-amd64.exe"}
	dir, manifest := setupRelease(t, names...)

	fake := runnertest.New().Install("sha256sum").
		On("sha256sum --tag", runnertest.Response{Do: fakeDigest})
	var terminal bytes.Buffer
	g := &Generator{Runner: fake, Output: &terminal}

	outPath, err := g.Generate(context.Background(), manifest)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if outPath != filepath.Join(dir, FileName) {
		t.Errorf("path = %q", outPath)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != terminal.String() {
		t.Errorf("terminal and file differ:\n%s\n---\n%s", terminal.String(), data)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != len(names) {
		t.Fatalf("lines = %d, want %d", len(lines), len(names))
	}
	for i, line := range lines {
		e, err := ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine(%q): %v", line, err)
		}
		if e.Name != names[i] {
			t.Errorf("line %d name = %q, want %q", i, e.Name, names[i])
		}
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %v", fake.CommandLines())
	}
	if calls[0].Dir != dir {
		t.Errorf("Dir = %q, want manifest dir %q", calls[0].Dir, dir)
	}
	for _, arg := range calls[0].Args {
		if filepath.IsAbs(arg) {
			t.Errorf("argument %q should be relative", arg)
		}
	}
}

func TestGenerate_ShasumArgs(t *testing.T) {
	_, manifest := setupRelease(t, "a", "b")
	fake := runnertest.New().Install("shasum")
	g := &Generator{Runner: fake}

	if _, err := g.Generate(context.Background(), manifest); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := fake.CommandLines()[0]; got != "shasum -a 256 --tag a b" {
		t.Errorf("command = %q", got)
	}
}

func TestGenerate_UtilityFailure(t *testing.T) {
	_, manifest := setupRelease(t, "a")
	fake := runnertest.New().Install("sha256sum").
		On("sha256sum", runnertest.Response{ExitCode: 1, Stderr: "a: No such file"})
	g := &Generator{Runner: fake}

	_, err := g.Generate(context.Background(), manifest)
	if !errors.HasCode(err, "D304") {
		t.Fatalf("err = %v, want D304", err)
	}
}

func TestGenerate_MissingManifest(t *testing.T) {
	fake := runnertest.New().Install("sha256sum")
	g := &Generator{Runner: fake}

	_, err := g.Generate(context.Background(), filepath.Join(t.TempDir(), "artifacts.txt"))
	if !errors.HasCode(err, "D703") {
		t.Fatalf("err = %v, want D703", err)
	}
}

func TestGenerate_EmptyManifest(t *testing.T) {
	dir, manifest := setupRelease(t)
	if err := os.WriteFile(manifest, []byte("\n\n"), 0644); err != nil {
		t.Fatal(err)
	}
	fake := runnertest.New().Install("sha256sum")
	g := &Generator{Runner: fake}

	_, err := g.Generate(context.Background(), manifest)
	if !errors.HasCode(err, "D703") {
		t.Fatalf("err = %v, want D703", err)
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("digest utility ran without file arguments: %v", fake.CommandLines())
	}
	if _, statErr := os.Stat(filepath.Join(dir, FileName)); !os.IsNotExist(statErr) {
		t.Errorf("%s should not be written for an empty manifest", FileName)
	}
}

func TestGenerate_RealUtility(t *testing.T) {
	if _, err := exec.LookPath("sha256sum"); err != nil {
		if _, err := exec.LookPath("shasum"); err != nil {
			t.Skip("no digest utility installed")
		}
	}

	dir, manifest := setupRelease(t, "app--linux-amd64", "app--windows-amd64.exe")
	g := &Generator{Runner: runner.NewExec()}
	if _, err := g.Generate(context.Background(), manifest); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	results, err := Verify(dir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}
}

func TestReadManifest_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts.txt")
	if err := os.WriteFile(path, []byte("a\n\n  b  \n"), 0644); err != nil {
		t.Fatal(err)
	}
	names, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if strings.Join(names, ",") != "a,b" {
		t.Errorf("names = %v", names)
	}
}
