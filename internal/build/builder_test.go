package build

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/vango-dev/distkit/internal/checksum"
	"github.com/vango-dev/distkit/internal/config"
	"github.com/vango-dev/distkit/internal/errors"
	"github.com/vango-dev/distkit/internal/platform"
	"github.com/vango-dev/distkit/internal/runner"
	"github.com/vango-dev/distkit/internal/runner/runnertest"
	"github.com/vango-dev/distkit/internal/telemetry"
	"github.com/vango-dev/distkit/internal/toolchain"
	"github.com/vango-dev/distkit/internal/vcs"
)

type stubDescriber struct {
	version string
	calls   int
}

func (s *stubDescriber) Describe(context.Context, string) (string, error) {
	s.calls++
	if s.version == "" {
		return "", vcs.ErrNoVersion
	}
	return s.version, nil
}

// writeOutput mimics go build by creating the file named after -o.
func writeOutput(cmd runner.Cmd) error {
	i := slices.Index(cmd.Args, "-o")
	if i < 0 || i+1 >= len(cmd.Args) {
		return nil
	}
	out := cmd.Args[i+1]
	if strings.HasSuffix(out, string(filepath.Separator)) {
		return nil
	}
	return os.WriteFile(out, []byte("ELF "+strings.Join(cmd.Env, " ")), 0755)
}

// digestFiles mimics sha256sum --tag.
func digestFiles(cmd runner.Cmd) error {
	for _, arg := range cmd.Args {
		if strings.HasPrefix(arg, "-") {
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

func newFake() *runnertest.Fake {
	return runnertest.New().
		On("go build", runnertest.Response{Do: writeOutput}).
		On("go env GOOS GOARCH", runnertest.Response{Stdout: "linux\namd64\n"}).
		On("sha256sum --tag", runnertest.Response{Do: digestFiles}).
		Install("sha256sum")
}

func newBuilder(t *testing.T, fake *runnertest.Fake, version string) (*Builder, *bytes.Buffer, *stubDescriber) {
	t.Helper()
	cfg := config.New(t.TempDir())
	cfg.Binary = "app"
	cfg.Main = "./cmd/app"

	var stdout bytes.Buffer
	desc := &stubDescriber{version: version}
	b := New(cfg, fake, &toolchain.Toolchain{Path: "go"}, Options{
		Stdout:    &stdout,
		Describer: desc,
	})
	return b, &stdout, desc
}

func TestLDFlags(t *testing.T) {
	if got := LDFlags("main.version", ""); got != "-s -w" {
		t.Errorf("LDFlags(no version) = %q", got)
	}
	if got := LDFlags("main.version", "v1.2.3"); got != "-s -w -X main.version=v1.2.3" {
		t.Errorf("LDFlags(v1.2.3) = %q", got)
	}
}

func TestBuildArgs_Reproducible(t *testing.T) {
	args := BuildArgs("-s -w", "build/app", "./cmd/app")
	for _, flag := range []string{"-trimpath", "-buildvcs=false"} {
		if !slices.Contains(args, flag) {
			t.Errorf("BuildArgs missing %s: %v", flag, args)
		}
	}
	if args[0] != "build" || args[len(args)-1] != "./cmd/app" {
		t.Errorf("BuildArgs = %v", args)
	}
}

func TestLocal(t *testing.T) {
	fake := newFake()
	b, _, desc := newBuilder(t, fake, "v1.0.0")

	if err := b.Local(context.Background()); err != nil {
		t.Fatalf("Local: %v", err)
	}

	if _, err := os.Stat(b.Config().BuildPath()); err != nil {
		t.Errorf("build dir not created: %v", err)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %v", fake.CommandLines())
	}
	want := "go build -o " + b.Config().BuildPath() + string(filepath.Separator) + " ./cmd/app"
	if calls[0].String() != want {
		t.Errorf("command = %q, want %q", calls[0].String(), want)
	}
	if !slices.Contains(calls[0].Env, "CGO_ENABLED=0") {
		t.Errorf("Env = %v, want CGO_ENABLED=0", calls[0].Env)
	}
	if desc.calls != 0 {
		t.Error("local build should not describe a version")
	}
}

func TestLocal_Idempotent(t *testing.T) {
	fake := newFake()
	b, _, _ := newBuilder(t, fake, "")
	for i := 0; i < 2; i++ {
		if err := b.Local(context.Background()); err != nil {
			t.Fatalf("Local #%d: %v", i, err)
		}
	}
}

func TestLocal_CompilerFailurePassesThrough(t *testing.T) {
	fake := newFake().On("go build", runnertest.Response{ExitCode: 2, Stderr: "main.go:3:1: syntax error"})
	b, _, _ := newBuilder(t, fake, "")

	err := b.Local(context.Background())
	if !errors.HasCode(err, "D301") {
		t.Fatalf("err = %v, want D301", err)
	}
	if got := errors.ExitCode(err); got != 2 {
		t.Errorf("ExitCode = %d, want 2", got)
	}
}

func TestDistFor(t *testing.T) {
	fake := newFake()
	b, stdout, _ := newBuilder(t, fake, "v1.2.3")

	art, err := b.DistFor(context.Background(), platform.Platform{OS: "windows", Arch: "amd64"})
	if err != nil {
		t.Fatalf("DistFor: %v", err)
	}

	if art.Name != "app-v1.2.3-windows-amd64.exe" {
		t.Errorf("Name = %q", art.Name)
	}
	if art.Path != filepath.Join(b.Config().BuildPath(), art.Name) {
		t.Errorf("Path = %q", art.Path)
	}
	if strings.TrimSpace(stdout.String()) != art.Path {
		t.Errorf("stdout = %q, want %q", stdout.String(), art.Path)
	}
	if _, err := os.Stat(art.Path); err != nil {
		t.Errorf("artifact missing: %v", err)
	}

	call := fake.Calls()[0]
	for _, want := range []string{"-trimpath", "-buildvcs=false", "-s -w -X main.version=v1.2.3", "./cmd/app"} {
		if !slices.Contains(call.Args, want) {
			t.Errorf("args %v missing %q", call.Args, want)
		}
	}
	for _, want := range []string{"GOOS=windows", "GOARCH=amd64", "CGO_ENABLED=0"} {
		if !slices.Contains(call.Env, want) {
			t.Errorf("env %v missing %q", call.Env, want)
		}
	}
}

func TestDistFor_NoVersionIsNotFatal(t *testing.T) {
	fake := newFake()
	b, _, _ := newBuilder(t, fake, "")

	art, err := b.DistFor(context.Background(), platform.Platform{OS: "linux", Arch: "arm64"})
	if err != nil {
		t.Fatalf("DistFor: %v", err)
	}
	if art.Name != "app--linux-arm64" {
		t.Errorf("Name = %q, want empty version segment", art.Name)
	}
	if art.Version != "" {
		t.Errorf("Version = %q", art.Version)
	}
	for _, arg := range fake.Calls()[0].Args {
		if strings.Contains(arg, "-X") {
			t.Errorf("no -X flag expected without a version, got %q", arg)
		}
	}
}

func TestDistFor_CGOOverride(t *testing.T) {
	fake := newFake()
	b, _, _ := newBuilder(t, fake, "v1.0.0")
	b.config.CGOEnabled = "1"

	if _, err := b.DistFor(context.Background(), platform.Platform{OS: "linux", Arch: "amd64"}); err != nil {
		t.Fatalf("DistFor: %v", err)
	}
	if !slices.Contains(fake.Calls()[0].Env, "CGO_ENABLED=1") {
		t.Errorf("env = %v, want CGO_ENABLED=1", fake.Calls()[0].Env)
	}
}

func TestDistFor_SameInputsSameName(t *testing.T) {
	p := platform.Platform{OS: "darwin", Arch: "arm64"}
	b, _, _ := newBuilder(t, newFake(), "v3.0.0")

	first, err := b.DistFor(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.DistFor(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if first.Name != second.Name {
		t.Errorf("names differ: %q vs %q", first.Name, second.Name)
	}
}

func TestDist_DefaultsToHostTarget(t *testing.T) {
	fake := newFake()
	b, _, _ := newBuilder(t, fake, "v1.0.0")

	art, err := b.Dist(context.Background())
	if err != nil {
		t.Fatalf("Dist: %v", err)
	}
	if art.Platform != (platform.Platform{OS: "linux", Arch: "amd64"}) {
		t.Errorf("Platform = %s, want host linux/amd64", art.Platform)
	}
	if fake.CommandLines()[0] != "go env GOOS GOARCH" {
		t.Errorf("first command = %q", fake.CommandLines()[0])
	}
}

func TestDist_IndependentOverrides(t *testing.T) {
	fake := newFake()
	b, _, _ := newBuilder(t, fake, "v1.0.0")
	b.config.GOARCH = "arm64"

	art, err := b.Dist(context.Background())
	if err != nil {
		t.Fatalf("Dist: %v", err)
	}
	if art.Platform != (platform.Platform{OS: "linux", Arch: "arm64"}) {
		t.Errorf("Platform = %s, want linux/arm64", art.Platform)
	}
}

func TestDist_ExplicitTargetSkipsQuery(t *testing.T) {
	fake := newFake()
	b, _, _ := newBuilder(t, fake, "v1.0.0")
	b.config.GOOS = "freebsd"
	b.config.GOARCH = "amd64"

	if _, err := b.Dist(context.Background()); err != nil {
		t.Fatalf("Dist: %v", err)
	}
	for _, line := range fake.CommandLines() {
		if strings.HasPrefix(line, "go env") {
			t.Errorf("unexpected host query %q", line)
		}
	}
}

func TestDistAll(t *testing.T) {
	fake := newFake()
	b, stdout, desc := newBuilder(t, fake, "v2.0.0")
	metrics := telemetry.NewMetrics()
	b.options.Metrics = metrics

	rel, err := b.DistAll(context.Background())
	if err != nil {
		t.Fatalf("DistAll: %v", err)
	}

	matrix := platform.All()
	if len(rel.Artifacts) != len(matrix) {
		t.Fatalf("artifacts = %d, want %d", len(rel.Artifacts), len(matrix))
	}
	if desc.calls != len(matrix) {
		t.Errorf("describe calls = %d, want one per dist", desc.calls)
	}

	names, err := checksum.ReadManifest(rel.Manifest)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(names) != len(matrix) {
		t.Fatalf("manifest lines = %d, want %d", len(names), len(matrix))
	}
	for i, p := range matrix {
		want := platform.ArtifactName("app", "v2.0.0", p)
		if names[i] != want {
			t.Errorf("manifest[%d] = %q, want %q", i, names[i], want)
		}
		if rel.Artifacts[i].Platform != p {
			t.Errorf("artifact %d platform = %s, want %s", i, rel.Artifacts[i].Platform, p)
		}
	}

	printed := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(printed) != len(matrix) {
		t.Errorf("printed paths = %d, want %d", len(printed), len(matrix))
	}

	entries, err := checksum.ReadFile(rel.Checksums)
	if err != nil {
		t.Fatalf("ReadFile(SHA256): %v", err)
	}
	if len(entries) != len(matrix) {
		t.Fatalf("SHA256 entries = %d, want %d", len(entries), len(matrix))
	}
	for i, e := range entries {
		if e.Name != names[i] {
			t.Errorf("SHA256[%d] = %q, want %q", i, e.Name, names[i])
		}
	}
	if _, err := checksum.Verify(filepath.Dir(rel.Checksums)); err != nil {
		t.Errorf("Verify: %v", err)
	}

	if b.config.GOOS != "" || b.config.GOARCH != "" {
		t.Errorf("global config mutated to %s/%s", b.config.GOOS, b.config.GOARCH)
	}
}

func TestDistAll_SequentialOrder(t *testing.T) {
	fake := newFake()
	b, _, _ := newBuilder(t, fake, "v1.0.0")

	if _, err := b.DistAll(context.Background()); err != nil {
		t.Fatalf("DistAll: %v", err)
	}

	var targets []string
	for _, c := range fake.Calls() {
		if c.Name != "go" {
			continue
		}
		var goos, goarch string
		for _, kv := range c.Env {
			if v, ok := strings.CutPrefix(kv, "GOOS="); ok {
				goos = v
			}
			if v, ok := strings.CutPrefix(kv, "GOARCH="); ok {
				goarch = v
			}
		}
		targets = append(targets, goos+"/"+goarch)
	}

	var want []string
	for _, p := range platform.All() {
		want = append(want, p.String())
	}
	if strings.Join(targets, ",") != strings.Join(want, ",") {
		t.Errorf("build order = %v, want %v", targets, want)
	}

	last := fake.Calls()[len(fake.Calls())-1]
	if last.Name != "sha256sum" {
		t.Errorf("last command = %q, want checksum generation", last.String())
	}
}

func TestDistAll_NoDigestUtility(t *testing.T) {
	fake := runnertest.New().On("go build", runnertest.Response{Do: writeOutput})
	b, _, _ := newBuilder(t, fake, "v1.0.0")

	_, err := b.DistAll(context.Background())
	if got := errors.ExitCode(err); got != 69 {
		t.Fatalf("ExitCode = %d (%v), want 69", got, err)
	}
	if _, statErr := os.Stat(filepath.Join(b.Config().BuildPath(), checksum.FileName)); !os.IsNotExist(statErr) {
		t.Error("SHA256 should not be written without a digest utility")
	}
	if _, statErr := os.Stat(b.Config().ManifestPath()); statErr != nil {
		t.Errorf("manifest should still be written: %v", statErr)
	}
}

func TestDistAll_AbortsOnCompilerFailure(t *testing.T) {
	failing := func(cmd runner.Cmd) error {
		if slices.Contains(cmd.Env, "GOOS=darwin") {
			return &runner.ExitError{Cmd: cmd, Code: 1, Stderr: "link: running clang failed"}
		}
		return writeOutput(cmd)
	}
	fake := newFake().On("go build", runnertest.Response{Do: failing})
	b, _, _ := newBuilder(t, fake, "v1.0.0")

	_, err := b.DistAll(context.Background())
	if !errors.HasCode(err, "D301") {
		t.Fatalf("err = %v, want D301", err)
	}
	if !strings.Contains(err.Error(), "darwin/amd64") {
		t.Errorf("err = %v, want failing platform named", err)
	}
	for _, c := range fake.Calls() {
		if c.Name == "sha256sum" {
			t.Error("checksum generation should not run after a failed build")
		}
	}
	if _, statErr := os.Stat(b.Config().ManifestPath()); !os.IsNotExist(statErr) {
		t.Error("manifest should not be written after a failed build")
	}
}

func TestClean(t *testing.T) {
	b, _, _ := newBuilder(t, newFake(), "")
	if err := b.Local(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Clean(); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if _, err := os.Stat(b.Config().BuildPath()); !os.IsNotExist(err) {
		t.Error("build dir should be removed")
	}
}

func TestNew_DefaultDescriberFollowsConfig(t *testing.T) {
	cfg := config.New(t.TempDir())
	cfg.VCS = "go-git"
	b := New(cfg, newFake(), nil, Options{})
	if _, ok := b.options.Describer.(vcs.GoGit); !ok {
		t.Errorf("Describer = %T, want vcs.GoGit", b.options.Describer)
	}
	if b.toolchain.Path != "go" {
		t.Errorf("toolchain = %q, want go", b.toolchain.Path)
	}
}
