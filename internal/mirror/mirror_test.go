package mirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/distkit/internal/checksum"
	"github.com/vango-dev/distkit/internal/config"
	"github.com/vango-dev/distkit/internal/telemetry"
)

func setup(t *testing.T, withRelease bool) (*config.Config, *Server) {
	t.Helper()
	cfg := config.New(t.TempDir())
	cfg.Binary = "app"
	if err := os.MkdirAll(cfg.BuildPath(), 0755); err != nil {
		t.Fatal(err)
	}

	if withRelease {
		names := []string{"app-v1-linux-amd64", "app-v1-windows-amd64.exe"}
		var sums strings.Builder
		for _, n := range names {
			data := []byte("binary " + n)
			if err := os.WriteFile(filepath.Join(cfg.BuildPath(), n), data, 0755); err != nil {
				t.Fatal(err)
			}
			sum := sha256.Sum256(data)
			fmt.Fprintf(&sums, "SHA256 (%s) = %s\n", n, hex.EncodeToString(sum[:]))
		}
		if err := checksum.WriteManifest(cfg.ManifestPath(), names); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(cfg.BuildPath(), checksum.FileName), []byte(sums.String()), 0644); err != nil {
			t.Fatal(err)
		}
	}

	// An unlisted file in the build directory.
	if err := os.WriteFile(filepath.Join(cfg.BuildPath(), "app"), []byte("local"), 0755); err != nil {
		t.Fatal(err)
	}

	metrics := telemetry.NewMetrics()
	metrics.ObserveArtifact("app-v1-linux-amd64", "linux/amd64", 17)
	return cfg, New(cfg, metrics, nil)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestIndex(t *testing.T) {
	_, s := setup(t, true)

	rec := get(t, s.Handler(), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var idx Index
	if err := json.Unmarshal(rec.Body.Bytes(), &idx); err != nil {
		t.Fatal(err)
	}
	if idx.Binary != "app" || idx.Checksums != "/SHA256" {
		t.Errorf("index = %+v", idx)
	}
	if len(idx.Artifacts) != 2 {
		t.Fatalf("artifacts = %+v", idx.Artifacts)
	}
	first := idx.Artifacts[0]
	sum := sha256.Sum256([]byte("binary app-v1-linux-amd64"))
	if first.Name != "app-v1-linux-amd64" || first.SHA256 != hex.EncodeToString(sum[:]) {
		t.Errorf("first = %+v", first)
	}
	if first.Size != int64(len("binary app-v1-linux-amd64")) || first.URL != "/artifacts/app-v1-linux-amd64" {
		t.Errorf("first = %+v", first)
	}
}

func TestIndex_NoRelease(t *testing.T) {
	_, s := setup(t, false)
	if rec := get(t, s.Handler(), "/"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestChecksums(t *testing.T) {
	cfg, s := setup(t, true)
	rec := get(t, s.Handler(), "/SHA256")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want, _ := os.ReadFile(filepath.Join(cfg.BuildPath(), checksum.FileName))
	if rec.Body.String() != string(want) {
		t.Errorf("body = %q", rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestArtifact(t *testing.T) {
	_, s := setup(t, true)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/artifacts/app-v1-windows-amd64.exe", http.StatusOK, "binary app-v1-windows-amd64.exe"},
		{"/artifacts/app", http.StatusNotFound, ""},
		{"/artifacts/artifacts.txt", http.StatusNotFound, ""},
		{"/artifacts/..%2Fapp", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		rec := get(t, s.Handler(), tt.path)
		if rec.Code != tt.status {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.status)
			continue
		}
		if tt.body != "" && rec.Body.String() != tt.body {
			t.Errorf("GET %s body = %q, want %q", tt.path, rec.Body, tt.body)
		}
	}
}

func TestMetrics(t *testing.T) {
	_, s := setup(t, true)
	rec := get(t, s.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "app-v1-linux-amd64") {
		t.Errorf("metrics missing artifact gauge:\n%s", rec.Body)
	}
}

func TestListenAndServe(t *testing.T) {
	_, s := setup(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe(ctx, "127.0.0.1:0", func(a net.Addr) { addrCh <- a })
	}()

	var addr net.Addr
	select {
	case addr = <-addrCh:
	case err := <-errCh:
		t.Fatalf("ListenAndServe: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr.String() + "/SHA256")
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
