package checksum

import (
	"bufio"
	_ "crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/vango-dev/distkit/internal/errors"
)

// Entry is one tagged digest line.
type Entry struct {
	Name   string
	Digest digest.Digest
}

// Result is the verification outcome for one entry.
type Result struct {
	Entry
	Actual digest.Digest
	Err    error
}

// OK reports whether the file matched its recorded digest.
func (r Result) OK() bool {
	return r.Err == nil && r.Actual == r.Digest
}

// ParseLine parses "SHA256 (name) = hex".
func ParseLine(line string) (Entry, error) {
	rest, ok := strings.CutPrefix(line, "SHA256 (")
	if !ok {
		return Entry{}, fmt.Errorf("not a SHA256 tagged line: %q", line)
	}
	i := strings.LastIndex(rest, ") = ")
	if i < 0 {
		return Entry{}, fmt.Errorf("not a SHA256 tagged line: %q", line)
	}

	d := digest.NewDigestFromEncoded(digest.SHA256, strings.TrimSpace(rest[i+len(") = "):]))
	if err := d.Validate(); err != nil {
		return Entry{}, fmt.Errorf("bad digest in %q: %w", line, err)
	}
	return Entry{Name: rest[:i], Digest: d}, nil
}

// ReadFile parses every tagged line in a SHA256 file.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		e, err := ParseLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// Verify re-hashes every file listed in dir/SHA256. It returns one Result per
// entry and a D502 error if any entry failed.
func Verify(dir string) ([]Result, error) {
	entries, err := ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, errors.New("D502").Wrap(err)
	}

	results := make([]Result, 0, len(entries))
	failed := 0
	for _, e := range entries {
		r := Result{Entry: e}
		r.Actual, r.Err = hashFile(filepath.Join(dir, e.Name))
		if !r.OK() {
			failed++
		}
		results = append(results, r)
	}

	if failed > 0 {
		return results, errors.New("D502").
			WithDetail(fmt.Sprintf("%d of %d artifacts did not match", failed, len(results)))
	}
	return results, nil
}

func hashFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.SHA256.FromReader(f)
}
