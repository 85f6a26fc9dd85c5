// Package checksum writes and verifies the SHA256 manifest of a release.
//
// Generation delegates to the system digest utility, probed in order:
//
//	sha256sum --tag <files>        (GNU coreutils)
//	shasum -a 256 --tag <files>    (Perl)
//
// Both print BSD-style tagged lines that bind each digest to its file name:
//
//	SHA256 (app-v1.2.0-linux-amd64) = 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
//
// The utility runs inside the manifest's directory so names stay relative.
// Output goes to the terminal and to a file named SHA256 next to the
// manifest. With neither utility on PATH generation fails with code D101,
// which exits 69, before any file is created.
//
// Verify re-hashes the files listed in a SHA256 file in-process.
package checksum
