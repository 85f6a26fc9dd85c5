// Package toolchain resolves which go executable a run builds with.
//
// The requested toolchain is a command name ("go", "go1.22.4") or the token
// "latest", which is resolved against the go.dev release endpoint. A version
// that matches the default go on PATH uses that go directly. Any other version
// is provisioned the golang.org/dl way when its command is missing:
//
//	go install golang.org/dl/go1.22.4@latest
//	go1.22.4 download
//
// Resolution happens once per run; the returned Toolchain is used for every
// build that follows.
package toolchain
