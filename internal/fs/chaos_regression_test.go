package fs

import (
	"bytes"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestChaos_ErrorInjectionDoesNotDeadlock(t *testing.T) {
	realFS := NewReal()
	chaosFS := NewChaos(realFS, 0, ChaosConfig{
		WriteFailRate: 1.0, // Always inject an error (exercise pickError/pickRandom).
	})
	chaosFS.SetMode(ChaosModeActive)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")

	done := make(chan error, 1)

	go func() {
		done <- chaosFS.WriteFileAtomic(path, []byte("x"), 0o644)
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("WriteFileAtomic unexpectedly succeeded")
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("WriteFileAtomic hung (possible deadlock in chaos error injection)")
	}
}

// TestChaosFile_PartialReadDoesNotSkipBytes verifies that partial reads don't
// corrupt data. When ChaosFS truncates a read (returning fewer bytes than
// requested), the file offset must advance only by the bytes actually returned,
// not the bytes requested. A buggy implementation that advances by the request
// size would skip bytes, causing io.ReadAll to return incomplete data.
func TestChaosFile_PartialReadDoesNotSkipBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")

	content := bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz"), 200) // > io.ReadAll initial buffer

	realFS := NewReal()
	if err := realFS.WriteFileAtomic(path, content, 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	chaosFS := NewChaos(realFS, 12345, ChaosConfig{
		PartialReadRate: 1.0, // Always partial.
	})
	chaosFS.SetMode(ChaosModeActive)

	f, err := chaosFS.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if !bytes.Equal(got, content) {
		t.Fatalf("partial reads must not drop bytes: got=%d bytes, want=%d", len(got), len(content))
	}
}

// TestChaosErrors_PreserveOsErrorClassification checks that ChaosError (the
// wrapper chaos.go actually returns from pathError) keeps errors.Is/As and
// the os.Is* classification helpers working through the wrap, so callers
// that branch on os.IsNotExist/os.IsPermission/etc. behave identically
// whether the error came from the real filesystem or from Chaos.
func TestChaosErrors_PreserveOsErrorClassification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "path")

	cases := []struct {
		name  string
		errno syscall.Errno
	}{
		{name: "ENOENT", errno: syscall.ENOENT},
		{name: "EACCES", errno: syscall.EACCES},
		{name: "EPERM", errno: syscall.EPERM},
		{name: "EROFS", errno: syscall.EROFS},
		{name: "EIO", errno: syscall.EIO},
		{name: "ENOSPC", errno: syscall.ENOSPC},
	}

	classifiers := []struct {
		name string
		fn   func(error) bool
	}{
		{name: "os.IsNotExist", fn: os.IsNotExist},
		{name: "os.IsPermission", fn: os.IsPermission},
		{name: "os.IsExist", fn: os.IsExist},
	}

	targets := []struct {
		name string
		err  error
	}{
		{name: "io/fs.ErrNotExist", err: iofs.ErrNotExist},
		{name: "io/fs.ErrPermission", err: iofs.ErrPermission},
		{name: "io/fs.ErrExist", err: iofs.ErrExist},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := &iofs.PathError{Op: "op", Path: path, Err: tc.errno}
			chaosErr := pathError("op", path, tc.errno)

			if got, want := IsChaosErr(base), false; got != want {
				t.Fatalf("IsChaosErr(base)=%t, want %t", got, want)
			}

			if got, want := IsChaosErr(chaosErr), true; got != want {
				t.Fatalf("IsChaosErr(chaosErr)=%t, want %t", got, want)
			}

			var pathErr *iofs.PathError
			if got, want := errors.As(chaosErr, &pathErr), true; got != want {
				t.Fatalf("errors.As(chaosErr, *fs.PathError)=%t, want %t (got %T)", got, want, chaosErr)
			}

			if got, want := pathErr.Op, "op"; got != want {
				t.Fatalf("PathError.Op=%q, want %q", got, want)
			}

			if got, want := pathErr.Path, path; got != want {
				t.Fatalf("PathError.Path=%q, want %q", got, want)
			}

			// The ChaosError wrapper must not break stdlib error classification helpers.
			for _, c := range classifiers {
				if got, want := c.fn(chaosErr), c.fn(base); got != want {
					t.Fatalf("%s(chaosErr)=%t, want %t (base=%v chaosErr=%v)", c.name, got, want, base, chaosErr)
				}
			}

			// errors.Is should behave the same as a plain *fs.PathError with the errno.
			if got, want := errors.Is(chaosErr, tc.errno), errors.Is(base, tc.errno); got != want {
				t.Fatalf("errors.Is(err, %s)=%t, want %t (base=%v chaosErr=%v)", tc.name, got, want, base, chaosErr)
			}

			for _, target := range targets {
				if got, want := errors.Is(chaosErr, target.err), errors.Is(base, target.err); got != want {
					t.Fatalf("errors.Is(chaosErr, %s)=%t, want %t (base=%v chaosErr=%v)", target.name, got, want, base, chaosErr)
				}
			}
		})
	}
}

// TestChaosErrors_RenameUsesLinkError checks that a rename fault is reported
// as *os.LinkError (matching os.Rename's own error shape), with Old/New set,
// rather than the *fs.PathError shape every other chaos-injected op uses.
func TestChaosErrors_RenameUsesLinkError(t *testing.T) {
	err := linkError("rename", "/a", "/b", syscall.EXDEV)

	if !IsChaosErr(err) {
		t.Fatalf("IsChaosErr(renameErr)=false, want true")
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		t.Fatalf("errors.As(renameErr, *os.LinkError)=false, want true (got %T)", err)
	}

	if linkErr.Old != "/a" || linkErr.New != "/b" {
		t.Fatalf("LinkError.Old/New = %q/%q, want /a//b", linkErr.Old, linkErr.New)
	}

	if !errors.Is(err, syscall.EXDEV) {
		t.Fatalf("errors.Is(renameErr, EXDEV)=false, want true")
	}
}

func TestChaos_RemoveAll_NonExistentCanStillFail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist")

	// Real os.RemoveAll treats a missing path as success.
	err := os.RemoveAll(path)
	if err != nil {
		t.Fatalf("os.RemoveAll: %v", err)
	}

	realFS := NewReal()
	chaosFS := NewChaos(realFS, 0, ChaosConfig{
		RemoveFailRate: 1.0, // Injects whether or not the path exists.
	})
	chaosFS.SetMode(ChaosModeActive)

	err = chaosFS.RemoveAll(path)
	if err == nil || !IsChaosErr(err) {
		t.Fatalf("Chaos.RemoveAll err=%v, want an injected error even for a missing path", err)
	}
}
