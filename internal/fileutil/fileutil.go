// Package fileutil provides atomic filesystem primitives used throughout
// burl so that a crash or concurrent reader never observes a partially
// written task file or a half-completed bucket move.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// EnsureDir creates a directory and all parent directories with 0755 permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// AtomicWrite writes data to path by first writing to a hidden temp file in
// the same directory, fsyncing it, then renaming it over the target. No
// partial file is ever visible at path: either the rename happens and the
// whole of data is there, or it doesn't and the old content (or nothing)
// remains.
func AtomicWrite(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return fmt.Errorf("ensuring parent dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file %s: %w", tmpPath, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsyncing temp file %s: %w", tmpPath, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file %s: %w", tmpPath, err)
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file %s: %w", tmpPath, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, err)
	}
	syncDir(dir)
	return nil
}

// syncDir fsyncs a directory entry on POSIX so the rename above survives a
// crash. Best-effort: some filesystems (and all of Windows) don't support
// fsync on a directory handle, so failures here are silently ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}

// isCrossDevice reports whether err indicates a rename failed because the
// source and destination are on different filesystems (EXDEV).
func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return false
}

// MoveFile moves src to dst, used for bucket moves (READY -> DOING, etc).
// It first attempts a plain rename; if that fails with a cross-device
// indication, it falls back to reading src, atomically writing dst, then
// removing src. The destination write is itself atomic, so the fallback can
// never leave a partial destination.
func MoveFile(src, dst string) error {
	dstDir := filepath.Dir(dst)
	if err := EnsureDir(dstDir); err != nil {
		return fmt.Errorf("ensuring destination dir %s: %w", dstDir, err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		syncDir(dstDir)
		syncDir(filepath.Dir(src))
		return nil
	}
	if !isCrossDevice(err) {
		return fmt.Errorf("moving %s to %s: %w", src, dst, err)
	}

	data, readErr := os.ReadFile(src)
	if readErr != nil {
		return fmt.Errorf("reading %s for cross-device move: %w", src, readErr)
	}
	info, statErr := os.Stat(src)
	perm := os.FileMode(0644)
	if statErr == nil {
		perm = info.Mode().Perm()
	}
	if writeErr := AtomicWrite(dst, data, perm); writeErr != nil {
		return fmt.Errorf("writing %s for cross-device move: %w", dst, writeErr)
	}
	if rmErr := os.Remove(src); rmErr != nil {
		return fmt.Errorf("removing source %s after cross-device move: %w", src, rmErr)
	}
	return nil
}

// CopyFile copies src to dst verbatim, used by the cross-device move
// fallback's callers when a byte-identical duplicate (rather than a move)
// is wanted.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	info, err := in.Stat()
	perm := os.FileMode(0644)
	if err == nil {
		perm = info.Mode().Perm()
	}
	return AtomicWrite(dst, data, perm)
}
