// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package atomicfile persists small JSON state files so that a crash
// at any point leaves either the old content or the new content on
// disk, never a mix.
//
// A write goes to a temporary file in the destination directory, is
// fsynced, and is renamed over the destination; the directory is then
// fsynced so the rename itself survives power loss. Writers in
// different processes are serialized with an advisory flock on a
// sibling ".lock" file.
//
// Reads go through [github.com/tidwall/jsonc], so state files edited by
// hand may contain comments and trailing commas.
package atomicfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	"golang.org/x/sys/unix"
)

var (
	// ErrWriteFailed wraps every failure to persist a file. The
	// caller's in-memory state remains valid when it is returned.
	ErrWriteFailed = errors.New("state file write failed")

	// ErrMalformed wraps a decode failure of an existing file.
	ErrMalformed = errors.New("state file malformed")
)

// FileMode is the permission of every file written by this package.
const FileMode = 0o600

// WriteFile atomically replaces path with data, creating the parent
// directory when missing.
func WriteFile(path string, data []byte) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrWriteFailed, directory, err)
	}

	unlock, err := Lock(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer unlock()

	file, err := os.CreateTemp(directory, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temporary file for %s: %w", ErrWriteFailed, path, err)
	}
	temporaryPath := file.Name()

	fail := func(step string, err error) error {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("%w: %s %s: %w", ErrWriteFailed, step, path, err)
	}
	if err := file.Chmod(FileMode); err != nil {
		return fail("setting mode of", err)
	}
	if _, err := file.Write(data); err != nil {
		return fail("writing", err)
	}
	if err := file.Sync(); err != nil {
		return fail("syncing", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("%w: closing %s: %w", ErrWriteFailed, path, err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("%w: renaming into %s: %w", ErrWriteFailed, path, err)
	}

	if parent, err := os.Open(directory); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// WriteJSON encodes value as indented JSON with a trailing newline and
// writes it with WriteFile.
func WriteJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", ErrWriteFailed, path, err)
	}
	return WriteFile(path, append(data, '\n'))
}

// ReadJSON decodes path into value. It returns false with a nil error
// when the file does not exist, and an error wrapping ErrMalformed
// when the content does not decode.
func ReadJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), value); err != nil {
		return true, fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}
	return true, nil
}

// Lock takes an exclusive advisory lock on path+".lock", blocking
// until it is available. The returned function releases it.
func Lock(path string) (func(), error) {
	lockPath := path + ".lock"
	file, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, FileMode)
	if err != nil {
		return nil, fmt.Errorf("opening lock %s: %w", lockPath, err)
	}
	for {
		err = unix.Flock(int(file.Fd()), unix.LOCK_EX)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("locking %s: %w", lockPath, err)
	}
	return func() {
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
		file.Close()
	}, nil
}
