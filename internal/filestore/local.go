package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"leasecover/pkg/platform/sentinel"
)

const localScheme = "file://"

// Local writes binaries under a root directory. Locations are relative to
// the root so the directory can move between hosts.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: root}, nil
}

func (l *Local) Put(ctx context.Context, pathHint string, content []byte, contentType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	sum := Checksum(content)
	key := objectKey(pathHint, sum, contentType)
	full := filepath.Join(l.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return Object{}, fmt.Errorf("create object dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return Object{}, fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return Object{}, fmt.Errorf("commit object: %w", err)
	}
	return Object{Location: localScheme + key, Checksum: sum, Size: int64(len(content))}, nil
}

func (l *Local) Delete(_ context.Context, location string) error {
	full, err := l.resolve(location)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Open returns the stored binary for download.
func (l *Local) Open(location string) ([]byte, error) {
	full, err := l.resolve(location)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, sentinel.ErrNotFound
	}
	return b, err
}

func (l *Local) resolve(location string) (string, error) {
	key, ok := strings.CutPrefix(location, localScheme)
	if !ok || key == "" {
		return "", fmt.Errorf("location %q is not a local object", location)
	}
	full := filepath.Join(l.root, filepath.FromSlash(key))
	if !strings.HasPrefix(full, filepath.Clean(l.root)+string(filepath.Separator)) {
		return "", fmt.Errorf("location %q escapes storage root", location)
	}
	return full, nil
}
