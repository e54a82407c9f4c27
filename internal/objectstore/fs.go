package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"docuchat/internal/util"
)

// FS stores objects under a root directory on local disk.
type FS struct {
	root string
}

func NewFS(root string) (*FS, error) {
	if err := util.EnsureDir(root); err != nil {
		return nil, err
	}
	return &FS{root: root}, nil
}

func (f *FS) Put(ctx context.Context, path string, data []byte) error {
	_ = ctx
	full, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := util.EnsureDir(filepath.Dir(full)); err != nil {
		return err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write object %s: %w", path, err)
	}
	return nil
}

func (f *FS) Get(ctx context.Context, path string) ([]byte, error) {
	_ = ctx
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", path, err)
	}
	return data, nil
}

// resolve rejects paths that would escape the store root. Rooting the path
// before Clean folds any ".." segments away instead of letting them climb.
func (f *FS) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return filepath.Join(f.root, clean), nil
}
