package scope

import (
	"context"
	"os"
	"path/filepath"

	orcherrors "github.com/ngoclaw/ngoclaw/orchestrator/pkg/errors"
)

// Directory is the trivial Source backed by a root path on disk.
type Directory struct {
	root string
}

// NewDirectory creates a Directory source rooted at root.
func NewDirectory(root string) *Directory {
	return &Directory{root: root}
}

func (d *Directory) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(d.root, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, orcherrors.NewInternalErrorWithCause("stat scope file", err)
}

func (d *Directory) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, orcherrors.NewInternalErrorWithCause("list scope directory", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (d *Directory) Read(_ context.Context, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(d.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", orcherrors.NewPromptFileError(name, err)
		}
		return "", orcherrors.NewInternalErrorWithCause("read scope file", err)
	}
	return string(data), nil
}

// Materialize for a directory source is just the joined path — nothing
// to extract, the file already lives on disk.
func (d *Directory) Materialize(_ context.Context, name string) (string, error) {
	path := filepath.Join(d.root, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", orcherrors.NewPromptFileError(name, err)
		}
		return "", orcherrors.NewInternalErrorWithCause("stat scope file", err)
	}
	return path, nil
}
