package scope

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	orcherrors "github.com/ngoclaw/ngoclaw/orchestrator/pkg/errors"
)

// Zip is the Source backed by a zip archive, lazily opened and its
// layout detected on first access.
type Zip struct {
	path string

	mu       sync.Mutex
	opened   bool
	prefix   string
	verified bool
}

// NewZip creates a Zip source over the archive at path. No I/O happens
// until the first Exists/List/Read/Materialize call.
func NewZip(path string) *Zip {
	return &Zip{path: path}
}

var hexRunPattern = regexp.MustCompile(`[0-9a-f]+`)

// ensureReady opens the archive once, verifies its optional filename
// hash anchor, and caches its layout prefix.
func (z *Zip) ensureReady() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.opened {
		return nil
	}

	if _, err := os.Stat(z.path); err != nil {
		if os.IsNotExist(err) {
			return orcherrors.NewZipFileNotFoundError(z.path)
		}
		return orcherrors.NewInternalErrorWithCause("stat zip archive", err)
	}

	if !z.verified {
		if err := verifyHashAnchor(z.path); err != nil {
			return err
		}
		z.verified = true
	}

	prefix, err := detectLayout(z.path)
	if err != nil {
		return err
	}
	z.prefix = prefix
	z.opened = true
	return nil
}

// verifyHashAnchor checks the optional SHA-256 filename-anchor
// integrity convention: exactly one 64-char lowercase hex run in the
// archive's basename is the expected hash of the archive bytes.
func verifyHashAnchor(path string) error {
	basename := filepath.Base(path)
	runs := hexRunPattern.FindAllString(basename, -1)

	var run64 string
	for _, r := range runs {
		if len(r) > 64 {
			return orcherrors.NewZipAmbiguousError(basename)
		}
		if len(r) == 64 {
			if run64 != "" {
				return orcherrors.NewZipAmbiguousError(basename)
			}
			run64 = r
		}
	}
	if run64 == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return orcherrors.NewInternalErrorWithCause("read zip archive for hash check", err)
	}
	sum := sha256.Sum256(data)
	actual := hex.EncodeToString(sum[:])
	if actual != run64 {
		return orcherrors.NewZipHashMismatchError(run64, actual)
	}
	return nil
}

// detectLayout opens the archive and classifies it as flat (prefix "")
// or single-folder (prefix "foldername/"), per original_source's
// zip_scope.detect_layout.
func detectLayout(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", orcherrors.NewZipLayoutError("corrupt or unreadable zip archive: " + path)
	}
	defer r.Close()

	var fileNames []string
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		fileNames = append(fileNames, f.Name)
	}
	if len(fileNames) == 0 {
		return "", orcherrors.NewZipLayoutError("empty zip archive: " + path)
	}

	var rootFiles []string
	for _, n := range fileNames {
		if !strings.Contains(n, "/") {
			rootFiles = append(rootFiles, n)
		}
	}
	if len(rootFiles) == len(fileNames) {
		return "", nil
	}
	if len(rootFiles) > 0 {
		return "", orcherrors.NewZipLayoutError("mix of top-level files and subdirectories in " + path)
	}

	folders := map[string]bool{}
	for _, n := range fileNames {
		folders[strings.SplitN(n, "/", 2)[0]] = true
	}
	if len(folders) > 1 {
		return "", orcherrors.NewZipLayoutError("multiple top-level folders in " + path)
	}

	var folder string
	for f := range folders {
		folder = f
	}
	for _, n := range fileNames {
		if strings.Count(n, "/") > 1 {
			return "", orcherrors.NewZipLayoutError("files nested more than one level deep in " + path)
		}
	}
	return folder + "/", nil
}

func (z *Zip) Exists(_ context.Context, name string) (bool, error) {
	if err := z.ensureReady(); err != nil {
		return false, err
	}
	names, err := z.listBare()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (z *Zip) List(_ context.Context) ([]string, error) {
	if err := z.ensureReady(); err != nil {
		return nil, err
	}
	return z.listBare()
}

func (z *Zip) listBare() ([]string, error) {
	r, err := zip.OpenReader(z.path)
	if err != nil {
		return nil, orcherrors.NewZipLayoutError("corrupt or unreadable zip archive: " + z.path)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		if z.prefix != "" {
			if !strings.HasPrefix(f.Name, z.prefix) {
				continue
			}
			bare := f.Name[len(z.prefix):]
			if bare == "" {
				continue
			}
			names = append(names, bare)
		} else {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

func (z *Zip) Read(_ context.Context, name string) (string, error) {
	if err := z.ensureReady(); err != nil {
		return "", err
	}
	data, err := z.readBytes(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (z *Zip) readBytes(name string) ([]byte, error) {
	r, err := zip.OpenReader(z.path)
	if err != nil {
		return nil, orcherrors.NewZipLayoutError("corrupt or unreadable zip archive: " + z.path)
	}
	defer r.Close()

	fullName := z.prefix + name
	for _, f := range r.File {
		if f.Name != fullName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, orcherrors.NewInternalErrorWithCause("open zip entry", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, orcherrors.NewInternalErrorWithCause("read zip entry", err)
		}
		return data, nil
	}
	return nil, orcherrors.NewZipFileNotFoundError(name)
}

// Materialize extracts name to a uniquely named temp file whose suffix
// matches name's own extension. The caller owns deletion.
func (z *Zip) Materialize(_ context.Context, name string) (string, error) {
	if err := z.ensureReady(); err != nil {
		return "", err
	}
	data, err := z.readBytes(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "scope-*"+filepath.Ext(name))
	if err != nil {
		return "", orcherrors.NewInternalErrorWithCause("create temp file for materialize", err)
	}
	defer tmp.Close()

	if _, err := tmp.Write(data); err != nil {
		os.Remove(tmp.Name())
		return "", orcherrors.NewInternalErrorWithCause("write temp file for materialize", err)
	}
	return tmp.Name(), nil
}
