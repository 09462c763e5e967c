package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rulebook-classifier/internal/loader"
	"rulebook-classifier/internal/rulebook"
)

// FileStore reads rulebooks from a directory laid out as
// <dir>/<organization>.<yaml|yml|json|toml>.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file holding organization's rulebook.
func (s *FileStore) Path(organization string) (string, error) {
	for _, ext := range loader.Extensions {
		path := filepath.Join(s.dir, organization+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrNotFound, organization, s.dir)
}

func (s *FileStore) Get(ctx context.Context, organization string) (*rulebook.Rulebook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.Path(organization)
	if err != nil {
		return nil, err
	}

	rb, err := loader.LoadRulebookFile(path)
	if err != nil {
		return nil, err
	}
	if rb.Organization() != organization {
		return nil, fmt.Errorf("%s declares organization %q, expected %q", path, rb.Organization(), organization)
	}
	return rb, nil
}

// Organizations lists the file stems with a supported extension, sorted.
func (s *FileStore) Organizations(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read rulebook directory: %w", err)
	}

	seen := make(map[string]bool)
	var orgs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, err := loader.FormatFromPath(name); err != nil {
			continue
		}
		org := strings.TrimSuffix(name, filepath.Ext(name))
		if !seen[org] {
			seen[org] = true
			orgs = append(orgs, org)
		}
	}
	sort.Strings(orgs)
	return orgs, nil
}

// OrganizationForPath maps a file inside the store directory back to its
// organization key. ok is false for files the store would not read.
func (s *FileStore) OrganizationForPath(path string) (string, bool) {
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(s.dir) {
		return "", false
	}
	if _, err := loader.FormatFromPath(path); err != nil {
		return "", false
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)), true
}
