// Package fs implements a DocumentSource over a directory of notes.
// Document ids are vault-relative paths with forward slashes.
package fs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"vaultindex/internal/domain"
)

type VaultSource struct {
	root     string
	includes []string
	excludes []string
}

func NewVaultSource(root string, includes, excludes []string) *VaultSource {
	if len(includes) == 0 {
		includes = []string{"**/*.md"}
	}
	return &VaultSource{
		root:     root,
		includes: includes,
		excludes: excludes,
	}
}

func (s *VaultSource) ListAll() ([]domain.DocumentInfo, error) {
	var docs []domain.DocumentInfo

	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if s.shouldExclude(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if s.shouldInclude(rel) && !s.shouldExclude(rel) {
			docs = append(docs, domain.DocumentInfo{
				ID:      rel,
				Title:   titleFromPath(rel),
				ModTime: info.ModTime(),
			})
		}
		return nil
	})

	return docs, err
}

func (s *VaultSource) Read(id string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(id)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *VaultSource) Exists(id string) bool {
	info, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(id)))
	return err == nil && !info.IsDir()
}

func (s *VaultSource) shouldInclude(path string) bool {
	for _, pattern := range s.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (s *VaultSource) shouldExclude(path string) bool {
	for _, pattern := range s.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
