// Package filestore provides typed read/write of YAML/JSON documents,
// recursive directory copy and delete, listing, and size accounting.
// Callers encode the document; the store does not interpret semantics.
//
// No third-party filesystem library appears anywhere in the example
// pack, so this is a deliberately thin wrapper over os/io/path-filepath.
package filestore

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"encoding/json"

	"github.com/Lmdudester/Garcon/internal/apperr"
)

// Store is a stateless handle onto the local filesystem. It carries no
// fields; it exists so call sites read as store.ReadYAML(...) alongside
// other components that do carry state, and so it can later be
// interface-substituted in tests without changing call sites.
type Store struct{}

func New() *Store { return &Store{} }

// EnsureDir creates dir and any missing parents. Idempotent.
func (s *Store) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.KindFileSystem, "create directory "+dir, err)
	}
	return nil
}

// Exists reports whether path exists (file or directory).
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory.
func (s *Store) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ReadYAML decodes the YAML document at path into v.
func (s *Store) ReadYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperr.Wrap(apperr.KindFileSystem, "read "+path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return apperr.Wrap(apperr.KindFileSystem, "parse yaml "+path, err)
	}
	return nil
}

// WriteYAML encodes v as YAML and writes it to path atomically
// (write-then-rename).
func (s *Store) WriteYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "encode yaml", err)
	}
	return s.atomicWrite(path, data)
}

// ReadJSON decodes the JSON document at path into v.
func (s *Store) ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperr.Wrap(apperr.KindFileSystem, "read "+path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Wrap(apperr.KindFileSystem, "parse json "+path, err)
	}
	return nil
}

// WriteJSON encodes v as indented JSON and writes it to path atomically.
func (s *Store) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "encode json", err)
	}
	return s.atomicWrite(path, data)
}

func (s *Store) atomicWrite(path string, data []byte) error {
	if err := s.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperr.Wrap(apperr.KindFileSystem, "write "+tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apperr.Wrap(apperr.KindFileSystem, "rename "+tmp+" -> "+path, err)
	}
	return nil
}

// CopyTree recursively copies src into dst, creating dst if needed.
// Existing files under dst are overwritten; files present only under
// dst are left untouched (pure copy, not sync — see the update protocol
// design note).
func (s *Store) CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		if d.Type()&fs.ModeSymlink != 0 {
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			return os.Symlink(linkTarget, target)
		}

		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// RemoveTree recursively deletes path. Missing path is not an error.
func (s *Store) RemoveTree(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return apperr.Wrap(apperr.KindFileSystem, "remove "+path, err)
	}
	return nil
}

// ListDir lists entries directly under dir, optionally filtered to a
// single extension (e.g. ".yaml"). A missing directory yields an empty
// list, not an error.
func (s *Store) ListDir(dir string, extFilter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindFileSystem, "list "+dir, err)
	}

	var names []string
	for _, e := range entries {
		if extFilter != "" && !strings.EqualFold(filepath.Ext(e.Name()), extFilter) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// DirSize sums the size in bytes of every regular file under dir.
func (s *Store) DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, apperr.Wrap(apperr.KindFileSystem, "size "+dir, err)
	}
	return total, nil
}
