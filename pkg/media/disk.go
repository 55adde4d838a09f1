package media

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore stores media objects on the local filesystem. Keys map to
// file paths under the root directory; a sidecar .meta file records the
// content type.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a DiskStore rooted at dir, creating it if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir}, nil
}

type diskMeta struct {
	ContentType string `json:"content_type"`
}

// Save stores the object under key.
func (s *DiskStore) Save(ctx context.Context, key, contentType string, r io.Reader) (*Object, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	meta, _ := json.Marshal(diskMeta{ContentType: contentType})
	if err := os.WriteFile(path+".meta", meta, 0644); err != nil {
		os.Remove(path)
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &Object{
		Key:         key,
		ContentType: contentType,
		Size:        written,
		ModTime:     info.ModTime(),
	}, nil
}

// Open returns a reader over the object's bytes.
func (s *DiskStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Stat describes the object without reading it.
func (s *DiskStore) Stat(ctx context.Context, key string) (*Object, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	obj := &Object{Key: key, Size: info.Size(), ModTime: info.ModTime()}
	if data, err := os.ReadFile(path + ".meta"); err == nil {
		var meta diskMeta
		if json.Unmarshal(data, &meta) == nil {
			obj.ContentType = meta.ContentType
		}
	}
	return obj, nil
}

// Delete removes the object and its sidecar.
func (s *DiskStore) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	os.Remove(path + ".meta")
	return nil
}

// List returns keys under prefix.
func (s *DiskStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(path, ".meta") {
			return err
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// path maps key to a file path, rejecting traversal outside the root.
func (s *DiskStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrNotFound
	}
	return filepath.Join(s.dir, clean), nil
}
