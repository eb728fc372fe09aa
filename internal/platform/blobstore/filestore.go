package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileStore writes each blob to <root>/<id[:2]>/<id> with its metadata in a
// sibling <id>.json file.
type FileStore struct {
	root    string
	maxSize int64
}

// NewFileStore creates root if needed.
func NewFileStore(root string, maxSize int64) (*FileStore, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", root, err)
	}
	return &FileStore{root: root, maxSize: maxSize}, nil
}

func (s *FileStore) paths(id string) (dir, data, meta string, err error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", "", "", ErrBlobNotFound
	}
	dir = filepath.Join(s.root, id[:2])
	return dir, filepath.Join(dir, id), filepath.Join(dir, id+".json"), nil
}

func (s *FileStore) Put(_ context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	meta, data, err := readLimited(meta, content, s.maxSize)
	if err != nil {
		return nil, err
	}
	dir, dataPath, metaPath, err := s.paths(meta.ID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode blob metadata: %w", err)
	}
	if err := writeAtomic(dataPath, data); err != nil {
		return nil, err
	}
	if err := writeAtomic(metaPath, encoded); err != nil {
		_ = os.Remove(dataPath)
		return nil, err
	}
	return &meta, nil
}

func (s *FileStore) Open(_ context.Context, id string) (io.ReadCloser, *Metadata, error) {
	_, dataPath, metaPath, err := s.paths(id)
	if err != nil {
		return nil, nil, err
	}

	raw, err := os.ReadFile(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read blob metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nil, fmt.Errorf("decode blob metadata: %w", err)
	}

	f, err := os.Open(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}
	return f, &meta, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	_, dataPath, metaPath, err := s.paths(id)
	if err != nil {
		return err
	}
	if err := os.Remove(metaPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("delete blob metadata: %w", err)
	}
	if err := os.Remove(dataPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
