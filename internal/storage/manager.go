package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linkfinder/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrFileNotFound is returned for unknown file ids.
var ErrFileNotFound = errors.New("file not found")

// File statuses.
const (
	StatusUploaded = "uploaded"
	StatusLoaded   = "loaded"
	StatusError    = "error"
)

// Store defines the interface for workbook file storage.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	SaveBytes(name string, data []byte) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.FileInfo, error)
	SetStatus(id string, status string) error
	GetFilePath(id string) (string, error)
}

// metaExt is the suffix of the sidecar that holds a file's metadata.
const metaExt = ".meta"

// LocalStore implements Store using the local filesystem. Each upload is
// stored as <id> next to an <id>.meta sidecar, so the index survives
// restarts.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
}

// NewLocalStore creates a new LocalStore and rebuilds its index from the
// sidecars in uploadDir. Uploads without a readable sidecar are removed.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	s := &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) loadIndex() error {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return fmt.Errorf("reading upload directory: %w", err)
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			present[e.Name()] = true
		}
	}

	for name := range present {
		if !strings.HasSuffix(name, metaExt) {
			continue
		}
		id := strings.TrimSuffix(name, metaExt)
		info, err := s.readMeta(id)
		if err != nil || info.ID != id || !present[id] {
			os.Remove(s.metaPath(id))
			continue
		}
		s.files[id] = info
	}

	for name := range present {
		if strings.HasSuffix(name, metaExt) {
			continue
		}
		if _, ok := s.files[name]; !ok {
			if err := os.Remove(filepath.Join(s.uploadDir, name)); err != nil {
				return fmt.Errorf("removing orphaned upload %s: %w", name, err)
			}
		}
	}
	return nil
}

func (s *LocalStore) metaPath(id string) string {
	return filepath.Join(s.uploadDir, id+metaExt)
}

func (s *LocalStore) readMeta(id string) (*models.FileInfo, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		return nil, err
	}
	var info models.FileInfo
	if err := msgpack.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", id, err)
	}
	return &info, nil
}

func (s *LocalStore) writeMeta(info *models.FileInfo) error {
	data, err := msgpack.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(info.ID), data, 0644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// Save saves a file to the local filesystem.
func (s *LocalStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		UploadedAt: time.Now(),
		Status:     StatusUploaded,
	}
	if err := s.writeMeta(info); err != nil {
		os.Remove(path)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return copyInfo(info), nil
}

// SaveBytes saves an in-memory file.
func (s *LocalStore) SaveBytes(name string, data []byte) (*models.FileInfo, error) {
	return s.Save(name, bytes.NewReader(data))
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	return copyInfo(info), nil
}

// List returns the most recent files.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, copyInfo(info))
	}

	// Sort by UploadedAt desc
	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	path := filepath.Join(s.uploadDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	if err := os.Remove(s.metaPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting metadata: %w", err)
	}

	delete(s.files, id)
	return nil
}

// Rename updates the display name of a file.
func (s *LocalStore) Rename(id string, newName string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	updated := copyInfo(info)
	updated.Name = newName
	if err := s.writeMeta(updated); err != nil {
		return nil, err
	}
	s.files[id] = updated
	return copyInfo(updated), nil
}

// SetStatus records the outcome of the last load of a file.
func (s *LocalStore) SetStatus(id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	updated := copyInfo(info)
	updated.Status = status
	if err := s.writeMeta(updated); err != nil {
		return err
	}
	s.files[id] = updated
	return nil
}

// GetFilePath returns the absolute path to a file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	return filepath.Join(s.uploadDir, id), nil
}

func copyInfo(info *models.FileInfo) *models.FileInfo {
	c := *info
	return &c
}
