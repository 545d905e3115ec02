package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"attendance-sheet-go/models"
)

// FileStore keeps the roster as a JSON array in a single file.
// Every mutation rewrites the whole file while holding mu.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewFileStore creates a FileStore backed by path. The file is created lazily.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) List(ctx context.Context) ([]models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Count(ctx context.Context) (int, error) {
	students, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(students), nil
}

func (s *FileStore) Add(ctx context.Context, student models.Student) (models.Student, error) {
	student, ok := normalizeStudent(student)
	if !ok {
		return models.Student{}, ErrMissingField
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := s.read()
	if err != nil {
		return models.Student{}, err
	}
	for _, existing := range students {
		if existing.ID == student.ID {
			return models.Student{}, ErrDuplicateID
		}
	}

	students = append(students, student)
	if err := s.write(students); err != nil {
		return models.Student{}, err
	}
	s.logger.Info("student added", zap.String("id", student.ID), zap.String("class", student.ClassName))
	return student, nil
}

func (s *FileStore) Update(ctx context.Context, id, name, className string) (models.Student, error) {
	name, className, ok := normalizeUpdate(name, className)
	if !ok {
		return models.Student{}, ErrMissingField
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := s.read()
	if err != nil {
		return models.Student{}, err
	}
	idx := -1
	for i := range students {
		if students[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return models.Student{}, ErrNotFound
	}

	students[idx].Name = name
	students[idx].ClassName = className
	if err := s.write(students); err != nil {
		return models.Student{}, err
	}
	s.logger.Info("student updated", zap.String("id", id))
	return students[idx], nil
}

func (s *FileStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := s.read()
	if err != nil {
		return err
	}
	kept := make([]models.Student, 0, len(students))
	for _, st := range students {
		if st.ID != id {
			kept = append(kept, st)
		}
	}
	if len(kept) == len(students) {
		return ErrNotFound
	}

	if err := s.write(kept); err != nil {
		return err
	}
	s.logger.Info("student removed", zap.String("id", id))
	return nil
}

// read must be called with mu held. A missing file is an empty roster.
func (s *FileStore) read() ([]models.Student, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Student{}, nil
		}
		s.logger.Error("failed to read roster file", zap.String("path", s.path), zap.Error(err))
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, s.path, err)
	}

	students := []models.Student{}
	if len(data) == 0 {
		return students, nil
	}
	if err := json.Unmarshal(data, &students); err != nil {
		s.logger.Error("failed to decode roster file", zap.String("path", s.path), zap.Error(err))
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStorage, s.path, err)
	}
	return students, nil
}

// write must be called with mu held. The file is replaced by rename so readers
// never observe a partially written roster.
func (s *FileStore) write(students []models.Student) error {
	data, err := json.MarshalIndent(students, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode roster: %v", ErrStorage, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".roster-*.json")
	if err != nil {
		s.logger.Error("failed to create temp roster file", zap.String("dir", dir), zap.Error(err))
		return fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write temp file: %v", ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: sync temp file: %v", ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %v", ErrStorage, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		s.logger.Error("failed to replace roster file", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("%w: replace %s: %v", ErrStorage, s.path, err)
	}
	return nil
}
