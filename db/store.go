package db

import (
	"context"
	"errors"
	"strings"

	"attendance-sheet-go/models"
)

var (
	ErrMissingField = errors.New("student ID, name, and class are required")
	ErrDuplicateID  = errors.New("student ID is already registered")
	ErrNotFound     = errors.New("student not found")
	ErrStorage      = errors.New("roster storage failure")
)

// StudentStore is the durable roster
type StudentStore interface {
	// List returns every student in insertion order.
	List(ctx context.Context) ([]models.Student, error)
	Add(ctx context.Context, student models.Student) (models.Student, error)
	// Update replaces name and class of an existing student. The ID never changes.
	Update(ctx context.Context, id, name, className string) (models.Student, error)
	Remove(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// normalizeStudent trims all fields and reports whether any is empty
func normalizeStudent(s models.Student) (models.Student, bool) {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.ClassName = strings.TrimSpace(s.ClassName)
	return s, s.ID != "" && s.Name != "" && s.ClassName != ""
}

// normalizeUpdate trims the editable fields and reports whether both are present
func normalizeUpdate(name, className string) (string, string, bool) {
	name = strings.TrimSpace(name)
	className = strings.TrimSpace(className)
	return name, className, name != "" && className != ""
}

// ListClasses returns the distinct class names in the order they first appear
func ListClasses(ctx context.Context, store StudentStore) ([]string, error) {
	students, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	classes := make([]string, 0)
	for _, s := range students {
		if !seen[s.ClassName] {
			seen[s.ClassName] = true
			classes = append(classes, s.ClassName)
		}
	}
	return classes, nil
}

// StudentsByClass returns the students of one class, preserving roster order
func StudentsByClass(ctx context.Context, store StudentStore, className string) ([]models.Student, error) {
	students, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]models.Student, 0)
	for _, s := range students {
		if s.ClassName == className {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}
