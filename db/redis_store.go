package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"attendance-sheet-go/config"
	"attendance-sheet-go/models"
)

const (
	studentsKey       = "students" // List: student IDs in insertion order
	studentInfoPrefix = "student:" // Hash prefix: student:{id} -> stores student details
)

// RedisStore keeps the roster in Redis.
// mu serializes read-modify-write sequences issued by this process.
type RedisStore struct {
	Client *redis.Client
	mu     sync.Mutex
	logger *zap.Logger
}

// NewRedisStore creates a RedisStore on an existing client
func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{Client: client, logger: logger}
}

// Helper to generate student info key
func getStudentInfoKey(studentID string) string {
	return studentInfoPrefix + studentID
}

func (s *RedisStore) List(ctx context.Context) ([]models.Student, error) {
	ids, err := s.Client.LRange(ctx, studentsKey, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.Student{}, nil
		}
		s.logger.Error("failed to list student IDs", zap.Error(err))
		return nil, fmt.Errorf("%w: list student IDs: %v", ErrStorage, err)
	}

	students := make([]models.Student, 0, len(ids))
	for _, id := range ids {
		student, err := s.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if student != nil {
			students = append(students, *student)
		}
	}
	return students, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.Client.LLen(ctx, studentsKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: count students: %v", ErrStorage, err)
	}
	return int(n), nil
}

func (s *RedisStore) Add(ctx context.Context, student models.Student) (models.Student, error) {
	student, ok := normalizeStudent(student)
	if !ok {
		return models.Student{}, ErrMissingField
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	studentKey := getStudentInfoKey(student.ID)
	exists, err := s.Client.Exists(ctx, studentKey).Result()
	if err != nil {
		s.logger.Error("failed to check student existence", zap.String("id", student.ID), zap.Error(err))
		return models.Student{}, fmt.Errorf("%w: check student %s: %v", ErrStorage, student.ID, err)
	}
	if exists > 0 {
		return models.Student{}, ErrDuplicateID
	}

	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, studentKey, map[string]interface{}{
			"id":        student.ID,
			"name":      student.Name,
			"className": student.ClassName,
		})
		pipe.RPush(ctx, studentsKey, student.ID)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to add student", zap.String("id", student.ID), zap.Error(err))
		return models.Student{}, fmt.Errorf("%w: add student %s: %v", ErrStorage, student.ID, err)
	}
	s.logger.Info("student added", zap.String("id", student.ID), zap.String("class", student.ClassName))
	return student, nil
}

func (s *RedisStore) Update(ctx context.Context, id, name, className string) (models.Student, error) {
	name, className, ok := normalizeUpdate(name, className)
	if !ok {
		return models.Student{}, ErrMissingField
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(ctx, id)
	if err != nil {
		return models.Student{}, err
	}
	if current == nil {
		return models.Student{}, ErrNotFound
	}

	err = s.Client.HSet(ctx, getStudentInfoKey(id), map[string]interface{}{
		"name":      name,
		"className": className,
	}).Err()
	if err != nil {
		s.logger.Error("failed to update student", zap.String("id", id), zap.Error(err))
		return models.Student{}, fmt.Errorf("%w: update student %s: %v", ErrStorage, id, err)
	}
	current.Name = name
	current.ClassName = className
	s.logger.Info("student updated", zap.String("id", id))
	return *current, nil
}

func (s *RedisStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var del *redis.IntCmd
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, getStudentInfoKey(id))
		pipe.LRem(ctx, studentsKey, 0, id)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to remove student", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("%w: remove student %s: %v", ErrStorage, id, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	s.logger.Info("student removed", zap.String("id", id))
	return nil
}

// get returns nil without error when the student does not exist
func (s *RedisStore) get(ctx context.Context, id string) (*models.Student, error) {
	data, err := s.Client.HGetAll(ctx, getStudentInfoKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		s.logger.Error("failed to get student", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: get student %s: %v", ErrStorage, id, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &models.Student{
		ID:        data["id"],
		Name:      data["name"],
		ClassName: data["className"],
	}, nil
}

// InitializeRedisClient creates and tests a Redis client connection
func InitializeRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
