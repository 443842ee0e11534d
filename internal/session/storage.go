package session

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Laisky/errors/v2"
	"github.com/redis/go-redis/v9"
)

// Storage is the durable slot that keeps one serialized session.
type Storage interface {
	// Load returns the stored bytes, or nil when nothing is stored.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored bytes.
	Save(ctx context.Context, data []byte) error
	// Remove deletes the stored bytes. Removing an empty slot is not an error.
	Remove(ctx context.Context) error
}

// FileStorage keeps the session in a single json file.
type FileStorage struct {
	path string
}

// NewFileStorage creates a file-backed storage at path.
func NewFileStorage(path string) (*FileStorage, error) {
	if path == "" {
		return nil, errors.New("session file path is empty")
	}

	return &FileStorage{path: path}, nil
}

// Path returns the file location.
func (s *FileStorage) Path() string {
	return s.path
}

// Load implements Storage.
func (s *FileStorage) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read session file %q", s.path)
	}

	return data, nil
}

// Save implements Storage. The file is written atomically with mode 0600.
func (s *FileStorage) Save(_ context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return errors.Wrap(err, "create temp session file")
	}
	defer os.Remove(tmp.Name()) // nolint: errcheck

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write session file")
	}
	if err = tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "chmod session file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "close session file")
	}

	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "replace session file")
	}

	return nil
}

// Remove implements Storage.
func (s *FileStorage) Remove(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove session file %q", s.path)
	}

	return nil
}

// RedisStorage keeps the session under one redis key, so several
// workstations can share a login.
type RedisStorage struct {
	rdb redis.UniversalClient
	key string
}

// NewRedisStorage wraps an existing redis client.
func NewRedisStorage(rdb redis.UniversalClient, key string) (*RedisStorage, error) {
	if rdb == nil {
		return nil, errors.New("redis client is nil")
	}
	if key == "" {
		return nil, errors.New("redis session key is empty")
	}

	return &RedisStorage{rdb: rdb, key: key}, nil
}

// Load implements Storage.
func (s *RedisStorage) Load(ctx context.Context) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get redis key %q", s.key)
	}

	return data, nil
}

// Save implements Storage. The key does not expire; logout removes it.
func (s *RedisStorage) Save(ctx context.Context, data []byte) error {
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return errors.Wrapf(err, "set redis key %q", s.key)
	}

	return nil
}

// Remove implements Storage.
func (s *RedisStorage) Remove(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return errors.Wrapf(err, "del redis key %q", s.key)
	}

	return nil
}
