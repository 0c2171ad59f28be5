package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"schoolportal/internal/model"
)

// DefaultKey is the storage key of the persisted user.
const DefaultKey = "mmps-app-user"

// Persister keeps the signed-in user between process restarts.
type Persister interface {
	// Load returns nil and no error when nothing is stored.
	Load(ctx context.Context) (*model.User, error)
	Save(ctx context.Context, u model.User) error
	Clear(ctx context.Context) error
}

// MemoryPersister keeps the user for the life of the process.
type MemoryPersister struct {
	mu   sync.Mutex
	user *model.User
}

func NewMemoryPersister() *MemoryPersister { return &MemoryPersister{} }

func (m *MemoryPersister) Load(context.Context) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil, nil
	}
	u := *m.user
	return &u, nil
}

func (m *MemoryPersister) Save(_ context.Context, u model.User) error {
	m.mu.Lock()
	m.user = &u
	m.mu.Unlock()
	return nil
}

func (m *MemoryPersister) Clear(context.Context) error {
	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()
	return nil
}

// RedisPersister stores the user as JSON under one key.
type RedisPersister struct {
	client *redis.Client
	key    string
}

func NewRedisPersister(client *redis.Client, key string) *RedisPersister {
	if key == "" {
		key = DefaultKey
	}
	return &RedisPersister{client: client, key: key}
}

func (r *RedisPersister) Load(ctx context.Context) (*model.User, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}
	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	return &u, nil
}

func (r *RedisPersister) Save(ctx context.Context, u model.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return errors.Wrap(err, "encode user")
	}
	return errors.Wrap(r.client.Set(ctx, r.key, raw, 0).Err(), "save user")
}

func (r *RedisPersister) Clear(ctx context.Context) error {
	return errors.Wrap(r.client.Del(ctx, r.key).Err(), "clear user")
}

// FilePersister stores the user as a JSON file. Writes go through a
// temporary file and a rename.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (f *FilePersister) Load(context.Context) (*model.User, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}
	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, errors.Wrapf(err, "decode %s", f.path)
	}
	return &u, nil
}

func (f *FilePersister) Save(_ context.Context, u model.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return errors.Wrap(err, "encode user")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.Wrap(err, "save user")
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return errors.Wrap(err, "save user")
	}
	return errors.Wrap(os.Rename(tmp, f.path), "save user")
}

func (f *FilePersister) Clear(context.Context) error {
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return errors.Wrap(err, "clear user")
}
