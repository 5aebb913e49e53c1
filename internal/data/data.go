// Package data persists the session of the client runtime.
package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"hawx.me/code/dashboard/internal/backend"
	"hawx.me/code/dashboard/internal/config"
)

// Store is a backend.Storage that must be closed.
type Store interface {
	backend.Storage
	Close() error
}

// Open returns the Store chosen by conf.Driver.
func Open(conf config.Storage) (Store, error) {
	switch conf.Driver {
	case "sqlite", "":
		path := conf.Path
		if path == "" {
			path = "file::memory:?mode=memory&cache=shared"
		} else if !strings.HasPrefix(path, "file:") {
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return nil, fmt.Errorf("data: creating directory for %s: %w", path, err)
			}
		}
		return OpenSQLite(path)
	case "redis":
		return OpenRedis(conf.RedisAddr, conf.RedisPassword, conf.RedisKey, conf.TTL.Duration)
	case "memory":
		return &Memory{}, nil
	default:
		return nil, fmt.Errorf("data: unknown storage driver %q", conf.Driver)
	}
}

// Memory keeps the session for as long as the process runs.
type Memory struct {
	mu      sync.Mutex
	session *backend.Session
}

func (m *Memory) Load(ctx context.Context) (*backend.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

func (m *Memory) Save(ctx context.Context, session *backend.Session) error {
	m.mu.Lock()
	m.session = session
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(ctx context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}
