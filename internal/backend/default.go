package backend

import (
	"sync"

	"hawx.me/code/dashboard/internal/config"
)

var (
	defaultOnce   sync.Once
	defaultClient *Client
	defaultErr    error
)

// Default returns the process-wide Client. The first call builds it from conf
// and opts, later calls return the same Client and ignore their arguments.
func Default(conf config.Backend, opts ...Option) (*Client, error) {
	defaultOnce.Do(func() {
		defaultClient, defaultErr = New(conf, opts...)
	})

	return defaultClient, defaultErr
}

// FromEnv is Default configured by DASHBOARD_BACKEND_URL and
// DASHBOARD_BACKEND_KEY.
func FromEnv(opts ...Option) (*Client, error) {
	conf, err := config.BackendFromEnv()
	if err != nil {
		return nil, err
	}

	return Default(conf, opts...)
}
