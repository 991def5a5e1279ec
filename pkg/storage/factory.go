package storage

import "fmt"

// NewBackend creates the backend named in cfg
func NewBackend(cfg *Config) (Backend, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryBackend(), nil
	case "postgres", "":
		return NewPostgresBackend(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
