package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shrimpsizemoose/mentorloop/internal/lifecycle"
	"github.com/shrimpsizemoose/mentorloop/internal/store"
)

type Service struct {
	Config *Config
	Store  store.Store
	Auth   *Auth
	Engine *lifecycle.Engine
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := NewStore(config.Database.DSN, config.Database.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	auth, err := NewAuth(config)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	return NewServiceWith(config, store, auth), nil
}

// NewServiceWith assembles a service from already built parts.
func NewServiceWith(config *Config, store store.Store, auth *Auth) *Service {
	return &Service{
		Config: config,
		Store:  store,
		Auth:   auth,
		Engine: lifecycle.NewEngine(store),
	}
}

func (s *Service) ValidateHeaders(headers map[string][]string) bool {
	for _, required := range s.Config.API.RequiredHeaders {
		value := headers[http.CanonicalHeaderKey(required.Name)]
		if len(value) == 0 || !strings.EqualFold(value[0], required.Value) {
			return false
		}
	}
	return true
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if s.Auth != nil {
		if err := s.Auth.Close(); err != nil {
			errs = append(errs, fmt.Errorf("auth: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
