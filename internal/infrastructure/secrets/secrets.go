// Package secrets resolves the username/password pair used to reach the
// relational store.
//
// Two providers exist: a .env formatted secrets file read with godotenv, and
// static credentials from config for local runs.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"

	"github.com/nerrad567/quantum-task-core/internal/infrastructure/config"
)

// ErrSecretNotFound is returned when the named secret has no username.
var ErrSecretNotFound = errors.New("secrets: secret not found")

// Credentials is a username/password pair.
type Credentials struct {
	Username string
	Password string
}

// Provider looks up credentials by secret name.
type Provider interface {
	Credentials(ctx context.Context, name string) (Credentials, error)
}

// New returns a FileProvider when cfg.File is set, else a StaticProvider.
func New(cfg config.SecretsConfig) Provider {
	if cfg.File != "" {
		return &FileProvider{Path: cfg.File}
	}
	return &StaticProvider{Creds: Credentials{Username: cfg.Username, Password: cfg.Password}}
}

// FileProvider reads <NAME>_USERNAME and <NAME>_PASSWORD from a .env file.
// The file is re-read on every lookup so rotated secrets are picked up on
// the next connection attempt.
type FileProvider struct {
	Path string
}

// Credentials implements Provider.
func (p *FileProvider) Credentials(_ context.Context, name string) (Credentials, error) {
	values, err := godotenv.Read(p.Path)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading secrets file: %w", err)
	}

	prefix := strings.ToUpper(name)
	username, ok := values[prefix+"_USERNAME"]
	if !ok || username == "" {
		return Credentials{}, fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return Credentials{
		Username: username,
		Password: values[prefix+"_PASSWORD"],
	}, nil
}

// StaticProvider returns the same credentials for every name.
type StaticProvider struct {
	Creds Credentials
}

// Credentials implements Provider.
func (p *StaticProvider) Credentials(_ context.Context, _ string) (Credentials, error) {
	return p.Creds, nil
}
