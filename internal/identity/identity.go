// Package identity provides the anonymous per-install identifier that tags
// every request sent to the analysis service.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ashureev/decisions/internal/store"
	"github.com/google/uuid"
)

const (
	// StorageKey is the settings key the identifier is persisted under.
	StorageKey = "decisions_user_id"
	// HeaderName is the correlation header attached to outbound requests.
	HeaderName = "X-User-ID"
)

// ErrInvalidID is returned when a restored identifier is not a UUID.
var ErrInvalidID = errors.New("identifier is not a valid UUID")

// Provider lazily issues and persists the identifier. It is constructed once
// at start-up and shared by every component that talks to the service.
type Provider struct {
	repo     store.Repository
	generate func() string
	logger   *slog.Logger

	mu     sync.Mutex
	cached string
}

// NewProvider creates a Provider backed by repo.
func NewProvider(repo store.Repository, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		repo:     repo,
		generate: uuid.NewString,
		logger:   logger,
	}
}

// UserID returns the persisted identifier, creating it on first use.
// Repeated calls return the identical value.
func (p *Provider) UserID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached, nil
	}

	id, err := p.repo.GetSetting(ctx, StorageKey)
	if err == nil && isValidID(id) {
		p.cached = id
		return id, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("read user id: %w", err)
	}

	fresh := p.generate()
	if id != "" {
		// Corrupt value: replace it rather than keep sending garbage.
		p.logger.Warn("Discarding malformed stored user id", "value", id)
		if err := p.repo.DeleteSetting(ctx, StorageKey); err != nil {
			return "", fmt.Errorf("clear malformed user id: %w", err)
		}
	}

	// Another process may have raced us; whichever value landed first wins.
	stored, err := p.repo.PutSettingIfAbsent(ctx, StorageKey, fresh)
	if err != nil {
		return "", fmt.Errorf("persist user id: %w", err)
	}
	if stored == fresh {
		p.logger.Info("New user ID generated", "user_id", stored)
	}
	p.cached = stored
	return stored, nil
}

// Exists reports whether an identifier has been persisted.
func (p *Provider) Exists(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return true, nil
	}
	_, err := p.repo.GetSetting(ctx, StorageKey)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read user id: %w", err)
	}
	return true, nil
}

// Reset forgets the identifier. The next UserID call issues a new one.
func (p *Provider) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.repo.DeleteSetting(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear user id: %w", err)
	}
	p.cached = ""
	p.logger.Info("User ID cleared")
	return nil
}

// Restore replaces the identifier with id, making the decisions recorded
// under it visible again.
func (p *Provider) Restore(ctx context.Context, id string) error {
	if !isValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.repo.PutSetting(ctx, StorageKey, id); err != nil {
		return fmt.Errorf("persist user id: %w", err)
	}
	p.cached = id
	p.logger.Info("User ID restored", "user_id", id)
	return nil
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
