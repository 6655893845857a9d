// Package adapters implements the upstream subscription and product
// service interfaces from local YAML catalogs, plus a Redis read-through
// cache for product lookups. In a full deployment these would call out to
// the upstream system of record; the file-backed variants serve
// self-contained installs and tests.
package adapters

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wick-sh/wick/internal/domain/subscription"
	"github.com/wick-sh/wick/internal/shared/errors"
	"github.com/wick-sh/wick/internal/shared/logger"
)

type subscriptionCatalog struct {
	Subscriptions []subscription.Subscription `yaml:"subscriptions"`
}

// YAMLSubscriptionService serves subscriptions from a YAML catalog file.
type YAMLSubscriptionService struct {
	path   string
	logger logger.Interface

	mu   sync.RWMutex
	byID map[string]subscription.Subscription
	list []subscription.Subscription
}

// NewYAMLSubscriptionService loads the catalog at path.
func NewYAMLSubscriptionService(path string, logger logger.Interface) (*YAMLSubscriptionService, error) {
	s := &YAMLSubscriptionService{path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

var _ subscription.Service = (*YAMLSubscriptionService)(nil)

// Reload re-reads the catalog file, replacing the in-memory set.
func (s *YAMLSubscriptionService) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read subscription catalog %s: %w", s.path, err)
	}
	var catalog subscriptionCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("failed to parse subscription catalog %s: %w", s.path, err)
	}

	byID := make(map[string]subscription.Subscription, len(catalog.Subscriptions))
	for _, sub := range catalog.Subscriptions {
		if sub.ID == "" {
			return fmt.Errorf("subscription catalog %s contains an entry without an id", s.path)
		}
		byID[sub.ID] = sub
	}

	s.mu.Lock()
	s.byID = byID
	s.list = catalog.Subscriptions
	s.mu.Unlock()

	s.logger.Infow("loaded subscription catalog",
		"path", s.path, "subscriptions", len(catalog.Subscriptions))
	return nil
}

// GetSubscriptions returns all subscriptions for the given owner.
func (s *YAMLSubscriptionService) GetSubscriptions(_ context.Context, ownerKey string) ([]subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []subscription.Subscription
	for _, sub := range s.list {
		if sub.OwnerKey == ownerKey {
			out = append(out, sub)
		}
	}
	return out, nil
}

// Owners returns the distinct owner keys present in the catalog, used by
// the periodic pool refresh to sweep every owner.
func (s *YAMLSubscriptionService) Owners(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, sub := range s.list {
		if sub.OwnerKey == "" || seen[sub.OwnerKey] {
			continue
		}
		seen[sub.OwnerKey] = true
		out = append(out, sub.OwnerKey)
	}
	return out, nil
}

// GetSubscription returns a single subscription by ID.
func (s *YAMLSubscriptionService) GetSubscription(_ context.Context, id string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.byID[id]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("subscription %s not found", id))
	}
	return &sub, nil
}
