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

type productCatalog struct {
	Products []subscription.Product `yaml:"products"`
}

// YAMLProductService serves product definitions from a YAML catalog file.
type YAMLProductService struct {
	path   string
	logger logger.Interface

	mu   sync.RWMutex
	byID map[string]subscription.Product
}

// NewYAMLProductService loads the catalog at path.
func NewYAMLProductService(path string, logger logger.Interface) (*YAMLProductService, error) {
	s := &YAMLProductService{path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

var _ subscription.ProductService = (*YAMLProductService)(nil)

// Reload re-reads the catalog file, replacing the in-memory set.
func (s *YAMLProductService) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read product catalog %s: %w", s.path, err)
	}
	var catalog productCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("failed to parse product catalog %s: %w", s.path, err)
	}

	byID := make(map[string]subscription.Product, len(catalog.Products))
	for _, p := range catalog.Products {
		if p.ID == "" {
			return fmt.Errorf("product catalog %s contains an entry without an id", s.path)
		}
		byID[p.ID] = p
	}

	s.mu.Lock()
	s.byID = byID
	s.mu.Unlock()

	s.logger.Infow("loaded product catalog", "path", s.path, "products", len(byID))
	return nil
}

// GetProductByID returns the product with the given ID.
func (s *YAMLProductService) GetProductByID(_ context.Context, id string) (*subscription.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("product %s not found", id))
	}
	return &p, nil
}
