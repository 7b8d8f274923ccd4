package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/outletx/merch-engine/internal/models"
)

// InMemoryRuleStore is an in-memory implementation of RuleStore, used by
// tests and single-node runs.
type InMemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[string]map[string]*models.Rule // shop → id → rule
}

// NewInMemoryRuleStore creates a new in-memory rule store.
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{rules: make(map[string]map[string]*models.Rule)}
}

func (s *InMemoryRuleStore) GetAllActive(ctx context.Context, shop string) ([]*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]*models.Rule, 0)
	for _, rule := range s.rules[shop] {
		if rule.IsActive() {
			rules = append(rules, copyRule(rule))
		}
	}
	return rules, nil
}

func (s *InMemoryRuleStore) List(ctx context.Context, shop string) ([]*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]*models.Rule, 0, len(s.rules[shop]))
	for _, rule := range s.rules[shop] {
		rules = append(rules, copyRule(rule))
	}
	return rules, nil
}

func (s *InMemoryRuleStore) Get(ctx context.Context, shop, id string) (*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[shop][id]
	if !exists {
		return nil, models.ErrRuleNotFound
	}
	return copyRule(rule), nil
}

func (s *InMemoryRuleStore) Put(ctx context.Context, rule *models.Rule) error {
	if rule == nil {
		return fmt.Errorf("rule cannot be nil")
	}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rules[rule.Shop] == nil {
		s.rules[rule.Shop] = make(map[string]*models.Rule)
	}
	s.rules[rule.Shop][rule.ID] = copyRule(rule)
	return nil
}

func (s *InMemoryRuleStore) Delete(ctx context.Context, shop, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[shop][id]; !exists {
		return models.ErrRuleNotFound
	}
	delete(s.rules[shop], id)
	return nil
}

func (s *InMemoryRuleStore) SetLastTriggered(ctx context.Context, shop, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, exists := s.rules[shop][id]
	if !exists {
		return models.ErrRuleNotFound
	}
	rule.LastTriggeredAt = &at
	rule.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryRuleStore) SetExcludedProducts(ctx context.Context, shop, id string, excluded []models.ScopeTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, exists := s.rules[shop][id]
	if !exists {
		return models.ErrRuleNotFound
	}
	rule.ExcludedProducts = append([]models.ScopeTarget(nil), excluded...)
	rule.UpdatedAt = time.Now()
	return nil
}

// InMemoryFactStore is an in-memory implementation of FactStore.
type InMemoryFactStore struct {
	mu      sync.RWMutex
	records map[string]*models.FactRecord
}

// NewInMemoryFactStore creates a new in-memory fact store.
func NewInMemoryFactStore() *InMemoryFactStore {
	return &InMemoryFactStore{records: make(map[string]*models.FactRecord)}
}

func (s *InMemoryFactStore) FindAllByShop(ctx context.Context, shop string) ([]*models.FactRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*models.FactRecord, 0)
	for _, rec := range s.records {
		if rec.Shop == shop {
			records = append(records, copyFact(rec))
		}
	}
	return records, nil
}

func (s *InMemoryFactStore) Load(ctx context.Context, id string) (*models.FactRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, models.ErrFactNotFound
	}
	return copyFact(rec), nil
}

func (s *InMemoryFactStore) Save(ctx context.Context, rec *models.FactRecord) error {
	if rec == nil {
		return fmt.Errorf("fact record cannot be nil")
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid fact record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = copyFact(rec)
	return nil
}

func (s *InMemoryFactStore) DeleteByProduct(ctx context.Context, shop, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.records {
		if rec.Shop == shop && rec.ProductID == productID {
			delete(s.records, id)
		}
	}
	return nil
}

// InMemorySettingsStore is an in-memory implementation of SettingsStore.
type InMemorySettingsStore struct {
	mu       sync.RWMutex
	settings map[string]*models.Settings
}

// NewInMemorySettingsStore creates a new in-memory settings store.
func NewInMemorySettingsStore() *InMemorySettingsStore {
	return &InMemorySettingsStore{settings: make(map[string]*models.Settings)}
}

func (s *InMemorySettingsStore) Get(ctx context.Context, shop string) (*models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, exists := s.settings[shop]
	if !exists {
		return nil, nil
	}
	out := *settings
	return &out, nil
}

func (s *InMemorySettingsStore) Put(ctx context.Context, settings *models.Settings) error {
	if settings == nil || settings.Shop == "" {
		return fmt.Errorf("settings must carry a shop")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := *settings
	s.settings[settings.Shop] = &out
	return nil
}

// copyRule and copyFact deep-copy through JSON; the documents are small and
// already JSON-shaped.

func copyRule(rule *models.Rule) *models.Rule {
	return deepCopy(rule, &models.Rule{})
}

func copyFact(rec *models.FactRecord) *models.FactRecord {
	return deepCopy(rec, &models.FactRecord{})
}

func deepCopy[T any](src, dst *T) *T {
	if src == nil {
		return nil
	}
	data, err := json.Marshal(src)
	if err != nil {
		out := *src
		return &out
	}
	if err := json.Unmarshal(data, dst); err != nil {
		out := *src
		return &out
	}
	return dst
}
