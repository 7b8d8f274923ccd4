// Package storage holds the persistence interfaces of the engine and their
// Postgres and in-memory implementations: the rule store, the per-shop fact
// record store and the shop settings store, plus the Redis client surface
// the job queue builds on.
package storage

import (
	"context"
	"time"

	"github.com/outletx/merch-engine/internal/models"
)

// RuleStore stores merchant-defined rules, scoped by shop.
type RuleStore interface {
	// GetAllActive retrieves the shop's rules with status "active".
	GetAllActive(ctx context.Context, shop string) ([]*models.Rule, error)

	// List retrieves all of the shop's rules.
	List(ctx context.Context, shop string) ([]*models.Rule, error)

	// Get retrieves one rule; models.ErrRuleNotFound when absent.
	Get(ctx context.Context, shop, id string) (*models.Rule, error)

	// Put creates or replaces a rule.
	Put(ctx context.Context, rule *models.Rule) error

	// Delete removes a rule; models.ErrRuleNotFound when absent.
	Delete(ctx context.Context, shop, id string) error

	// SetLastTriggered stamps the rule's last_triggered_at.
	SetLastTriggered(ctx context.Context, shop, id string, at time.Time) error

	// SetExcludedProducts replaces the rule's exclusion list.
	SetExcludedProducts(ctx context.Context, shop, id string, excluded []models.ScopeTarget) error
}

// FactStore stores per-variant fact records.
type FactStore interface {
	// FindAllByShop retrieves every fact record of a shop.
	FindAllByShop(ctx context.Context, shop string) ([]*models.FactRecord, error)

	// Load retrieves one record by id; models.ErrFactNotFound when absent.
	Load(ctx context.Context, id string) (*models.FactRecord, error)

	// Save creates or replaces a record.
	Save(ctx context.Context, rec *models.FactRecord) error

	// DeleteByProduct removes every record belonging to a product.
	DeleteByProduct(ctx context.Context, shop, productID string) error
}

// SettingsStore stores shop-level settings.
type SettingsStore interface {
	// Get retrieves the shop's settings, nil when none are stored.
	Get(ctx context.Context, shop string) (*models.Settings, error)

	// Put creates or replaces the shop's settings.
	Put(ctx context.Context, settings *models.Settings) error
}

// RedisClient is the Redis surface the trigger-job queue uses.
type RedisClient interface {
	// PublishToStream appends one JSON-encoded message to a stream.
	PublishToStream(ctx context.Context, stream string, key string, value interface{}) error

	// ConsumeFromStream consumes messages through a consumer group,
	// creating the group (and stream) if needed.
	ConsumeFromStream(ctx context.Context, stream string, group string, consumer string) (<-chan StreamMessage, error)

	// AcknowledgeMessage acks a consumed message.
	AcknowledgeMessage(ctx context.Context, stream string, group string, id string) error

	// Close closes the Redis connection.
	Close() error
}

// StreamMessage is one message read from a Redis stream.
type StreamMessage struct {
	ID     string
	Stream string
	Values map[string]interface{}
}
