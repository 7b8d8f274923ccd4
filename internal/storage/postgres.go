package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/outletx/merch-engine/internal/config"
	"github.com/outletx/merch-engine/internal/models"
	"github.com/outletx/merch-engine/pkg/logger"
)

// OpenDB opens and pings a Postgres connection pool.
func OpenDB(dbConfig config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Database,
		dbConfig.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(dbConfig.MaxConnections)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database",
		logger.String("host", dbConfig.Host),
		logger.Int("port", dbConfig.Port),
		logger.String("database", dbConfig.Database),
	)

	return db, nil
}

// EnsureSchema creates the engine's tables when they don't exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rules (
			shop TEXT NOT NULL,
			id TEXT NOT NULL,
			doc JSONB NOT NULL,
			status TEXT NOT NULL,
			last_triggered_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (shop, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_shop_status ON rules (shop, status)`,
		`CREATE TABLE IF NOT EXISTS fact_records (
			id TEXT PRIMARY KEY,
			shop TEXT NOT NULL,
			product_id TEXT,
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fact_records_shop ON fact_records (shop)`,
		`CREATE INDEX IF NOT EXISTS idx_fact_records_product ON fact_records (shop, product_id)`,
		`CREATE TABLE IF NOT EXISTS shop_settings (
			shop TEXT PRIMARY KEY,
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// PostgresRuleStore is the Postgres-backed RuleStore. Rules are stored as
// JSONB documents with status and last_triggered_at lifted into columns for
// querying.
type PostgresRuleStore struct {
	db *sql.DB
}

// NewPostgresRuleStore creates a Postgres-backed rule store.
func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

func (s *PostgresRuleStore) GetAllActive(ctx context.Context, shop string) ([]*models.Rule, error) {
	return s.query(ctx,
		`SELECT doc FROM rules WHERE shop = $1 AND status = $2 ORDER BY created_at`,
		shop, string(models.RuleStatusActive))
}

func (s *PostgresRuleStore) List(ctx context.Context, shop string) ([]*models.Rule, error) {
	return s.query(ctx, `SELECT doc FROM rules WHERE shop = $1 ORDER BY created_at`, shop)
}

func (s *PostgresRuleStore) query(ctx context.Context, q string, args ...interface{}) ([]*models.Rule, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*models.Rule, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		var rule models.Rule
		if err := json.Unmarshal(doc, &rule); err != nil {
			logger.Warn("Skipping undecodable rule document", logger.ErrorField(err))
			continue
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

func (s *PostgresRuleStore) Get(ctx context.Context, shop, id string) (*models.Rule, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM rules WHERE shop = $1 AND id = $2`, shop, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	var rule models.Rule
	if err := json.Unmarshal(doc, &rule); err != nil {
		return nil, fmt.Errorf("failed to decode rule document: %w", err)
	}
	return &rule, nil
}

func (s *PostgresRuleStore) Put(ctx context.Context, rule *models.Rule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}
	doc, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to encode rule: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (shop, id, doc, status, last_triggered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (shop, id) DO UPDATE
		SET doc = EXCLUDED.doc,
		    status = EXCLUDED.status,
		    last_triggered_at = EXCLUDED.last_triggered_at,
		    updated_at = EXCLUDED.updated_at`,
		rule.Shop, rule.ID, doc, string(rule.Status), rule.LastTriggeredAt, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert rule: %w", err)
	}
	return nil
}

func (s *PostgresRuleStore) Delete(ctx context.Context, shop, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE shop = $1 AND id = $2`, shop, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrRuleNotFound
	}
	return nil
}

func (s *PostgresRuleStore) SetLastTriggered(ctx context.Context, shop, id string, at time.Time) error {
	return s.patch(ctx, shop, id, func(rule *models.Rule) {
		rule.LastTriggeredAt = &at
	})
}

func (s *PostgresRuleStore) SetExcludedProducts(ctx context.Context, shop, id string, excluded []models.ScopeTarget) error {
	return s.patch(ctx, shop, id, func(rule *models.Rule) {
		rule.ExcludedProducts = excluded
	})
}

func (s *PostgresRuleStore) patch(ctx context.Context, shop, id string, mutate func(*models.Rule)) error {
	rule, err := s.Get(ctx, shop, id)
	if err != nil {
		return err
	}
	mutate(rule)
	rule.UpdatedAt = time.Now()
	return s.Put(ctx, rule)
}

// PostgresFactStore is the Postgres-backed FactStore; records are JSONB
// documents keyed by the sync id.
type PostgresFactStore struct {
	db *sql.DB
}

// NewPostgresFactStore creates a Postgres-backed fact store.
func NewPostgresFactStore(db *sql.DB) *PostgresFactStore {
	return &PostgresFactStore{db: db}
}

func (s *PostgresFactStore) FindAllByShop(ctx context.Context, shop string) ([]*models.FactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM fact_records WHERE shop = $1`, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to query fact records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.FactRecord, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan fact record: %w", err)
		}
		var rec models.FactRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			logger.Warn("Skipping undecodable fact document", logger.ErrorField(err))
			continue
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (s *PostgresFactStore) Load(ctx context.Context, id string) (*models.FactRecord, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM fact_records WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrFactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load fact record: %w", err)
	}

	var rec models.FactRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode fact document: %w", err)
	}
	return &rec, nil
}

func (s *PostgresFactStore) Save(ctx context.Context, rec *models.FactRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid fact record: %w", err)
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode fact record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fact_records (id, shop, product_id, doc, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET shop = EXCLUDED.shop,
		    product_id = EXCLUDED.product_id,
		    doc = EXCLUDED.doc,
		    updated_at = now()`,
		rec.ID, rec.Shop, rec.ProductID, doc)
	if err != nil {
		return fmt.Errorf("failed to upsert fact record: %w", err)
	}
	return nil
}

func (s *PostgresFactStore) DeleteByProduct(ctx context.Context, shop, productID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM fact_records WHERE shop = $1 AND product_id = $2`, shop, productID)
	if err != nil {
		return fmt.Errorf("failed to delete fact records: %w", err)
	}
	return nil
}

// PostgresSettingsStore is the Postgres-backed SettingsStore.
type PostgresSettingsStore struct {
	db *sql.DB
}

// NewPostgresSettingsStore creates a Postgres-backed settings store.
func NewPostgresSettingsStore(db *sql.DB) *PostgresSettingsStore {
	return &PostgresSettingsStore{db: db}
}

func (s *PostgresSettingsStore) Get(ctx context.Context, shop string) (*models.Settings, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM shop_settings WHERE shop = $1`, shop).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var settings models.Settings
	if err := json.Unmarshal(doc, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings document: %w", err)
	}
	return &settings, nil
}

func (s *PostgresSettingsStore) Put(ctx context.Context, settings *models.Settings) error {
	if settings == nil || settings.Shop == "" {
		return fmt.Errorf("settings must carry a shop")
	}
	doc, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shop_settings (shop, doc, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (shop) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		settings.Shop, doc)
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}
