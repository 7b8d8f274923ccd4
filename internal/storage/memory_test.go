package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outletx/merch-engine/internal/models"
)

const testShop = "test-shop.myshopify.com"

func storedRule(id string, status models.RuleStatus) *models.Rule {
	return &models.Rule{
		ID:             id,
		Shop:           testShop,
		Name:           "rule " + id,
		Status:         status,
		ConditionLogic: models.ConditionLogicAll,
		Trigger:        []models.Trigger{{Type: models.TriggerAddTag, Config: models.TriggerConfig{Value: "sale"}}},
		ApplyScope:     models.ScopeAll,
	}
}

func TestRuleStoreRoundtrip(t *testing.T) {
	store := NewInMemoryRuleStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, storedRule("rule-1", models.RuleStatusActive)))

	got, err := store.Get(ctx, testShop, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, "rule-1", got.ID)

	_, err = store.Get(ctx, testShop, "missing")
	assert.ErrorIs(t, err, models.ErrRuleNotFound)

	_, err = store.Get(ctx, "other-shop.myshopify.com", "rule-1")
	assert.ErrorIs(t, err, models.ErrRuleNotFound)
}

func TestRuleStoreGetAllActive(t *testing.T) {
	store := NewInMemoryRuleStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, storedRule("rule-1", models.RuleStatusActive)))
	require.NoError(t, store.Put(ctx, storedRule("rule-2", models.RuleStatusInactive)))

	active, err := store.GetAllActive(ctx, testShop)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "rule-1", active[0].ID)

	all, err := store.List(ctx, testShop)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRuleStoreRejectsInvalid(t *testing.T) {
	store := NewInMemoryRuleStore()
	invalid := storedRule("rule-1", models.RuleStatusActive)
	invalid.Trigger = nil
	assert.Error(t, store.Put(context.Background(), invalid))
}

func TestRuleStoreCopiesOnReadAndWrite(t *testing.T) {
	store := NewInMemoryRuleStore()
	ctx := context.Background()

	rule := storedRule("rule-1", models.RuleStatusActive)
	require.NoError(t, store.Put(ctx, rule))
	rule.Name = "mutated after put"

	got, err := store.Get(ctx, testShop, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, "rule rule-1", got.Name)

	got.Status = models.RuleStatusInactive
	again, err := store.Get(ctx, testShop, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, models.RuleStatusActive, again.Status)
}

func TestRuleStoreSetLastTriggered(t *testing.T) {
	store := NewInMemoryRuleStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, storedRule("rule-1", models.RuleStatusActive)))

	at := time.Now()
	require.NoError(t, store.SetLastTriggered(ctx, testShop, "rule-1", at))

	got, err := store.Get(ctx, testShop, "rule-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastTriggeredAt)
	assert.WithinDuration(t, at, *got.LastTriggeredAt, time.Second)

	assert.ErrorIs(t, store.SetLastTriggered(ctx, testShop, "missing", at), models.ErrRuleNotFound)
}

func TestRuleStoreSetExcludedProducts(t *testing.T) {
	store := NewInMemoryRuleStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, storedRule("rule-1", models.RuleStatusActive)))

	excluded := []models.ScopeTarget{{ID: "gid://shopify/Product/456", Variants: []string{"gid://shopify/ProductVariant/123"}}}
	require.NoError(t, store.SetExcludedProducts(ctx, testShop, "rule-1", excluded))

	got, err := store.Get(ctx, testShop, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, excluded, got.ExcludedProducts)
}

func TestFactStoreRoundtrip(t *testing.T) {
	store := NewInMemoryFactStore()
	ctx := context.Background()

	rec := &models.FactRecord{
		ID:        "123_" + testShop,
		Shop:      testShop,
		VariantID: "gid://shopify/ProductVariant/123",
		ProductID: "gid://shopify/Product/456",
	}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.VariantID, got.VariantID)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrFactNotFound)
}

func TestFactStoreFindAllByShop(t *testing.T) {
	store := NewInMemoryFactStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.FactRecord{ID: "1_" + testShop, Shop: testShop, VariantID: "1"}))
	require.NoError(t, store.Save(ctx, &models.FactRecord{ID: "2_other", Shop: "other-shop.myshopify.com", VariantID: "2"}))

	records, err := store.FindAllByShop(ctx, testShop)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1_"+testShop, records[0].ID)
}

func TestFactStoreDeleteByProduct(t *testing.T) {
	store := NewInMemoryFactStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.FactRecord{ID: "1_" + testShop, Shop: testShop, VariantID: "1", ProductID: "p1"}))
	require.NoError(t, store.Save(ctx, &models.FactRecord{ID: "2_" + testShop, Shop: testShop, VariantID: "2", ProductID: "p1"}))
	require.NoError(t, store.Save(ctx, &models.FactRecord{ID: "3_" + testShop, Shop: testShop, VariantID: "3", ProductID: "p2"}))

	require.NoError(t, store.DeleteByProduct(ctx, testShop, "p1"))

	records, err := store.FindAllByShop(ctx, testShop)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "p2", records[0].ProductID)
}

func TestSettingsStoreRoundtrip(t *testing.T) {
	store := NewInMemorySettingsStore()
	ctx := context.Background()

	got, err := store.Get(ctx, testShop)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Put(ctx, &models.Settings{Shop: testShop, Enabled: true}))

	got, err = store.Get(ctx, testShop)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Enabled)

	assert.Error(t, store.Put(ctx, &models.Settings{}))
}
