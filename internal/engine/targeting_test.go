package engine

import (
	"testing"

	"github.com/outletx/merch-engine/internal/models"
)

func targetingFact() *models.FactRecord {
	return &models.FactRecord{
		ID:          "1_test-shop",
		Shop:        "test-shop",
		ProductID:   "gid://shopify/Product/10",
		VariantID:   "gid://shopify/ProductVariant/1",
		Collections: []string{"col-1", "col-2"},
	}
}

func TestIsTargeted_ScopeAll(t *testing.T) {
	rule := &models.Rule{Name: "r", ApplyScope: models.ScopeAll}

	if !IsTargeted(targetingFact(), rule, nil) {
		t.Error("Expected all-scope rule to target every product")
	}
}

func TestIsTargeted_ShopExcludedProduct(t *testing.T) {
	rule := &models.Rule{Name: "r", ApplyScope: models.ScopeAll}

	// Whole product excluded (no variants list).
	settings := &models.Settings{
		ExcludedProducts: []models.ScopeTarget{{ID: "gid://shopify/Product/10"}},
	}
	if IsTargeted(targetingFact(), rule, settings) {
		t.Error("Expected product-level exclusion to win")
	}

	// Only a specific variant excluded.
	settings.ExcludedProducts = []models.ScopeTarget{
		{ID: "gid://shopify/Product/10", Variants: []string{"gid://shopify/ProductVariant/1"}},
	}
	if IsTargeted(targetingFact(), rule, settings) {
		t.Error("Expected variant-level exclusion to win")
	}

	// A different variant is excluded: this one stays targeted.
	settings.ExcludedProducts = []models.ScopeTarget{
		{ID: "gid://shopify/Product/10", Variants: []string{"gid://shopify/ProductVariant/9"}},
	}
	if !IsTargeted(targetingFact(), rule, settings) {
		t.Error("Expected exclusion of another variant not to apply")
	}
}

func TestIsTargeted_ShopExcludedCollection(t *testing.T) {
	rule := &models.Rule{Name: "r", ApplyScope: models.ScopeAll}
	settings := &models.Settings{ExcludedCollections: []string{"col-2"}}

	if IsTargeted(targetingFact(), rule, settings) {
		t.Error("Expected collection exclusion to win")
	}
}

func TestIsTargeted_RuleExclusionAfterRevert(t *testing.T) {
	rule := &models.Rule{
		Name:       "r",
		ApplyScope: models.ScopeAll,
		ExcludedProducts: []models.ScopeTarget{
			{ID: "gid://shopify/Product/10", Variants: []string{"gid://shopify/ProductVariant/1"}},
		},
	}

	if IsTargeted(targetingFact(), rule, nil) {
		t.Error("Expected rule-level exclusion to block re-targeting")
	}
}

func TestIsTargeted_ProductsScope(t *testing.T) {
	rule := &models.Rule{
		Name:       "r",
		ApplyScope: models.ScopeProducts,
		ScopeTargets: []models.ScopeTarget{
			{ID: "gid://shopify/Product/10", Variants: []string{"gid://shopify/ProductVariant/1"}},
		},
	}
	if !IsTargeted(targetingFact(), rule, nil) {
		t.Error("Expected variant target to match")
	}

	rule.ScopeTargets = []models.ScopeTarget{
		{ID: "gid://shopify/Product/10", Variants: []string{"gid://shopify/ProductVariant/9"}},
	}
	if IsTargeted(targetingFact(), rule, nil) {
		t.Error("Expected non-matching variant target not to match")
	}
}

func TestIsTargeted_CollectionsScope(t *testing.T) {
	rule := &models.Rule{
		Name:         "r",
		ApplyScope:   models.ScopeCollections,
		ScopeTargets: []models.ScopeTarget{{ID: "col-1"}},
	}
	if !IsTargeted(targetingFact(), rule, nil) {
		t.Error("Expected collection target to match")
	}

	rule.ScopeTargets = []models.ScopeTarget{{ID: "col-9"}}
	if IsTargeted(targetingFact(), rule, nil) {
		t.Error("Expected non-matching collection target not to match")
	}
}

func TestIsTargeted_EmptyTargetsNeverMatch(t *testing.T) {
	for _, scope := range []models.ApplyScope{models.ScopeProducts, models.ScopeCollections} {
		rule := &models.Rule{Name: "r", ApplyScope: scope}
		if IsTargeted(targetingFact(), rule, nil) {
			t.Errorf("Expected empty scope_targets with %s scope to be false", scope)
		}
	}
}
