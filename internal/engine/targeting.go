package engine

import (
	"github.com/outletx/merch-engine/internal/models"
	"github.com/outletx/merch-engine/pkg/logger"
)

// IsTargeted decides whether a rule applies to a fact record, honoring the
// shop-level exclusion lists and the rule's own scope. The first matching
// exclusion wins.
func IsTargeted(rec *models.FactRecord, rule *models.Rule, settings *models.Settings) bool {
	if settings != nil {
		if excludedByProduct(rec, settings.ExcludedProducts) {
			logger.Warn("Product excluded by shop settings",
				logger.String("fact_id", rec.ID),
				logger.String("rule_name", rule.Name),
			)
			return false
		}
		if excludedByCollection(rec, settings.ExcludedCollections) {
			logger.Warn("Product excluded by collection settings",
				logger.String("fact_id", rec.ID),
				logger.String("rule_name", rule.Name),
			)
			return false
		}
	}

	if excludedByProduct(rec, rule.ExcludedProducts) {
		logger.Warn("Product excluded by rule exclusion list",
			logger.String("fact_id", rec.ID),
			logger.String("rule_name", rule.Name),
		)
		return false
	}

	if rule.ApplyScope == models.ScopeAll {
		return true
	}

	if len(rule.ScopeTargets) == 0 {
		logger.Warn("Rule has no scope targets",
			logger.String("rule_name", rule.Name),
		)
		return false
	}

	productMatch := false
	if rule.ApplyScope == models.ScopeProducts {
		for _, target := range rule.ScopeTargets {
			if sliceContains(target.Variants, rec.VariantID) {
				productMatch = true
				break
			}
		}
	}

	collectionMatch := false
	if rule.ApplyScope == models.ScopeCollections {
		for _, target := range rule.ScopeTargets {
			if sliceContains(rec.Collections, target.ID) {
				collectionMatch = true
				break
			}
		}
	}

	return productMatch || collectionMatch
}

// excludedByProduct checks an exclusion list entry against the record's
// product: an entry with no variants excludes the whole product, otherwise
// only the listed variants.
func excludedByProduct(rec *models.FactRecord, excluded []models.ScopeTarget) bool {
	for _, e := range excluded {
		if e.ID != rec.ProductID {
			continue
		}
		if len(e.Variants) == 0 {
			return true
		}
		return sliceContains(e.Variants, rec.VariantID)
	}
	return false
}

func excludedByCollection(rec *models.FactRecord, excluded []string) bool {
	for _, id := range excluded {
		if sliceContains(rec.Collections, id) {
			return true
		}
	}
	return false
}
