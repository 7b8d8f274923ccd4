package engine

import (
	"github.com/outletx/merch-engine/internal/models"
	"github.com/outletx/merch-engine/pkg/logger"
)

// Match returns the rules that apply to one fact record, in input order.
// Inactive rules, rules already present in the record's ledger and rules
// failing the targeting filter are skipped; the record is not mutated.
func Match(rec *models.FactRecord, rules []*models.Rule, settings *models.Settings) []*models.Rule {
	var matched []*models.Rule

	for _, rule := range rules {
		if !rule.IsActive() {
			continue
		}

		// No re-trigger while the rule's entry remains in the ledger.
		if rec.TriggeredRules.Contains(rule.ID) {
			continue
		}

		if !IsTargeted(rec, rule, settings) {
			continue
		}

		if conditionsMet(rec, rule) {
			logger.Info("Fact record matches rule",
				logger.String("fact_id", rec.ID),
				logger.String("rule_id", rule.ID),
				logger.String("rule_name", rule.Name),
			)
			matched = append(matched, rule)
		}
	}

	return matched
}

// conditionsMet combines the rule's condition results: "all" is a logical
// AND (vacuously true for zero conditions), "any" a logical OR (vacuously
// false).
func conditionsMet(rec *models.FactRecord, rule *models.Rule) bool {
	if rule.ConditionLogic == models.ConditionLogicAny {
		for _, cond := range rule.Conditions {
			if EvaluateCondition(rec, cond) {
				return true
			}
		}
		return false
	}

	for _, cond := range rule.Conditions {
		if !EvaluateCondition(rec, cond) {
			return false
		}
	}
	return true
}
