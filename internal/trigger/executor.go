// Package trigger applies merchandising actions to the catalog and keeps
// the per-variant ledger that makes every application reversible. Applied
// entries are mirrored into a variant metafield so the history survives
// outside the engine's own store.
package trigger

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/outletx/merch-engine/internal/models"
	"github.com/outletx/merch-engine/internal/shopify"
	"github.com/outletx/merch-engine/internal/storage"
	"github.com/outletx/merch-engine/pkg/logger"
)

const collectionGIDPrefix = "gid://shopify/Collection/"

var (
	triggersApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triggers_applied_total",
			Help: "Total number of trigger applications by type and status",
		},
		[]string{"type", "status"},
	)

	rulesReverted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_reverts_total",
			Help: "Total number of rule reverts by status",
		},
		[]string{"status"},
	)
)

// Executor applies rules to fact records and reverts them.
type Executor struct {
	clients shopify.Factory
	facts   storage.FactStore
	rules   storage.RuleStore
}

// NewExecutor creates an executor backed by the given client factory and
// stores.
func NewExecutor(clients shopify.Factory, facts storage.FactStore, rules storage.RuleStore) *Executor {
	return &Executor{clients: clients, facts: facts, rules: rules}
}

// Apply runs a single trigger against the record's variant and returns a
// report holding the backup state needed to revert it.
func (e *Executor) Apply(ctx context.Context, rec *models.FactRecord, trig models.Trigger) (models.TriggerReport, error) {
	client := e.clients.ClientFor(rec.Shop)
	return e.apply(ctx, client, rec, trig)
}

func (e *Executor) apply(ctx context.Context, client shopify.CatalogClient, rec *models.FactRecord, trig models.Trigger) (models.TriggerReport, error) {
	report := models.TriggerReport{Type: trig.Type}

	var err error
	switch trig.Type {
	case models.TriggerDiscount:
		report, err = e.applyDiscount(ctx, client, rec, trig, false)
	case models.TriggerDiscountFixedAmount:
		report, err = e.applyDiscount(ctx, client, rec, trig, true)
	case models.TriggerMoveToCollection:
		report, err = e.applyMoveToCollection(ctx, client, rec, trig)
	case models.TriggerAddTag:
		report, err = e.applyAddTag(ctx, client, rec, trig)
	default:
		err = fmt.Errorf("unknown trigger type: %s", trig.Type)
	}

	if err != nil {
		triggersApplied.WithLabelValues(string(trig.Type), "failed").Inc()
		return report, err
	}
	triggersApplied.WithLabelValues(string(trig.Type), "ok").Inc()
	return report, nil
}

// applyDiscount reprices the variant off its compareAtPrice. Percentage
// discounts scale it, fixed-amount discounts subtract from it; both round
// to the nearest unit and never go below the configured minimum price.
func (e *Executor) applyDiscount(ctx context.Context, client shopify.CatalogClient, rec *models.FactRecord, trig models.Trigger, fixedAmount bool) (models.TriggerReport, error) {
	report := models.TriggerReport{Type: trig.Type}

	value, err := configFloat(trig.Config.Value)
	if err != nil {
		return report, fmt.Errorf("invalid discount value: %w", err)
	}

	pricing, err := client.VariantPricing(ctx, rec.VariantID)
	if err != nil {
		return report, err
	}

	// The undiscounted anchor: compareAtPrice when the variant carries one,
	// otherwise the current price.
	compareAt := pricing.Price
	if pricing.CompareAtPrice != nil {
		compareAt = *pricing.CompareAtPrice
	}

	var newPrice float64
	if fixedAmount {
		newPrice = math.Round(compareAt - value)
	} else {
		newPrice = math.Round(compareAt * (100 - value) / 100)
	}

	minPrice := 0.0
	if trig.Config.Options != nil && trig.Config.Options.MinPrice != nil {
		minPrice = *trig.Config.Options.MinPrice
	}
	if newPrice < minPrice {
		newPrice = minPrice
	}

	if err := client.UpdateVariantPrice(ctx, rec.ProductID, rec.VariantID, newPrice, &compareAt); err != nil {
		return report, err
	}

	report.BackupValue = pricing.Price
	report.NewValue = newPrice
	return report, nil
}

func (e *Executor) applyMoveToCollection(ctx context.Context, client shopify.CatalogClient, rec *models.FactRecord, trig models.Trigger) (models.TriggerReport, error) {
	report := models.TriggerReport{Type: trig.Type}

	collectionID, err := configString(trig.Config.Value)
	if err != nil {
		return report, fmt.Errorf("invalid collection id: %w", err)
	}
	if !strings.HasPrefix(collectionID, collectionGIDPrefix) {
		collectionID = collectionGIDPrefix + collectionID
	}

	if err := client.AddToCollection(ctx, collectionID, rec.ProductID); err != nil {
		return report, err
	}

	report.NewValue = collectionID
	return report, nil
}

func (e *Executor) applyAddTag(ctx context.Context, client shopify.CatalogClient, rec *models.FactRecord, trig models.Trigger) (models.TriggerReport, error) {
	report := models.TriggerReport{Type: trig.Type}

	tag, err := configString(trig.Config.Value)
	if err != nil {
		return report, fmt.Errorf("invalid tag: %w", err)
	}

	if err := client.AddTags(ctx, rec.ProductID, []string{tag}); err != nil {
		return report, err
	}

	report.NewValue = tag
	return report, nil
}

// ApplyRule runs every trigger of the rule against the record, in order,
// and records the outcome as one ledger entry. A rule already present in
// the record's ledger is refused with models.ErrAlreadyApplied. Individual
// trigger failures are captured in the entry and do not stop later
// triggers.
func (e *Executor) ApplyRule(ctx context.Context, rec *models.FactRecord, rule *models.Rule) (*models.LedgerEntry, error) {
	if rec.TriggeredRules.Contains(rule.ID) {
		return nil, models.ErrAlreadyApplied
	}

	client := e.clients.ClientFor(rec.Shop)
	now := time.Now()

	entry := models.LedgerEntry{
		ID:        rule.ID,
		CreatedAt: now,
		Reports:   make([]models.TriggerReport, 0, len(rule.Trigger)),
	}
	for _, trig := range rule.Trigger {
		report, err := e.apply(ctx, client, rec, trig)
		if err != nil {
			report.ErrorMessage = err.Error()
			logger.Warn("Trigger failed",
				logger.ErrorField(err),
				logger.String("rule_id", rule.ID),
				logger.String("fact_id", rec.ID),
				logger.String("trigger_type", string(trig.Type)),
			)
		}
		entry.Reports = append(entry.Reports, report)
	}

	// The mirror is best-effort: a write failure loses the external copy
	// but not the local ledger.
	if err := e.mergeMirror(ctx, client, rec, entry); err != nil {
		logger.Warn("Failed to update ledger mirror",
			logger.ErrorField(err),
			logger.String("fact_id", rec.ID),
			logger.String("rule_id", rule.ID),
		)
	}

	rec.TriggeredRules = rec.TriggeredRules.Upsert(entry)
	if err := e.facts.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save fact record: %w", err)
	}

	if err := e.rules.SetLastTriggered(ctx, rule.Shop, rule.ID, now); err != nil {
		logger.Warn("Failed to stamp last_triggered_at",
			logger.ErrorField(err),
			logger.String("rule_id", rule.ID),
		)
	}

	logger.Info("Rule applied",
		logger.String("rule_id", rule.ID),
		logger.String("fact_id", rec.ID),
		logger.Int("triggers", len(entry.Reports)),
	)
	return &entry, nil
}

// RevertRule undoes the rule's application on the record, cascading: every
// entry applied after the target is reverted first, newest to oldest, then
// the target itself. Any catalog failure aborts the whole revert with the
// ledger untouched. On success the reverted entries leave both the local
// ledger and the mirror, and the record's variant joins the rule's
// permanent exclusion list.
func (e *Executor) RevertRule(ctx context.Context, rec *models.FactRecord, rule *models.Rule) error {
	sorted := rec.TriggeredRules.SortedNewestFirst()
	k := sorted.IndexOf(rule.ID)
	if k < 0 {
		rulesReverted.WithLabelValues("not_found").Inc()
		return models.ErrEntryNotFound
	}

	client := e.clients.ClientFor(rec.Shop)

	for i := 0; i <= k; i++ {
		for _, report := range sorted[i].Reports {
			if report.Failed() {
				continue
			}
			if err := e.revertReport(ctx, client, rec, report); err != nil {
				rulesReverted.WithLabelValues("failed").Inc()
				return fmt.Errorf("failed to revert rule %s trigger %s: %w", sorted[i].ID, report.Type, err)
			}
		}
	}

	revertedIDs := make([]string, 0, k+1)
	for i := 0; i <= k; i++ {
		revertedIDs = append(revertedIDs, sorted[i].ID)
	}

	if err := e.pruneMirror(ctx, client, rec, revertedIDs); err != nil {
		logger.Warn("Failed to prune ledger mirror",
			logger.ErrorField(err),
			logger.String("fact_id", rec.ID),
		)
	}

	// Only the rule the merchant asked to revert gains the exclusion. The
	// cascaded rules may re-apply on the next run. The exclusion is
	// persisted before the ledger save; until the entry leaves the
	// ledger it still blocks re-application.
	excluded := appendExclusion(rule.ExcludedProducts, rec.ProductID, rec.VariantID)
	if err := e.rules.SetExcludedProducts(ctx, rule.Shop, rule.ID, excluded); err != nil {
		rulesReverted.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to update rule exclusions: %w", err)
	}
	rule.ExcludedProducts = excluded

	ledger := rec.TriggeredRules
	for _, id := range revertedIDs {
		ledger = ledger.Without(id)
	}
	rec.TriggeredRules = ledger
	if err := e.facts.Save(ctx, rec); err != nil {
		rulesReverted.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to save fact record: %w", err)
	}

	rulesReverted.WithLabelValues("ok").Inc()
	logger.Info("Rule reverted",
		logger.String("rule_id", rule.ID),
		logger.String("fact_id", rec.ID),
		logger.Int("entries_reverted", len(revertedIDs)),
	)
	return nil
}

func (e *Executor) revertReport(ctx context.Context, client shopify.CatalogClient, rec *models.FactRecord, report models.TriggerReport) error {
	switch report.Type {
	case models.TriggerDiscount, models.TriggerDiscountFixedAmount:
		backup, err := report.BackupFloat()
		if err != nil {
			return err
		}
		pricing, err := client.VariantPricing(ctx, rec.VariantID)
		if err != nil {
			return err
		}
		return client.UpdateVariantPrice(ctx, rec.ProductID, rec.VariantID, backup, pricing.CompareAtPrice)
	case models.TriggerMoveToCollection:
		collectionID, err := report.NewString()
		if err != nil {
			return err
		}
		return client.RemoveFromCollection(ctx, collectionID, rec.ProductID)
	case models.TriggerAddTag:
		tag, err := report.NewString()
		if err != nil {
			return err
		}
		return client.RemoveTags(ctx, rec.ProductID, []string{tag})
	default:
		return fmt.Errorf("unknown trigger type in report: %s", report.Type)
	}
}

func appendExclusion(excluded []models.ScopeTarget, productID, variantID string) []models.ScopeTarget {
	out := make([]models.ScopeTarget, len(excluded))
	copy(out, excluded)

	for i, target := range out {
		if target.ID != productID {
			continue
		}
		for _, v := range target.Variants {
			if v == variantID {
				return out
			}
		}
		variants := make([]string, len(target.Variants), len(target.Variants)+1)
		copy(variants, target.Variants)
		out[i].Variants = append(variants, variantID)
		return out
	}
	return append(out, models.ScopeTarget{ID: productID, Variants: []string{variantID}})
}

func configFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}

func configString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("value %v is not a non-empty string", v)
	}
	return s, nil
}
