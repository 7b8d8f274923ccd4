// Package scheduler walks a shop's fact records, derives the current
// inventory and sale-velocity facts, matches the shop's active rules and
// enqueues a trigger job for every match.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/outletx/merch-engine/internal/engine"
	"github.com/outletx/merch-engine/internal/facts"
	"github.com/outletx/merch-engine/internal/models"
	"github.com/outletx/merch-engine/internal/pubsub"
	"github.com/outletx/merch-engine/internal/storage"
	"github.com/outletx/merch-engine/pkg/logger"
)

var (
	productsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_products_scanned_total",
			Help: "Total number of fact records evaluated",
		},
		[]string{"shop"},
	)

	rulesMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_rules_matched_total",
			Help: "Total number of product/rule matches",
		},
		[]string{"shop"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_run_duration_seconds",
			Help:    "Duration of scheduler runs",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RunSummary is what a scheduler run reports back, enqueue failures
// included.
type RunSummary struct {
	Shop              string    `json:"shop"`
	ProductsProcessed int       `json:"products_processed"`
	RulesMatched      int       `json:"rules_matched"`
	JobsEnqueued      int       `json:"jobs_enqueued"`
	StartedAt         time.Time `json:"started_at"`
	Duration          string    `json:"duration"`
}

// Runner evaluates one shop's rules against its fact records.
type Runner struct {
	rules     storage.RuleStore
	facts     storage.FactStore
	settings  storage.SettingsStore
	publisher *pubsub.TriggerPublisher
	lookback  facts.Lookback
}

// NewRunner creates a scheduler runner.
func NewRunner(rules storage.RuleStore, factStore storage.FactStore, settings storage.SettingsStore, publisher *pubsub.TriggerPublisher) *Runner {
	return &Runner{
		rules:     rules,
		facts:     factStore,
		settings:  settings,
		publisher: publisher,
		lookback:  facts.DefaultLookback(),
	}
}

// Run evaluates every fact record of the shop against its active rules.
// Records are processed concurrently. Enqueue failures are logged and
// counted but never fail the run: a lost dispatch is retried naturally on
// the next run because the ledger still lacks the entry.
func (r *Runner) Run(ctx context.Context, shop string) (*RunSummary, error) {
	started := time.Now()
	summary := &RunSummary{Shop: shop, StartedAt: started}

	settings, err := r.settings.Get(ctx, shop)
	if err != nil {
		return nil, err
	}
	if settings != nil && !settings.Enabled {
		logger.Info("Shop disabled, skipping run", logger.String("shop", shop))
		summary.Duration = time.Since(started).String()
		return summary, nil
	}

	rules, err := r.rules.GetAllActive(ctx, shop)
	if err != nil {
		return nil, err
	}
	records, err := r.facts.FindAllByShop(ctx, shop)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		matched  int
		enqueued int
	)
	for _, rec := range records {
		wg.Add(1)
		go func(rec *models.FactRecord) {
			defer wg.Done()

			inv := facts.Inventory(rec)
			rec.Inventory = &inv
			rec.SaleVelocity = facts.SaleVelocity(rec.Orders, now, r.lookback)

			hits := engine.Match(rec, rules, settings)
			productsScanned.WithLabelValues(shop).Inc()
			if len(hits) == 0 {
				return
			}
			rulesMatched.WithLabelValues(shop).Add(float64(len(hits)))

			ok := 0
			for _, rule := range hits {
				if err := r.publisher.Enqueue(ctx, shop, rec.ID, rule.ID); err != nil {
					logger.Warn("Failed to enqueue trigger job",
						logger.ErrorField(err),
						logger.String("fact_id", rec.ID),
						logger.String("rule_id", rule.ID),
					)
					continue
				}
				ok++
			}

			mu.Lock()
			matched += len(hits)
			enqueued += ok
			mu.Unlock()
		}(rec)
	}
	wg.Wait()

	summary.ProductsProcessed = len(records)
	summary.RulesMatched = matched
	summary.JobsEnqueued = enqueued
	summary.Duration = time.Since(started).String()
	runDuration.Observe(time.Since(started).Seconds())

	logger.Info("Scheduler run finished",
		logger.String("shop", shop),
		logger.Int("products", summary.ProductsProcessed),
		logger.Int("matched", summary.RulesMatched),
		logger.Int("enqueued", summary.JobsEnqueued),
	)
	return summary, nil
}
