package trigger

import (
	"context"
	"errors"
	"fmt"

	"github.com/outletx/merch-engine/internal/models"
	"github.com/outletx/merch-engine/internal/pubsub"
	"github.com/outletx/merch-engine/internal/storage"
	"github.com/outletx/merch-engine/pkg/logger"
)

// Processor turns dequeued trigger jobs into rule applications. It is the
// worker-side counterpart of the scheduler's enqueue.
type Processor struct {
	executor *Executor
	facts    storage.FactStore
	rules    storage.RuleStore
}

// NewProcessor creates a job processor.
func NewProcessor(executor *Executor, facts storage.FactStore, rules storage.RuleStore) *Processor {
	return &Processor{executor: executor, facts: facts, rules: rules}
}

// HandleTriggerJob loads the job's fact record and rule and applies the
// rule. A rule that already triggered on the record since the job was
// enqueued is not an error.
func (p *Processor) HandleTriggerJob(ctx context.Context, job pubsub.TriggerJob) error {
	rec, err := p.facts.Load(ctx, job.FactID)
	if err != nil {
		return fmt.Errorf("failed to load fact record %s: %w", job.FactID, err)
	}

	rule, err := p.rules.Get(ctx, job.Shop, job.RuleID)
	if err != nil {
		return fmt.Errorf("failed to load rule %s: %w", job.RuleID, err)
	}

	if _, err := p.executor.ApplyRule(ctx, rec, rule); err != nil {
		if errors.Is(err, models.ErrAlreadyApplied) {
			logger.Debug("Rule already applied, skipping job",
				logger.String("job_id", job.ID),
				logger.String("rule_id", job.RuleID),
				logger.String("fact_id", job.FactID),
			)
			return nil
		}
		return err
	}
	return nil
}
