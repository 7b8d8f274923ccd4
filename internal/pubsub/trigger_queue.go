package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/outletx/merch-engine/internal/storage"
	"github.com/outletx/merch-engine/pkg/logger"
)

const (
	// DefaultTriggerStream is the Redis stream carrying trigger jobs.
	DefaultTriggerStream = "trigger.jobs"
	// DefaultTriggerGroup is the consumer group applying them.
	DefaultTriggerGroup = "trigger-workers"

	jobField = "job"
)

var (
	jobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trigger_jobs_enqueued_total",
			Help: "Total number of trigger jobs enqueued",
		},
		[]string{"shop"},
	)

	jobsEnqueueErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trigger_jobs_enqueue_errors_total",
			Help: "Total number of trigger job enqueue failures",
		},
	)

	jobsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trigger_jobs_consumed_total",
			Help: "Total number of trigger jobs consumed",
		},
		[]string{"status"},
	)
)

// TriggerJob is one "apply this rule to this fact record" request. Each job
// is attempted at most once: failures are logged and counted, never
// redelivered.
type TriggerJob struct {
	ID         string    `json:"id"`
	Shop       string    `json:"shop"`
	FactID     string    `json:"fact_id"`
	RuleID     string    `json:"rule_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// TriggerPublisher enqueues trigger jobs onto the stream.
type TriggerPublisher struct {
	redis  storage.RedisClient
	stream string
}

// NewTriggerPublisher creates a publisher for the given stream.
func NewTriggerPublisher(redis storage.RedisClient, stream string) *TriggerPublisher {
	if stream == "" {
		stream = DefaultTriggerStream
	}
	return &TriggerPublisher{redis: redis, stream: stream}
}

// Enqueue publishes a job. Best-effort: the caller treats a failure as a
// lost dispatch, not a run failure.
func (p *TriggerPublisher) Enqueue(ctx context.Context, shop, factID, ruleID string) error {
	job := TriggerJob{
		ID:         uuid.New().String(),
		Shop:       shop,
		FactID:     factID,
		RuleID:     ruleID,
		EnqueuedAt: time.Now(),
	}

	if err := p.redis.PublishToStream(ctx, p.stream, jobField, job); err != nil {
		jobsEnqueueErrors.Inc()
		return fmt.Errorf("failed to enqueue trigger job: %w", err)
	}

	jobsEnqueued.WithLabelValues(shop).Inc()
	logger.Debug("Trigger job enqueued",
		logger.String("job_id", job.ID),
		logger.String("fact_id", factID),
		logger.String("rule_id", ruleID),
	)
	return nil
}

// JobHandler applies one trigger job.
type JobHandler interface {
	HandleTriggerJob(ctx context.Context, job TriggerJob) error
}

// TriggerConsumerConfig holds configuration for the trigger consumer.
type TriggerConsumerConfig struct {
	Stream         string
	ConsumerGroup  string
	ConsumerName   string
	ProcessTimeout time.Duration
}

// DefaultTriggerConsumerConfig returns default configuration.
func DefaultTriggerConsumerConfig(consumerName string) TriggerConsumerConfig {
	return TriggerConsumerConfig{
		Stream:         DefaultTriggerStream,
		ConsumerGroup:  DefaultTriggerGroup,
		ConsumerName:   consumerName,
		ProcessTimeout: 30 * time.Second,
	}
}

// TriggerConsumer reads jobs from the stream and hands them to a handler.
// Every message is acknowledged whether the handler succeeded or not,
// keeping the at-most-one-attempt contract.
type TriggerConsumer struct {
	config  TriggerConsumerConfig
	redis   storage.RedisClient
	handler JobHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewTriggerConsumer creates a new trigger job consumer.
func NewTriggerConsumer(redis storage.RedisClient, handler JobHandler, config TriggerConsumerConfig) *TriggerConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &TriggerConsumer{
		config:  config,
		redis:   redis,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins consuming jobs.
func (c *TriggerConsumer) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer is already running")
	}
	c.running = true
	c.mu.Unlock()

	messages, err := c.redis.ConsumeFromStream(c.ctx, c.config.Stream, c.config.ConsumerGroup, c.config.ConsumerName)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	logger.Info("Starting trigger job consumer",
		logger.String("stream", c.config.Stream),
		logger.String("group", c.config.ConsumerGroup),
		logger.String("consumer", c.config.ConsumerName),
	)

	c.wg.Add(1)
	go c.consume(messages)
	return nil
}

// Stop stops the consumer and waits for in-flight jobs.
func (c *TriggerConsumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	logger.Info("Trigger job consumer stopped")
}

func (c *TriggerConsumer) consume(messages <-chan storage.StreamMessage) {
	defer c.wg.Done()

	for msg := range messages {
		job, err := decodeJob(msg)
		if err != nil {
			logger.Error("Dropping undecodable trigger job",
				logger.ErrorField(err),
				logger.String("message_id", msg.ID),
			)
			jobsConsumed.WithLabelValues("undecodable").Inc()
			c.ack(msg)
			continue
		}

		ctx, cancel := context.WithTimeout(c.ctx, c.config.ProcessTimeout)
		if err := c.handler.HandleTriggerJob(ctx, job); err != nil {
			// At most one attempt: the failure is visible only here.
			logger.Error("Trigger job failed",
				logger.ErrorField(err),
				logger.String("job_id", job.ID),
				logger.String("fact_id", job.FactID),
				logger.String("rule_id", job.RuleID),
			)
			jobsConsumed.WithLabelValues("failed").Inc()
		} else {
			jobsConsumed.WithLabelValues("ok").Inc()
		}
		cancel()

		c.ack(msg)
	}
}

func (c *TriggerConsumer) ack(msg storage.StreamMessage) {
	if err := c.redis.AcknowledgeMessage(c.ctx, c.config.Stream, c.config.ConsumerGroup, msg.ID); err != nil {
		logger.Warn("Failed to acknowledge trigger job",
			logger.ErrorField(err),
			logger.String("message_id", msg.ID),
		)
	}
}

func decodeJob(msg storage.StreamMessage) (TriggerJob, error) {
	raw, ok := msg.Values[jobField]
	if !ok {
		return TriggerJob{}, fmt.Errorf("message %s has no %q field", msg.ID, jobField)
	}
	s, ok := raw.(string)
	if !ok {
		return TriggerJob{}, fmt.Errorf("message %s field %q is not a string", msg.ID, jobField)
	}

	var job TriggerJob
	if err := json.Unmarshal([]byte(s), &job); err != nil {
		return TriggerJob{}, fmt.Errorf("failed to decode trigger job: %w", err)
	}
	return job, nil
}
