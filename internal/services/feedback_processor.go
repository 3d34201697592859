package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/learning"
	"github.com/temcen/retouch/internal/messaging"
	"github.com/temcen/retouch/pkg/models"
)

const (
	kindEnhancement = "enhancement"
	kindCustom      = "custom"

	sinkCache  = "cache"
	sinkGraph  = "graph"
	sinkEvents = "events"
)

var (
	ErrQueueFull        = errors.New("feedback queue full")
	ErrProcessorStopped = errors.New("feedback processor stopped")
)

type feedbackResult struct {
	profile *learning.UserLearningProfile
	custom  *learning.CustomEnhancementProfile
	err     error
}

type feedbackJob struct {
	ctx         context.Context
	enhancement *models.EnhancementFeedback
	custom      *models.CustomProfileFeedback
	publish     bool
	done        chan feedbackResult
}

func (j *feedbackJob) kind() string {
	if j.custom != nil {
		return kindCustom
	}
	return kindEnhancement
}

// FeedbackProcessor applies feedback on a fixed pool of workers. Each user is
// pinned to one worker, so one user's feedback is applied in arrival order
// while different users proceed in parallel.
//
// Persistence failures are returned to the caller. Cache invalidation, the
// graph mirror and event publishing are best effort.
type FeedbackProcessor struct {
	learning LearningStore
	cache    RecommendationCacher
	graph    FeedbackGraphWriter
	events   EventPublisher
	metrics  *MetricsCollector
	logger   *logrus.Logger
	timeout  time.Duration
	now      func() time.Time

	shards []chan *feedbackJob

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

type FeedbackProcessorConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

func NewFeedbackProcessor(cfg FeedbackProcessorConfig, ls LearningStore, logger *logrus.Logger) *FeedbackProcessor {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}

	shards := make([]chan *feedbackJob, cfg.Workers)
	for i := range shards {
		shards[i] = make(chan *feedbackJob, cfg.QueueSize)
	}

	return &FeedbackProcessor{
		learning: ls,
		logger:   logger,
		timeout:  cfg.Timeout,
		now:      time.Now,
		shards:   shards,
	}
}

// WithCache, WithGraph, WithEvents and WithMetrics attach the optional
// sinks. Call them before Start.
func (p *FeedbackProcessor) WithCache(cache RecommendationCacher) *FeedbackProcessor {
	p.cache = cache
	return p
}

func (p *FeedbackProcessor) WithGraph(graph FeedbackGraphWriter) *FeedbackProcessor {
	p.graph = graph
	return p
}

func (p *FeedbackProcessor) WithEvents(events EventPublisher) *FeedbackProcessor {
	p.events = events
	return p
}

func (p *FeedbackProcessor) WithMetrics(metrics *MetricsCollector) *FeedbackProcessor {
	p.metrics = metrics
	return p
}

func (p *FeedbackProcessor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i, shard := range p.shards {
		p.wg.Add(1)
		go p.worker(i, shard)
	}

	p.logger.WithField("workers", len(p.shards)).Info("Started feedback processor")
}

// Stop rejects new feedback, drains the queues and waits for the workers.
func (p *FeedbackProcessor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, shard := range p.shards {
		close(shard)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Feedback processor stopped")
}

func (p *FeedbackProcessor) shardFor(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(p.shards)))
}

// Process validates fb, applies it on the user's worker and returns the
// updated learning snapshot.
func (p *FeedbackProcessor) Process(ctx context.Context, fb models.EnhancementFeedback) (*learning.UserLearningProfile, error) {
	return p.process(ctx, fb, true)
}

func (p *FeedbackProcessor) process(ctx context.Context, fb models.EnhancementFeedback, publish bool) (*learning.UserLearningProfile, error) {
	if err := learning.ValidateFeedback(&fb); err != nil {
		p.metrics.RecordFeedback(kindEnhancement, "rejected", 0)
		return nil, err
	}
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = p.now().UTC()
	}

	result, err := p.submit(ctx, fb.UserID, &feedbackJob{enhancement: &fb, publish: publish})
	if err != nil {
		return nil, err
	}
	return result.profile, result.err
}

// ProcessCustom applies a custom profile rating on the owner's worker.
func (p *FeedbackProcessor) ProcessCustom(ctx context.Context, fb models.CustomProfileFeedback) (*learning.CustomEnhancementProfile, error) {
	return p.processCustom(ctx, fb, true)
}

func (p *FeedbackProcessor) processCustom(ctx context.Context, fb models.CustomProfileFeedback, publish bool) (*learning.CustomEnhancementProfile, error) {
	if err := learning.ValidateCustomFeedback(&fb); err != nil {
		p.metrics.RecordFeedback(kindCustom, "rejected", 0)
		return nil, err
	}
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = p.now().UTC()
	}

	result, err := p.submit(ctx, fb.UserID, &feedbackJob{custom: &fb, publish: publish})
	if err != nil {
		return nil, err
	}
	return result.custom, result.err
}

func (p *FeedbackProcessor) submit(ctx context.Context, userID string, job *feedbackJob) (feedbackResult, error) {
	job.ctx = ctx
	job.done = make(chan feedbackResult, 1)

	shard := p.shardFor(userID)

	p.mu.RLock()
	if p.stopped || !p.started {
		p.mu.RUnlock()
		return feedbackResult{}, ErrProcessorStopped
	}
	select {
	case p.shards[shard] <- job:
	default:
		p.mu.RUnlock()
		p.metrics.RecordFeedback(job.kind(), "dropped", 0)
		return feedbackResult{}, fmt.Errorf("%w: shard %d", ErrQueueFull, shard)
	}
	p.mu.RUnlock()

	p.metrics.SetQueueDepth(strconv.Itoa(shard), len(p.shards[shard]))

	select {
	case result := <-job.done:
		return result, nil
	case <-ctx.Done():
		return feedbackResult{}, ctx.Err()
	}
}

func (p *FeedbackProcessor) worker(id int, jobs <-chan *feedbackJob) {
	defer p.wg.Done()
	shard := strconv.Itoa(id)

	for job := range jobs {
		start := p.now()
		result := p.handle(job)

		outcome := "applied"
		if result.err != nil {
			outcome = "failed"
		}
		p.metrics.RecordFeedback(job.kind(), outcome, p.now().Sub(start))
		p.metrics.SetQueueDepth(shard, len(jobs))

		job.done <- result
	}
}

func (p *FeedbackProcessor) handle(job *feedbackJob) feedbackResult {
	ctx := job.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if job.custom != nil {
		return p.handleCustom(ctx, *job.custom, job.publish)
	}
	return p.handleEnhancement(ctx, *job.enhancement, job.publish)
}

func (p *FeedbackProcessor) handleEnhancement(ctx context.Context, fb models.EnhancementFeedback, publish bool) feedbackResult {
	profile, err := p.learning.ApplyFeedback(ctx, fb)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":          fb.UserID,
			"enhancement_type": fb.EnhancementType,
		}).Error("Failed to apply feedback")
		return feedbackResult{err: err}
	}

	p.metrics.ObserveSatisfaction(fb.EnhancementType, fb.SatisfactionScore)
	p.invalidate(ctx, fb.UserID)

	if p.graph != nil {
		if err := p.graph.RecordFeedback(ctx, fb); err != nil {
			p.metrics.RecordSideEffectFailure(sinkGraph)
			p.logger.WithError(err).WithField("user_id", fb.UserID).Warn("Failed to mirror feedback to graph")
		}
	}

	if publish {
		p.publish(ctx, messaging.NewEnhancementEvent(fb))
	}

	return feedbackResult{profile: profile}
}

func (p *FeedbackProcessor) handleCustom(ctx context.Context, fb models.CustomProfileFeedback, publish bool) feedbackResult {
	custom, err := p.learning.ApplyCustomFeedback(ctx, fb)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":    fb.UserID,
			"profile_id": fb.ProfileID,
		}).Error("Failed to apply custom profile feedback")
		return feedbackResult{err: err}
	}

	p.invalidate(ctx, fb.UserID)
	if publish {
		p.publish(ctx, messaging.NewCustomEvent(fb))
	}

	return feedbackResult{custom: custom}
}

func (p *FeedbackProcessor) invalidate(ctx context.Context, userID string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Invalidate(ctx, userID); err != nil {
		p.metrics.RecordSideEffectFailure(sinkCache)
		p.logger.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate recommendation cache")
	}
}

func (p *FeedbackProcessor) publish(ctx context.Context, event messaging.FeedbackEvent) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(ctx, event); err != nil {
		p.metrics.RecordSideEffectFailure(sinkEvents)
		p.logger.WithError(err).WithField("event_id", event.EventID).Warn("Failed to publish feedback event")
	}
}

// HandleEvent is the Kafka consumer handler. Consumed feedback is applied
// without republishing; validation and ownership failures are permanent.
func (p *FeedbackProcessor) HandleEvent(ctx context.Context, event messaging.FeedbackEvent) error {
	var err error
	switch {
	case event.Kind == messaging.EventEnhancementFeedback && event.Enhancement != nil:
		_, err = p.process(ctx, *event.Enhancement, false)
	case event.Kind == messaging.EventCustomFeedback && event.Custom != nil:
		_, err = p.processCustom(ctx, *event.Custom, false)
	default:
		return messaging.Permanent(fmt.Errorf("malformed %q event", event.Kind))
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, learning.ErrInvalidFeedback),
		errors.Is(err, learning.ErrUserMismatch),
		errors.Is(err, learning.ErrProfileNotFound):
		return messaging.Permanent(err)
	default:
		return err
	}
}
