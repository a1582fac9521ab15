package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"veostudio/internal/domain"
	"veostudio/internal/infra"
	"veostudio/internal/providers/video"
)

const DefaultPollInterval = 5 * time.Second

// CredentialGate is the part of the credential gate the orchestrator needs.
type CredentialGate interface {
	Present() bool
	Invalidate(reason string) bool
}

// CharacterLookup resolves character ids to their stored reference image.
type CharacterLookup interface {
	Character(id string) (domain.Character, bool)
}

// Notifier receives session-level notices.
type Notifier interface {
	Raise(code string)
	Clear()
}

type Options struct {
	Generator    video.Generator
	Gate         CredentialGate
	Characters   CharacterLookup
	Notices      Notifier
	Jobs         *Collection
	PollInterval time.Duration
	Logger       infra.Logger
	Metrics      *Metrics
	Tracer       trace.Tracer
	Now          func() time.Time
	NewID        func() string
}

// Orchestrator turns a generation config into a batch of jobs and drives
// each job's remote lifecycle concurrently. Lifecycles run on the
// orchestrator's own context, so they outlive the call that started them.
type Orchestrator struct {
	generator    video.Generator
	gate         CredentialGate
	characters   CharacterLookup
	notices      Notifier
	jobs         *Collection
	pollInterval time.Duration
	logger       infra.Logger
	metrics      *Metrics
	tracer       trace.Tracer
	now          func() time.Time
	newID        func() string

	root     context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inFlight atomic.Int64
	closed   atomic.Bool
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("batch: generator is required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("batch: credential gate is required")
	}

	o := &Orchestrator{
		generator:    opts.Generator,
		gate:         opts.Gate,
		characters:   opts.Characters,
		notices:      opts.Notices,
		jobs:         opts.Jobs,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
		now:          opts.Now,
		newID:        opts.NewID,
	}
	if o.jobs == nil {
		o.jobs = NewCollection()
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("veostudio/batch")
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.NewString() }
	}
	o.root, o.cancel = context.WithCancel(context.Background())
	return o, nil
}

func (o *Orchestrator) Jobs() *Collection { return o.jobs }

func (o *Orchestrator) Metrics() *Metrics { return o.metrics }

// IsGenerating is true while any launched batch still has a job that has
// not settled.
func (o *Orchestrator) IsGenerating() bool {
	return o.inFlight.Load() > 0
}

type jobPlan struct {
	prompt         string
	negativePrompt string
	aspectRatio    string
	reference      *domain.Character
}

// SubmitBatch creates cfg.BatchSize pending jobs, inserts them in a single
// collection update and starts their lifecycles. It returns once the jobs
// are visible; it does not wait for any of them.
func (o *Orchestrator) SubmitBatch(ctx context.Context, cfg domain.GenerationConfig) ([]domain.Job, error) {
	if o.closed.Load() {
		return nil, fmt.Errorf("batch: orchestrator is shut down")
	}
	if !o.gate.Present() {
		o.metrics.rejectedBatchesTotal.WithLabelValues("credential").Inc()
		return nil, domain.ErrCredentialUnavailable
	}
	cfg, err := cfg.Normalize()
	if err != nil {
		o.metrics.rejectedBatchesTotal.WithLabelValues("config").Inc()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plan := jobPlan{
		prompt:         cfg.ComposePrompt(),
		negativePrompt: cfg.NegativePrompt,
		aspectRatio:    string(cfg.AspectRatio),
	}
	if cfg.UseConsistentCharacter && cfg.CharacterID != "" && o.characters != nil {
		if char, ok := o.characters.Character(cfg.CharacterID); ok {
			plan.reference = &char
		} else {
			o.logger.Debug().Str("character_id", cfg.CharacterID).Msg("orchestrator: character not found, generating without reference")
		}
	}

	batchID := o.newID()
	model := o.generator.Model(plan.reference != nil)
	createdAt := o.now()
	jobs := make([]domain.Job, cfg.BatchSize)
	for i := range jobs {
		jobs[i] = domain.Job{
			ID:            o.newID(),
			BatchID:       batchID,
			Prompt:        plan.prompt,
			Status:        domain.JobStatusPending,
			AspectRatio:   cfg.AspectRatio,
			WatermarkText: cfg.WatermarkText,
			Model:         model,
			CreatedAt:     createdAt,
			UpdatedAt:     createdAt,
		}
		if plan.reference != nil {
			jobs[i].CharacterID = plan.reference.ID
		}
	}

	if err := o.jobs.InsertBatch(jobs); err != nil {
		return nil, fmt.Errorf("batch: insert jobs: %w", err)
	}
	if o.notices != nil {
		o.notices.Clear()
	}
	o.metrics.batchesTotal.Inc()

	o.inFlight.Add(1)
	o.wg.Add(1)
	go o.runBatch(batchID, jobs, plan)

	o.logger.Info().
		Str("batch_id", batchID).
		Int("jobs", len(jobs)).
		Str("model", model).
		Msg("orchestrator: batch launched")

	return jobs, nil
}

func (o *Orchestrator) runBatch(batchID string, jobs []domain.Job, plan jobPlan) {
	defer o.wg.Done()
	defer o.inFlight.Add(-1)

	var g errgroup.Group
	for _, job := range jobs {
		g.Go(func() error {
			o.runJob(o.root, job, plan)
			return nil
		})
	}
	_ = g.Wait()

	o.logger.Info().Str("batch_id", batchID).Msg("orchestrator: batch settled")
}

func (o *Orchestrator) runJob(ctx context.Context, job domain.Job, plan jobPlan) {
	startedAt := o.now()
	outcome := domain.JobStatusFailed
	log := o.logger.With().Str("job_id", job.ID).Str("batch_id", job.BatchID).Str("model", job.Model).Logger()

	ctx, span := o.tracer.Start(ctx, "batch.job", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.batch_id", job.BatchID),
		attribute.String("job.model", job.Model),
		attribute.Bool("job.reference", plan.reference != nil),
	)
	defer span.End()

	o.metrics.activeJobs.Inc()
	defer func() {
		o.metrics.activeJobs.Dec()
		o.metrics.jobDuration.WithLabelValues(job.Model, string(outcome)).Observe(o.now().Sub(startedAt).Seconds())
		o.metrics.jobsTotal.WithLabelValues(job.Model, string(outcome)).Inc()
	}()

	if _, err := o.jobs.Update(job.ID, func(j *domain.Job) { j.Status = domain.JobStatusGenerating }); err != nil {
		log.Error().Err(err).Msg("orchestrator: mark generating")
		return
	}

	req := video.GenerateRequest{
		Prompt:         plan.prompt,
		NegativePrompt: plan.negativePrompt,
		AspectRatio:    plan.aspectRatio,
		RequestID:      job.ID,
	}
	if plan.reference != nil {
		req.ReferenceImage = plan.reference.ReferenceImageData
		req.ReferenceMIME = plan.reference.MimeType
	}

	op, err := o.submit(ctx, req)
	if err != nil {
		o.fail(span, log, job.ID, err)
		return
	}
	log.Debug().Str("operation", op.Name).Msg("orchestrator: job submitted")

	location, err := o.await(ctx, log, job.ID, op)
	if err != nil {
		o.fail(span, log, job.ID, err)
		return
	}

	if _, err := o.jobs.Update(job.ID, func(j *domain.Job) {
		j.Status = domain.JobStatusCompleted
		j.ResultLocation = location
	}); err != nil {
		log.Error().Err(err).Msg("orchestrator: mark completed")
		return
	}
	outcome = domain.JobStatusCompleted
	log.Info().Msg("orchestrator: job completed")
}

func (o *Orchestrator) submit(ctx context.Context, req video.GenerateRequest) (*video.Operation, error) {
	ctx, span := o.tracer.Start(ctx, "batch.submit")
	defer span.End()
	op, err := o.generator.Submit(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("operation.name", op.Name))
	return op, nil
}

// await polls op until it is done. Every not-done answer raises the job's
// estimated progress and waits one poll interval.
func (o *Orchestrator) await(ctx context.Context, log infra.Logger, jobID string, op *video.Operation) (string, error) {
	for attempt := 1; ; attempt++ {
		status, err := o.poll(ctx, op)
		if err != nil {
			return "", err
		}
		if status.Done {
			return status.ResultLocation, nil
		}

		progress := EstimateProgress(attempt)
		if _, err := o.jobs.Update(jobID, func(j *domain.Job) { j.Progress = progress }); err != nil {
			return "", err
		}
		log.Debug().Int("attempt", attempt).Int("progress", progress).Msg("orchestrator: operation still running")

		timer := time.NewTimer(o.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("generation cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func (o *Orchestrator) poll(ctx context.Context, op *video.Operation) (*video.Status, error) {
	ctx, span := o.tracer.Start(ctx, "batch.poll")
	defer span.End()
	o.metrics.pollAttemptsTotal.Inc()
	status, err := o.generator.Poll(ctx, op)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "poll failed")
		return nil, err
	}
	span.SetAttributes(attribute.Bool("operation.done", status.Done))
	return status, nil
}

// fail records err on the job. Only a credential rejection reaches beyond
// the job: it demotes the gate and raises the session notice.
func (o *Orchestrator) fail(span trace.Span, log infra.Logger, jobID string, err error) {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "Unknown error"
	}

	// The gate closes before the failure is published, so no observer sees
	// the rejected job while new batches are still accepted.
	if video.IsCredentialInvalid(err) {
		o.metrics.credentialInvalidations.Inc()
		if o.gate.Invalidate(msg) {
			log.Warn().Msg("orchestrator: credential rejected, gate closed")
		}
		if o.notices != nil {
			o.notices.Raise(domain.NoticeCredentialInvalidated)
		}
	}

	if _, uerr := o.jobs.Update(jobID, func(j *domain.Job) {
		j.Status = domain.JobStatusFailed
		j.ErrorMessage = msg
	}); uerr != nil {
		log.Error().Err(uerr).Msg("orchestrator: mark failed")
	}

	span.RecordError(fmt.Errorf("%w: %s", domain.ErrJobFailed, msg))
	span.SetStatus(codes.Error, "job failed")

	if errors.Is(err, context.Canceled) {
		log.Info().Msg("orchestrator: job cancelled")
		return
	}
	log.Warn().Err(err).Msg("orchestrator: job failed")
}

// Resolve returns a directly playable URL for a completed job.
func (o *Orchestrator) Resolve(ctx context.Context, jobID string) (string, error) {
	job, ok := o.jobs.Get(jobID)
	if !ok {
		return "", fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	if job.Status != domain.JobStatusCompleted || job.ResultLocation == "" {
		return "", fmt.Errorf("job %s is %s: %w", jobID, job.Status, domain.ErrJobNotCompleted)
	}
	url, err := o.generator.Resolve(ctx, job.ResultLocation)
	if err != nil {
		if video.IsCredentialInvalid(err) {
			return "", fmt.Errorf("%w: %v", domain.ErrCredentialUnavailable, err)
		}
		return "", err
	}
	return url, nil
}

// Wait blocks until every launched batch has settled.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown stops accepting batches, cancels in-flight lifecycles and waits
// for them to record their final state or for ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.closed.Store(true)
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
