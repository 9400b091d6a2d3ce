package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/delegation"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/repository"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/service"
)

// ValidationJob periodically runs the validation processor for every loaded
// session credential, and purges expired credentials and feedback tokens.
// Credentials are handled one at a time; a broken credential never blocks
// the others.
type ValidationJob struct {
	credentials repository.SessionCredentialRepository
	feedback    repository.FeedbackAuthorizationRepository
	results     repository.ValidationResultRepository
	builder     *delegation.ContextBuilder
	processor   *service.ValidationProcessor
	interval    time.Duration
	done        chan struct{}
}

func NewValidationJob(
	credentials repository.SessionCredentialRepository,
	feedback repository.FeedbackAuthorizationRepository,
	results repository.ValidationResultRepository,
	builder *delegation.ContextBuilder,
	processor *service.ValidationProcessor,
	interval time.Duration,
) *ValidationJob {
	return &ValidationJob{
		credentials: credentials,
		feedback:    feedback,
		results:     results,
		builder:     builder,
		processor:   processor,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *ValidationJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("validation job started")
}

func (j *ValidationJob) Stop() {
	close(j.done)
	log.Info().Msg("validation job stopped")
}

func (j *ValidationJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.pass()
		}
	}
}

func (j *ValidationJob) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	j.purge(ctx, "session credentials", j.credentials.DeleteExpired)
	j.purge(ctx, "feedback authorizations", j.feedback.DeleteExpired)

	credentials, err := j.credentials.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("validation job: could not list credentials")
		return
	}

	for i := range credentials {
		j.processCredential(ctx, &credentials[i])
	}

	j.logBacklog(ctx)
}

// logBacklog reports the accumulated result totals so a failed-response
// backlog shows up in the logs without a database query.
func (j *ValidationJob) logBacklog(ctx context.Context) {
	submitted, err := j.results.CountByStatus(ctx, model.ValidationResultSubmitted)
	if err != nil {
		log.Error().Err(err).Msg("validation job: could not count submitted results")
		return
	}
	failed, err := j.results.CountByStatus(ctx, model.ValidationResultFailed)
	if err != nil {
		log.Error().Err(err).Msg("validation job: could not count failed results")
		return
	}
	log.Info().
		Int("submitted", submitted).
		Int("failed", failed).
		Msg("validation job: result totals")
}

func (j *ValidationJob) processCredential(ctx context.Context, cred *model.SessionCredential) {
	dctx, err := j.builder.Build(cred, cred.ChainID)
	if err != nil {
		log.Warn().Err(err).
			Uint64("agentId", cred.AgentID).
			Int64("chainId", cred.ChainID).
			Msg("validation job: skipping unusable credential")
		return
	}

	results, err := j.processor.Process(ctx, dctx, service.ProcessFilters{})
	if err != nil {
		log.Error().Err(err).
			Uint64("agentId", cred.AgentID).
			Msg("validation job: processor pass failed")
		return
	}
	if len(results) > 0 {
		log.Info().
			Uint64("agentId", cred.AgentID).
			Int("handled", len(results)).
			Msg("validation job: pass complete")
	}
}

func (j *ValidationJob) purge(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to purge expired %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("purged expired %s", name)
	}
}
