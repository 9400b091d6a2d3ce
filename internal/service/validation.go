package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/audit"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/config"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/delegation"
	apperrors "github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/errors"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/repository"
)

// ValidationProcessor drains the outstanding validation requests addressed to
// a delegated validator account. Each request is handled independently; one
// failed item records a failed result and the batch keeps going.
type ValidationProcessor struct {
	trust         TrustProvider
	identity      IdentityProvider
	executor      OperationExecutor
	results       repository.ValidationResultRepository
	lookupTimeout time.Duration
}

func NewValidationProcessor(trust TrustProvider, identity IdentityProvider, executor OperationExecutor, results repository.ValidationResultRepository) *ValidationProcessor {
	return &ValidationProcessor{
		trust:         trust,
		identity:      identity,
		executor:      executor,
		results:       results,
		lookupTimeout: config.IdentityLookupTimeout,
	}
}

// WithLookupTimeout overrides the identity lookup bound, for tests.
func (p *ValidationProcessor) WithLookupTimeout(d time.Duration) *ValidationProcessor {
	p.lookupTimeout = d
	return p
}

// ProcessFilters narrows a processor pass. Nil fields match everything.
type ProcessFilters struct {
	AgentID     *uint64
	RequestHash *common.Hash
}

func (f ProcessFilters) matchAgent(agentID uint64) bool {
	return f.AgentID == nil || *f.AgentID == agentID
}

func (f ProcessFilters) matchHash(hash common.Hash) bool {
	return f.RequestHash == nil || *f.RequestHash == hash
}

// Process enumerates the requests assigned to the context's delegated
// account, responds to every pending one that passes the filters, and
// returns one result per handled request.
func (p *ValidationProcessor) Process(ctx context.Context, dctx *delegation.Context, filters ProcessFilters) ([]model.ValidationResult, error) {
	chainID := dctx.Chain.ChainID()
	runID := uuid.NewString()

	reader, err := p.trust(chainID)
	if err != nil {
		return nil, err
	}

	hashes, err := reader.ValidationRequests(ctx, dctx.DelegatedAddress)
	if err != nil {
		return nil, apperrors.External("ledger", err)
	}

	log.Info().
		Str("run_id", runID).
		Int64("chainId", chainID).
		Str("validator", dctx.DelegatedAddress.Hex()).
		Int("requests", len(hashes)).
		Msg("validation processor pass started")

	results := make([]model.ValidationResult, 0, len(hashes))
	for _, hash := range hashes {
		if !filters.matchHash(hash) {
			continue
		}

		status, err := reader.ValidationStatus(ctx, hash)
		if err != nil {
			results = append(results, p.record(ctx, runID, hash, 0, chainID, nil, err))
			continue
		}
		if !filters.matchAgent(status.AgentID) {
			continue
		}
		if !status.Pending() {
			log.Debug().
				Str("run_id", runID).
				Str("requestHash", hash.Hex()).
				Uint8("responseCode", status.ResponseCode).
				Msg("request already answered, skipping")
			continue
		}
		if !strings.EqualFold(status.ValidatorAddress, dctx.DelegatedAddress.Hex()) {
			log.Debug().
				Str("run_id", runID).
				Str("requestHash", hash.Hex()).
				Str("validator", status.ValidatorAddress).
				Msg("request assigned to a different validator, skipping")
			continue
		}

		txHash, err := p.respond(ctx, dctx, reader, hash, status)
		results = append(results, p.record(ctx, runID, hash, status.AgentID, chainID, txHash, err))
	}

	log.Info().
		Str("run_id", runID).
		Int("handled", len(results)).
		Msg("validation processor pass finished")

	return results, nil
}

// respond builds and submits the acceptance response for one request.
func (p *ValidationProcessor) respond(ctx context.Context, dctx *delegation.Context, reader TrustReader, hash common.Hash, status *model.ValidationRequestStatus) (*common.Hash, error) {
	tag, err := p.agentTag(ctx, dctx.Chain.ChainID(), status.AgentID)
	if err != nil {
		return nil, err
	}

	data := reader.EncodeValidationResponse(hash, model.ValidationResponseAccepted, tag)
	txHash, err := p.executor.Execute(ctx, dctx, []delegation.Call{{
		Target:  reader.ValidationAddress(),
		Payload: data,
	}})
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventValidationRespond,
		AgentID: status.AgentID,
		ChainID: dctx.Chain.ChainID(),
		Digest:  hash.Hex(),
		Details: map[string]interface{}{"txHash": txHash.Hex(), "tag": tag},
	})
	return &txHash, nil
}

// agentTag resolves the agent's display name for the response tag. A lookup
// that cannot complete in time degrades the tag to "unknown"; a lookup that
// completes and shows the agent missing or without a delegated account fails
// the item.
func (p *ValidationProcessor) agentTag(ctx context.Context, chainID int64, agentID uint64) (string, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, p.lookupTimeout)
	defer cancel()

	reader, err := p.identity(chainID)
	if err != nil {
		log.Warn().Err(err).Uint64("agentId", agentID).Msg("no identity registry for chain, using fallback tag")
		return "unknown", nil
	}
	agent, err := reader.Agent(lookupCtx, agentID)
	if err != nil {
		log.Warn().Err(err).Uint64("agentId", agentID).Msg("identity lookup failed, using fallback tag")
		return "unknown", nil
	}
	if agent == nil {
		return "", apperrors.NotFound("agent")
	}
	if agent.Account == "" {
		return "", apperrors.MissingRequired("agent account")
	}
	if agent.Name == "" {
		return "unknown", nil
	}
	return tagFromName(agent.Name), nil
}

// record persists and returns the per-item outcome. A persistence failure is
// logged and the in-memory result still returned; the response itself is
// already on its way.
func (p *ValidationProcessor) record(ctx context.Context, runID string, hash common.Hash, agentID uint64, chainID int64, txHash *common.Hash, itemErr error) model.ValidationResult {
	params := model.CreateValidationResultParams{
		RequestHash: hash.Hex(),
		AgentID:     agentID,
		ChainID:     chainID,
		Status:      model.ValidationResultSubmitted,
	}
	if txHash != nil {
		hex := txHash.Hex()
		params.TxHash = &hex
	}
	if itemErr != nil {
		params.Status = model.ValidationResultFailed
		msg := itemErr.Error()
		params.Error = &msg
		log.Warn().
			Str("run_id", runID).
			Str("requestHash", hash.Hex()).
			Err(itemErr).
			Msg("validation request failed")
	}

	stored, err := p.results.Create(ctx, params)
	if err != nil || stored == nil {
		if err != nil {
			log.Error().Err(err).Str("requestHash", hash.Hex()).Msg("could not persist validation result")
		}
		return model.ValidationResult{
			RequestHash: params.RequestHash,
			AgentID:     params.AgentID,
			ChainID:     params.ChainID,
			Status:      params.Status,
			TxHash:      params.TxHash,
			Error:       params.Error,
		}
	}
	return *stored
}

// tagFromName trims an agent name to the 32 bytes a response tag can carry,
// backing off to the last rune boundary so a multi-byte name never yields an
// invalid-UTF-8 tag.
func tagFromName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) <= 32 {
		return name
	}
	cut := 32
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
