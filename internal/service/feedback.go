package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/association"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/audit"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/config"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/delegation"
	apperrors "github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/errors"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/repository"
)

// The feedback authorization is its own EIP-712 style typed payload, bound
// to agent, client, chain and expiry so a token issued for one pair can
// never be replayed for another. Constants are part of the wire format.
var (
	feedbackDomainSeparator = crypto.Keccak256Hash(
		crypto.Keccak256([]byte("EIP712Domain(string name,string version)")),
		crypto.Keccak256([]byte("AgenticTrustFeedback")),
		crypto.Keccak256([]byte("1")),
	)
	feedbackTypeHash = crypto.Keccak256Hash([]byte(
		"FeedbackAuthorization(uint256 agentId,address client,uint256 chainId,bytes32 skillId,uint64 expiry)"))
)

// AssociationStorer is the prerequisite-association surface the feedback
// flow needs. Implemented by AssociationService.
type AssociationStorer interface {
	StoreInitiatorOnly(ctx context.Context, dctx *delegation.Context, record model.AssociationRecord, keyType model.KeyType, initiatorSig []byte) (*StoreResult, error)
}

// FeedbackService issues signed feedback authorizations, optionally storing
// a trust association first.
type FeedbackService struct {
	identity      IdentityProvider
	associations  AssociationStorer
	repo          repository.FeedbackAuthorizationRepository
	ttl           time.Duration
	lookupTimeout time.Duration
}

func NewFeedbackService(identity IdentityProvider, associations AssociationStorer, repo repository.FeedbackAuthorizationRepository, ttl time.Duration) *FeedbackService {
	return &FeedbackService{
		identity:      identity,
		associations:  associations,
		repo:          repo,
		ttl:           ttl,
		lookupTimeout: config.IdentityLookupTimeout,
	}
}

// WithLookupTimeout overrides the identity lookup bound, for tests.
func (s *FeedbackService) WithLookupTimeout(d time.Duration) *FeedbackService {
	s.lookupTimeout = d
	return s
}

// AssociationPrerequisite asks for a trust association to be stored before
// the authorization is issued.
type AssociationPrerequisite struct {
	Record       model.AssociationRecord
	KeyType      model.KeyType
	InitiatorSig []byte
}

type IssueParams struct {
	AgentID       uint64
	ClientAddress string
	SkillID       *string
	ExpiresAt     *time.Time
	Association   *AssociationPrerequisite
}

// AssociationOutcome reports how the prerequisite association fared. The
// authorization is issued either way; the caller uses this to distinguish
// "authorization issued, association pending" from "both committed".
type AssociationOutcome struct {
	Digest    common.Hash  `json:"digest"`
	TxHash    *common.Hash `json:"txHash,omitempty"`
	Completed bool         `json:"completed"`
	Error     string       `json:"error,omitempty"`
}

type IssueResult struct {
	Authorization *model.FeedbackAuthorization `json:"authorization"`
	Association   *AssociationOutcome          `json:"association,omitempty"`
}

// Issue validates the request, runs the optional association prerequisite,
// signs the authorization payload with the session key, and persists the
// token.
func (s *FeedbackService) Issue(ctx context.Context, dctx *delegation.Context, params IssueParams) (*IssueResult, error) {
	if !common.IsHexAddress(params.ClientAddress) {
		return nil, apperrors.InvalidInput("clientAddress", "not a valid account address")
	}
	if params.AgentID == 0 {
		return nil, apperrors.MissingRequired("agentId")
	}

	chainID := dctx.Chain.ChainID()
	if err := s.checkAgentExists(ctx, chainID, params.AgentID); err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.ttl)
	if params.ExpiresAt != nil {
		expiresAt = *params.ExpiresAt
	}
	if expiresAt.Before(time.Now()) {
		return nil, apperrors.InvalidInput("expiresAt", "already in the past")
	}

	result := &IssueResult{}
	if params.Association != nil {
		result.Association = s.storePrerequisite(ctx, dctx, params.Association)
	}

	digest := feedbackDigest(params.AgentID, common.HexToAddress(params.ClientAddress), chainID, params.SkillID, expiresAt)
	sig, err := association.SignDigest(digest, dctx.Signer)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "could not sign feedback authorization", err)
	}

	auth, err := s.repo.Create(ctx, model.CreateFeedbackAuthorizationParams{
		AgentID:       params.AgentID,
		ClientAddress: common.HexToAddress(params.ClientAddress).Hex(),
		ChainID:       chainID,
		SkillID:       params.SkillID,
		ExpiresAt:     expiresAt,
		Signature:     sig,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	result.Authorization = auth

	audit.Log(ctx, audit.Event{
		Type:    audit.EventFeedbackIssue,
		AgentID: params.AgentID,
		ChainID: chainID,
		Details: map[string]interface{}{
			"client":    auth.ClientAddress,
			"expiresAt": expiresAt.UTC().Format(time.RFC3339),
		},
	})

	return result, nil
}

// checkAgentExists confirms the agent id resolves. A lookup that cannot
// finish in time is logged and waved through; only a confirmed miss rejects.
func (s *FeedbackService) checkAgentExists(ctx context.Context, chainID int64, agentID uint64) error {
	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	reader, err := s.identity(chainID)
	if err != nil {
		log.Warn().Err(err).Int64("chainId", chainID).Msg("no identity registry for chain, skipping agent check")
		return nil
	}
	agent, err := reader.Agent(lookupCtx, agentID)
	if err != nil {
		log.Warn().Err(err).Uint64("agentId", agentID).Msg("agent lookup failed, proceeding without confirmation")
		return nil
	}
	if agent == nil {
		return apperrors.NotFound("agent")
	}
	return nil
}

// storePrerequisite runs the association store and captures its outcome
// without letting a failure block the authorization itself.
func (s *FeedbackService) storePrerequisite(ctx context.Context, dctx *delegation.Context, prereq *AssociationPrerequisite) *AssociationOutcome {
	outcome := &AssociationOutcome{Digest: association.Digest(prereq.Record)}

	stored, err := s.associations.StoreInitiatorOnly(ctx, dctx, prereq.Record, prereq.KeyType, prereq.InitiatorSig)
	if err != nil {
		log.Warn().Err(err).Str("digest", outcome.Digest.Hex()).Msg("prerequisite association failed, issuing authorization anyway")
		outcome.Error = err.Error()
		return outcome
	}
	outcome.TxHash = stored.TxHash
	outcome.Completed = true
	return outcome
}

// feedbackDigest computes the signed payload hash. A nil skill id hashes as
// the zero word so unscoped tokens remain distinguishable from scoped ones.
func feedbackDigest(agentID uint64, client common.Address, chainID int64, skillID *string, expiresAt time.Time) common.Hash {
	var skillWord [32]byte
	if skillID != nil && *skillID != "" {
		copy(skillWord[:], crypto.Keccak256([]byte(*skillID)))
	}

	var agentWord, chainWord, clientWord, expiryWord [32]byte
	putUint64(agentWord[:], agentID)
	putUint64(chainWord[:], uint64(chainID))
	copy(clientWord[12:], client.Bytes())
	putUint64(expiryWord[:], uint64(expiresAt.Unix()))

	structHash := crypto.Keccak256Hash(
		feedbackTypeHash.Bytes(),
		agentWord[:],
		clientWord[:],
		chainWord[:],
		skillWord[:],
		expiryWord[:],
	)
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		feedbackDomainSeparator.Bytes(),
		structHash.Bytes(),
	)
}

func putUint64(word []byte, v uint64) {
	for i := 0; i < 8; i++ {
		word[31-i] = byte(v >> (8 * i))
	}
}
