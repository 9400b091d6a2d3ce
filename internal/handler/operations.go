package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/delegation"
	apperrors "github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/errors"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/repository"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/service"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/util"
)

// OperationKind is the closed set of delegated operations the surface
// accepts. Anything else is rejected with a typed error rather than falling
// through to a string match.
type OperationKind string

const (
	OpStoreAssociation   OperationKind = "storeAssociation"
	OpApproveAssociation OperationKind = "approveAssociation"
	OpIssueFeedbackAuth  OperationKind = "issueFeedbackAuth"
	OpProcessValidations OperationKind = "processValidations"
)

type OperationsHandler struct {
	credentials  repository.SessionCredentialRepository
	builder      *delegation.ContextBuilder
	associations *service.AssociationService
	feedback     *service.FeedbackService
	processor    *service.ValidationProcessor
	validations  repository.ValidationResultRepository
	feedbackRepo repository.FeedbackAuthorizationRepository
}

func NewOperationsHandler(
	credentials repository.SessionCredentialRepository,
	builder *delegation.ContextBuilder,
	associations *service.AssociationService,
	feedback *service.FeedbackService,
	processor *service.ValidationProcessor,
	validations repository.ValidationResultRepository,
	feedbackRepo repository.FeedbackAuthorizationRepository,
) *OperationsHandler {
	return &OperationsHandler{
		credentials:  credentials,
		builder:      builder,
		associations: associations,
		feedback:     feedback,
		processor:    processor,
		validations:  validations,
		feedbackRepo: feedbackRepo,
	}
}

func (h *OperationsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/operations", h.Dispatch)
	r.Get("/associations/{chainID}/{digest}", h.AssociationStatus)
	r.Get("/validations", h.ListValidationResults)
	r.Get("/validations/{requestHash}", h.LatestValidationResult)
	r.Get("/feedback-authorizations", h.ListFeedbackAuthorizations)

	return r
}

type recordPayload struct {
	Initiator   hexutil.Bytes `json:"initiator"`
	Approver    hexutil.Bytes `json:"approver"`
	ValidAt     uint64        `json:"validAt"`
	ValidUntil  uint64        `json:"validUntil"`
	InterfaceID hexutil.Bytes `json:"interfaceId"`
	Data        hexutil.Bytes `json:"data"`
}

func (p *recordPayload) toRecord() (model.AssociationRecord, error) {
	record := model.AssociationRecord{
		Initiator:  p.Initiator,
		Approver:   p.Approver,
		ValidAt:    p.ValidAt,
		ValidUntil: p.ValidUntil,
		Data:       p.Data,
	}
	if len(p.InterfaceID) != 4 {
		return record, apperrors.InvalidInput("interfaceId", "must be exactly 4 bytes")
	}
	copy(record.InterfaceID[:], p.InterfaceID)
	return record, nil
}

type associationPayload struct {
	Record    recordPayload `json:"record"`
	Digest    string        `json:"digest"`
	KeyType   model.KeyType `json:"keyType"`
	Signature hexutil.Bytes `json:"signature"`
}

type feedbackPayload struct {
	ClientAddress string              `json:"clientAddress"`
	SkillID       *string             `json:"skillId,omitempty"`
	ExpiresAt     *time.Time          `json:"expiresAt,omitempty"`
	Association   *associationPayload `json:"association,omitempty"`
}

type validationPayload struct {
	AgentIDFilter     *uint64 `json:"agentIdFilter,omitempty"`
	RequestHashFilter *string `json:"requestHashFilter,omitempty"`
}

type operationRequest struct {
	Kind         OperationKind       `json:"kind"`
	AgentID      uint64              `json:"agentId"`
	ChainID      int64               `json:"chainId"`
	CredentialID *string             `json:"credentialId,omitempty"`
	Association  *associationPayload `json:"association,omitempty"`
	Feedback     *feedbackPayload    `json:"feedback,omitempty"`
	Validation   *validationPayload  `json:"validation,omitempty"`
}

// POST /v1/operations
// Single entry point for delegated operations; the kind field selects the
// handler.
func (h *OperationsHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	switch req.Kind {
	case OpStoreAssociation, OpApproveAssociation, OpIssueFeedbackAuth, OpProcessValidations:
	default:
		writeError(w, apperrors.UnsupportedOperation(string(req.Kind)))
		return
	}
	if req.AgentID == 0 {
		writeError(w, apperrors.MissingRequired("agentId"))
		return
	}
	if req.ChainID == 0 {
		writeError(w, apperrors.MissingRequired("chainId"))
		return
	}

	cred, err := h.lookupCredential(r, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	dctx, err := h.builder.Build(cred, req.ChainID)
	if err != nil {
		writeError(w, err)
		return
	}

	switch req.Kind {
	case OpStoreAssociation:
		h.storeAssociation(w, r, dctx, req.Association)
	case OpApproveAssociation:
		h.approveAssociation(w, r, dctx, req.Association)
	case OpIssueFeedbackAuth:
		h.issueFeedbackAuth(w, r, dctx, req.AgentID, req.Feedback)
	case OpProcessValidations:
		h.processValidations(w, r, dctx, req.Validation)
	}
}

// lookupCredential resolves the session credential for a dispatch. A request
// naming a credentialId pins that exact credential and must still match the
// request's agent and chain; otherwise the (agentId, chainId) pair selects it.
func (h *OperationsHandler) lookupCredential(r *http.Request, req *operationRequest) (*model.SessionCredential, error) {
	ctx := r.Context()

	if req.CredentialID != nil {
		cred, err := h.credentials.FindByID(ctx, *req.CredentialID)
		if err != nil {
			log.Error().Err(err).Str("credentialId", *req.CredentialID).Msg("credential lookup failed")
			return nil, apperrors.Database(err)
		}
		if cred == nil {
			return nil, apperrors.NotFound("Session credential")
		}
		if cred.AgentID != req.AgentID || cred.ChainID != req.ChainID {
			return nil, apperrors.InvalidInput("credentialId", "credential belongs to a different agent or chain")
		}
		return cred, nil
	}

	cred, err := h.credentials.FindByAgent(ctx, req.AgentID, req.ChainID)
	if err != nil {
		log.Error().Err(err).Uint64("agentId", req.AgentID).Msg("credential lookup failed")
		return nil, apperrors.Database(err)
	}
	if cred == nil {
		return nil, apperrors.NotFound("Session credential")
	}
	return cred, nil
}

func (h *OperationsHandler) storeAssociation(w http.ResponseWriter, r *http.Request, dctx *delegation.Context, payload *associationPayload) {
	if payload == nil {
		writeError(w, apperrors.MissingRequired("association"))
		return
	}
	record, err := payload.Record.toRecord()
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.associations.StoreInitiatorOnly(r.Context(), dctx, record, payload.KeyType, payload.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *OperationsHandler) approveAssociation(w http.ResponseWriter, r *http.Request, dctx *delegation.Context, payload *associationPayload) {
	if payload == nil {
		writeError(w, apperrors.MissingRequired("association"))
		return
	}
	if !util.IsDigest(payload.Digest) {
		writeError(w, apperrors.InvalidInput("digest", "must be a 32-byte hex string"))
		return
	}

	result, err := h.associations.AddApproverSignature(r.Context(), dctx, common.HexToHash(payload.Digest), payload.KeyType, payload.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *OperationsHandler) issueFeedbackAuth(w http.ResponseWriter, r *http.Request, dctx *delegation.Context, agentID uint64, payload *feedbackPayload) {
	if payload == nil {
		writeError(w, apperrors.MissingRequired("feedback"))
		return
	}

	params := service.IssueParams{
		AgentID:       agentID,
		ClientAddress: payload.ClientAddress,
		SkillID:       payload.SkillID,
		ExpiresAt:     payload.ExpiresAt,
	}
	if payload.Association != nil {
		record, err := payload.Association.Record.toRecord()
		if err != nil {
			writeError(w, err)
			return
		}
		params.Association = &service.AssociationPrerequisite{
			Record:       record,
			KeyType:      payload.Association.KeyType,
			InitiatorSig: payload.Association.Signature,
		}
	}

	result, err := h.feedback.Issue(r.Context(), dctx, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *OperationsHandler) processValidations(w http.ResponseWriter, r *http.Request, dctx *delegation.Context, payload *validationPayload) {
	filters := service.ProcessFilters{}
	if payload != nil {
		filters.AgentID = payload.AgentIDFilter
		if payload.RequestHashFilter != nil {
			if !util.IsDigest(*payload.RequestHashFilter) {
				writeError(w, apperrors.InvalidInput("requestHashFilter", "must be a 32-byte hex string"))
				return
			}
			hash := common.HexToHash(*payload.RequestHashFilter)
			filters.RequestHash = &hash
		}
	}

	results, err := h.processor.Process(r.Context(), dctx, filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

// GET /v1/associations/{chainID}/{digest}
func (h *OperationsHandler) AssociationStatus(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseInt(chi.URLParam(r, "chainID"), 10, 64)
	if err != nil {
		writeError(w, apperrors.InvalidInput("chainID", "must be an integer"))
		return
	}
	digest := chi.URLParam(r, "digest")
	if !util.IsDigest(digest) {
		writeError(w, apperrors.InvalidInput("digest", "must be a 32-byte hex string"))
		return
	}

	record, state, err := h.associations.Status(r.Context(), chainID, common.HexToHash(digest))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"digest": digest,
		"state":  state,
		"record": record,
	})
}

// GET /v1/validations?agentId=&chainId=
func (h *OperationsHandler) ListValidationResults(w http.ResponseWriter, r *http.Request) {
	agentID, chainID, limit, offset, err := listParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	results, err := h.validations.FindByAgent(r.Context(), agentID, chainID, limit, offset)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

// GET /v1/validations/{requestHash}
func (h *OperationsHandler) LatestValidationResult(w http.ResponseWriter, r *http.Request) {
	requestHash := chi.URLParam(r, "requestHash")
	if !util.IsDigest(requestHash) {
		writeError(w, apperrors.InvalidInput("requestHash", "must be a 32-byte hex string"))
		return
	}

	result, err := h.validations.FindLatestByRequestHash(r.Context(), requestHash)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	if result == nil {
		writeError(w, apperrors.NotFound("Validation result"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /v1/feedback-authorizations?agentId=&chainId=
func (h *OperationsHandler) ListFeedbackAuthorizations(w http.ResponseWriter, r *http.Request) {
	agentID, chainID, limit, offset, err := listParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	auths, err := h.feedbackRepo.FindByAgent(r.Context(), agentID, chainID, limit, offset)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authorizations": auths,
		"count":          len(auths),
	})
}

func listParams(r *http.Request) (agentID uint64, chainID int64, limit, offset int, err error) {
	agentID, err = strconv.ParseUint(r.URL.Query().Get("agentId"), 10, 64)
	if err != nil {
		return 0, 0, 0, 0, apperrors.InvalidInput("agentId", "must be an integer")
	}
	chainID, err = strconv.ParseInt(r.URL.Query().Get("chainId"), 10, 64)
	if err != nil {
		return 0, 0, 0, 0, apperrors.InvalidInput("chainId", "must be an integer")
	}

	limit = 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, perr := strconv.Atoi(raw); perr == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, perr := strconv.Atoi(raw); perr == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return agentID, chainID, limit, offset, nil
}
