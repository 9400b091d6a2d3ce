package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/chain"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/delegation"
	apperrors "github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/errors"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/httputil"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/repository"
)

// Mock session credential repository
type mockCredentialRepo struct {
	mock.Mock
}

func (m *mockCredentialRepo) FindByAgent(ctx context.Context, agentID uint64, chainID int64) (*model.SessionCredential, error) {
	args := m.Called(ctx, agentID, chainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionCredential), args.Error(1)
}

func (m *mockCredentialRepo) FindByID(ctx context.Context, id string) (*model.SessionCredential, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionCredential), args.Error(1)
}

func (m *mockCredentialRepo) List(ctx context.Context) ([]model.SessionCredential, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SessionCredential), args.Error(1)
}

func (m *mockCredentialRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCredentialRepo) WithTx(tx *sqlx.Tx) repository.SessionCredentialRepository {
	return m
}

// Mock validation result repository
type mockValidationResultRepo struct {
	mock.Mock
}

func (m *mockValidationResultRepo) Create(ctx context.Context, params model.CreateValidationResultParams) (*model.ValidationResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ValidationResult), args.Error(1)
}

func (m *mockValidationResultRepo) FindLatestByRequestHash(ctx context.Context, requestHash string) (*model.ValidationResult, error) {
	args := m.Called(ctx, requestHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ValidationResult), args.Error(1)
}

func (m *mockValidationResultRepo) FindByAgent(ctx context.Context, agentID uint64, chainID int64, limit, offset int) ([]model.ValidationResult, error) {
	args := m.Called(ctx, agentID, chainID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ValidationResult), args.Error(1)
}

func (m *mockValidationResultRepo) CountByStatus(ctx context.Context, status model.ValidationResultStatus) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

func (m *mockValidationResultRepo) WithTx(tx *sqlx.Tx) repository.ValidationResultRepository {
	return m
}

func newTestHandler(credentials repository.SessionCredentialRepository) *OperationsHandler {
	builder := delegation.NewContextBuilder(chain.NewRegistry(chain.RegistryConfig{}))
	return NewOperationsHandler(credentials, builder, nil, nil, nil, nil, nil)
}

func newTestHandlerWithValidations(validations repository.ValidationResultRepository) *OperationsHandler {
	builder := delegation.NewContextBuilder(chain.NewRegistry(chain.RegistryConfig{}))
	return NewOperationsHandler(&mockCredentialRepo{}, builder, nil, nil, nil, validations, nil)
}

func dispatch(t *testing.T, h *OperationsHandler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/operations", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorCode {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Code
}

func TestDispatch_UnknownKind(t *testing.T) {
	h := newTestHandler(&mockCredentialRepo{})

	rec := dispatch(t, h, map[string]any{
		"kind":    "mintToken",
		"agentId": 7,
		"chainId": 84532,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrCodeUnsupportedOperation, decodeErrorCode(t, rec))
}

func TestDispatch_MalformedBody(t *testing.T) {
	h := newTestHandler(&mockCredentialRepo{})

	req := httptest.NewRequest(http.MethodPost, "/operations", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatch_MissingAgentID(t *testing.T) {
	h := newTestHandler(&mockCredentialRepo{})

	rec := dispatch(t, h, map[string]any{
		"kind":    string(OpProcessValidations),
		"chainId": 84532,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrCodeMissingRequired, decodeErrorCode(t, rec))
}

func TestDispatch_CredentialNotFound(t *testing.T) {
	credentials := &mockCredentialRepo{}
	credentials.On("FindByAgent", mock.Anything, uint64(7), int64(84532)).Return(nil, nil)
	h := newTestHandler(credentials)

	rec := dispatch(t, h, map[string]any{
		"kind":    string(OpProcessValidations),
		"agentId": 7,
		"chainId": 84532,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDispatch_ExpiredCredential(t *testing.T) {
	credentials := &mockCredentialRepo{}
	credentials.On("FindByAgent", mock.Anything, uint64(7), int64(84532)).Return(&model.SessionCredential{
		AgentID:    7,
		ChainID:    84532,
		ValidUntil: time.Now().Add(-time.Hour),
	}, nil)
	h := newTestHandler(credentials)

	rec := dispatch(t, h, map[string]any{
		"kind":    string(OpStoreAssociation),
		"agentId": 7,
		"chainId": 84532,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperrors.ErrCodeExpiredCredential, decodeErrorCode(t, rec))
}

func TestDispatch_CredentialByID(t *testing.T) {
	credentials := &mockCredentialRepo{}
	credentials.On("FindByID", mock.Anything, "cred-123").Return(&model.SessionCredential{
		ID:         "cred-123",
		AgentID:    7,
		ChainID:    84532,
		ValidUntil: time.Now().Add(-time.Hour),
	}, nil)
	h := newTestHandler(credentials)

	rec := dispatch(t, h, map[string]any{
		"kind":         string(OpStoreAssociation),
		"agentId":      7,
		"chainId":      84532,
		"credentialId": "cred-123",
	})
	// The pinned credential is expired, which proves the by-id path resolved
	// it without touching the agent lookup.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperrors.ErrCodeExpiredCredential, decodeErrorCode(t, rec))
	credentials.AssertNotCalled(t, "FindByAgent", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_CredentialByID_WrongAgent(t *testing.T) {
	credentials := &mockCredentialRepo{}
	credentials.On("FindByID", mock.Anything, "cred-123").Return(&model.SessionCredential{
		ID:         "cred-123",
		AgentID:    8,
		ChainID:    84532,
		ValidUntil: time.Now().Add(time.Hour),
	}, nil)
	h := newTestHandler(credentials)

	rec := dispatch(t, h, map[string]any{
		"kind":         string(OpStoreAssociation),
		"agentId":      7,
		"chainId":      84532,
		"credentialId": "cred-123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, decodeErrorCode(t, rec))
}

func TestLatestValidationResult(t *testing.T) {
	hash := "0x" + strings.Repeat("ab", 32)

	t.Run("returns the most recent result", func(t *testing.T) {
		validations := &mockValidationResultRepo{}
		validations.On("FindLatestByRequestHash", mock.Anything, hash).Return(&model.ValidationResult{
			RequestHash: hash,
			AgentID:     7,
			ChainID:     84532,
			Status:      model.ValidationResultSubmitted,
		}, nil)
		h := newTestHandlerWithValidations(validations)

		req := httptest.NewRequest(http.MethodGet, "/validations/"+hash, nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var result model.ValidationResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
		assert.Equal(t, hash, result.RequestHash)
		assert.Equal(t, model.ValidationResultSubmitted, result.Status)
	})

	t.Run("404 when nothing recorded for the hash", func(t *testing.T) {
		validations := &mockValidationResultRepo{}
		validations.On("FindLatestByRequestHash", mock.Anything, hash).Return(nil, nil)
		h := newTestHandlerWithValidations(validations)

		req := httptest.NewRequest(http.MethodGet, "/validations/"+hash, nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects a malformed hash", func(t *testing.T) {
		h := newTestHandlerWithValidations(&mockValidationResultRepo{})

		req := httptest.NewRequest(http.MethodGet, "/validations/0x1234", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, decodeErrorCode(t, rec))
	})
}

func TestAssociationStatus_BadDigest(t *testing.T) {
	h := newTestHandler(&mockCredentialRepo{})

	req := httptest.NewRequest(http.MethodGet, "/associations/84532/nope", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, decodeErrorCode(t, rec))
}
