package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/association"
	apperrors "github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/errors"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
)

const testClientAddress = "0x4444444444444444444444444444444444444444"

func feedbackParams() IssueParams {
	return IssueParams{
		AgentID:       7,
		ClientAddress: testClientAddress,
	}
}

func knownAgent() *model.AgentIdentity {
	return &model.AgentIdentity{
		AgentID: 7,
		Name:    "helper-bot",
		Account: "0x2222222222222222222222222222222222222222",
	}
}

func echoFeedbackRepo() *mockFeedbackRepo {
	repo := &mockFeedbackRepo{}
	repo.On("Create", mock.Anything, mock.Anything).Return(&model.FeedbackAuthorization{
		ID:            "auth-1",
		AgentID:       7,
		ClientAddress: common.HexToAddress(testClientAddress).Hex(),
		ChainID:       84532,
	}, nil)
	return repo
}

func TestFeedbackService_Issue_InvalidClientAddress(t *testing.T) {
	svc := NewFeedbackService(identityProviderFor(&mockIdentityReader{}), &mockAssociationStorer{}, &mockFeedbackRepo{}, time.Hour)
	dctx := testContext(t, &mockCaller{chainID: 84532}, &mockRelay{})

	params := feedbackParams()
	params.ClientAddress = "not-an-address"
	_, err := svc.Issue(context.Background(), dctx, params)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
}

func TestFeedbackService_Issue_MissingAgentID(t *testing.T) {
	svc := NewFeedbackService(identityProviderFor(&mockIdentityReader{}), &mockAssociationStorer{}, &mockFeedbackRepo{}, time.Hour)
	dctx := testContext(t, &mockCaller{chainID: 84532}, &mockRelay{})

	params := feedbackParams()
	params.AgentID = 0
	_, err := svc.Issue(context.Background(), dctx, params)
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
}

func TestFeedbackService_Issue_AgentNotFound(t *testing.T) {
	identity := &mockIdentityReader{}
	identity.On("Agent", mock.Anything, uint64(7)).Return(nil, nil)

	svc := NewFeedbackService(identityProviderFor(identity), &mockAssociationStorer{}, &mockFeedbackRepo{}, time.Hour)
	dctx := testContext(t, &mockCaller{chainID: 84532}, &mockRelay{})

	_, err := svc.Issue(context.Background(), dctx, feedbackParams())
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestFeedbackService_Issue_LookupFailureProceeds(t *testing.T) {
	identity := &mockIdentityReader{}
	identity.On("Agent", mock.Anything, uint64(7)).Return(nil, errors.New("lookup timed out"))

	svc := NewFeedbackService(identityProviderFor(identity), &mockAssociationStorer{}, echoFeedbackRepo(), time.Hour)
	dctx := testContext(t, &mockCaller{chainID: 84532}, &mockRelay{})

	result, err := svc.Issue(context.Background(), dctx, feedbackParams())
	require.NoError(t, err)
	assert.NotNil(t, result.Authorization)
}

func TestFeedbackService_Issue_SignatureRecoversToSessionKey(t *testing.T) {
	identity := &mockIdentityReader{}
	identity.On("Agent", mock.Anything, uint64(7)).Return(knownAgent(), nil)

	var created model.CreateFeedbackAuthorizationParams
	repo := &mockFeedbackRepo{}
	repo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(model.CreateFeedbackAuthorizationParams)
	}).Return(&model.FeedbackAuthorization{ID: "auth-1"}, nil)

	svc := NewFeedbackService(identityProviderFor(identity), &mockAssociationStorer{}, repo, time.Hour)
	dctx := testContext(t, &mockCaller{chainID: 84532}, &mockRelay{})

	_, err := svc.Issue(context.Background(), dctx, feedbackParams())
	require.NoError(t, err)

	digest := feedbackDigest(7, common.HexToAddress(testClientAddress), 84532, nil, created.ExpiresAt)
	signer, err := association.RecoverSigner(digest, created.Signature)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(dctx.Signer.PublicKey), signer)
}

func TestFeedbackService_Issue_SkillScopedDigestDiffers(t *testing.T) {
	skill := "translation"
	expiry := time.Now().Add(time.Hour)
	scoped := feedbackDigest(7, common.HexToAddress(testClientAddress), 84532, &skill, expiry)
	unscoped := feedbackDigest(7, common.HexToAddress(testClientAddress), 84532, nil, expiry)
	assert.NotEqual(t, scoped, unscoped)
}

func TestFeedbackService_Issue_ExpiredExpiry(t *testing.T) {
	identity := &mockIdentityReader{}
	identity.On("Agent", mock.Anything, uint64(7)).Return(knownAgent(), nil)

	svc := NewFeedbackService(identityProviderFor(identity), &mockAssociationStorer{}, &mockFeedbackRepo{}, time.Hour)
	dctx := testContext(t, &mockCaller{chainID: 84532}, &mockRelay{})

	past := time.Now().Add(-time.Minute)
	params := feedbackParams()
	params.ExpiresAt = &past
	_, err := svc.Issue(context.Background(), dctx, params)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
}

func TestFeedbackService_Issue_PrerequisiteFailureDoesNotBlock(t *testing.T) {
	identity := &mockIdentityReader{}
	identity.On("Agent", mock.Anything, uint64(7)).Return(knownAgent(), nil)

	storer := &mockAssociationStorer{}
	storer.On("StoreInitiatorOnly", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apperrors.ExecutionReverted("0xdead"))

	svc := NewFeedbackService(identityProviderFor(identity), storer, echoFeedbackRepo(), time.Hour)
	dctx := testContext(t, &mockCaller{chainID: 84532}, &mockRelay{})

	initiatorKey, approverKey := testKey(t), testKey(t)
	params := feedbackParams()
	params.Association = &AssociationPrerequisite{
		Record:  testRecord(t, initiatorKey, approverKey),
		KeyType: model.KeyTypeECDSA,
	}

	result, err := svc.Issue(context.Background(), dctx, params)
	require.NoError(t, err)
	require.NotNil(t, result.Authorization)
	require.NotNil(t, result.Association)
	assert.False(t, result.Association.Completed)
	assert.NotEmpty(t, result.Association.Error)
}

func TestFeedbackService_Issue_PrerequisiteSuccessAttached(t *testing.T) {
	identity := &mockIdentityReader{}
	identity.On("Agent", mock.Anything, uint64(7)).Return(knownAgent(), nil)

	initiatorKey, approverKey := testKey(t), testKey(t)
	record := testRecord(t, initiatorKey, approverKey)
	digest := association.Digest(record)
	txHash := common.HexToHash("0xfeed")

	storer := &mockAssociationStorer{}
	storer.On("StoreInitiatorOnly", mock.Anything, mock.Anything, record, model.KeyTypeECDSA, mock.Anything).
		Return(&StoreResult{Digest: digest, TxHash: &txHash, State: model.AssociationStatePending}, nil)

	svc := NewFeedbackService(identityProviderFor(identity), storer, echoFeedbackRepo(), time.Hour)
	dctx := testContext(t, &mockCaller{chainID: 84532}, &mockRelay{})

	params := feedbackParams()
	params.Association = &AssociationPrerequisite{Record: record, KeyType: model.KeyTypeECDSA}

	result, err := svc.Issue(context.Background(), dctx, params)
	require.NoError(t, err)
	require.NotNil(t, result.Association)
	assert.True(t, result.Association.Completed)
	assert.Equal(t, digest, result.Association.Digest)
	assert.Equal(t, txHash, *result.Association.TxHash)
}
