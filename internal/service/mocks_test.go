package service

import (
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/chain"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/delegation"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/relay"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/repository"

	"github.com/jmoiron/sqlx"
)

// Mock ledger caller
type mockCaller struct {
	mock.Mock
	chainID int64
}

func (m *mockCaller) ChainID() int64 {
	return m.chainID
}

func (m *mockCaller) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	args := m.Called(ctx, to, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockCaller) TransactionReceipt(ctx context.Context, txHash common.Hash) (*chain.Receipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.Receipt), args.Error(1)
}

func (m *mockCaller) IsValidSignature(ctx context.Context, account common.Address, digest common.Hash, sig []byte) (bool, error) {
	args := m.Called(ctx, account, digest, sig)
	return args.Bool(0), args.Error(1)
}

// Mock relay client
type mockRelay struct {
	mock.Mock
}

func (m *mockRelay) Submit(ctx context.Context, req relay.SubmitRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockRelay) Receipt(ctx context.Context, handle string) (*relay.OperationReceipt, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*relay.OperationReceipt), args.Error(1)
}

// Mock trust registry reader
type mockTrustReader struct {
	mock.Mock
}

func (m *mockTrustReader) AssociationAddress() common.Address {
	return common.HexToAddress("0x00000000000000000000000000000000000000aa")
}

func (m *mockTrustReader) ValidationAddress() common.Address {
	return common.HexToAddress("0x00000000000000000000000000000000000000bb")
}

func (m *mockTrustReader) Association(ctx context.Context, digest common.Hash) (*model.SignedAssociationRecord, error) {
	args := m.Called(ctx, digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SignedAssociationRecord), args.Error(1)
}

func (m *mockTrustReader) EncodeStoreAssociation(record model.AssociationRecord, keyType model.KeyType, sig []byte) []byte {
	return []byte("store")
}

func (m *mockTrustReader) EncodeUpdateSignature(digest common.Hash, keyType model.KeyType, sig []byte) []byte {
	return []byte("update")
}

func (m *mockTrustReader) ValidationRequests(ctx context.Context, validator common.Address) ([]common.Hash, error) {
	args := m.Called(ctx, validator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]common.Hash), args.Error(1)
}

func (m *mockTrustReader) ValidationStatus(ctx context.Context, requestHash common.Hash) (*model.ValidationRequestStatus, error) {
	args := m.Called(ctx, requestHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ValidationRequestStatus), args.Error(1)
}

func (m *mockTrustReader) EncodeValidationResponse(requestHash common.Hash, response uint8, tag string) []byte {
	return []byte("respond:" + tag)
}

// Mock identity registry reader
type mockIdentityReader struct {
	mock.Mock
}

func (m *mockIdentityReader) Agent(ctx context.Context, agentID uint64) (*model.AgentIdentity, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AgentIdentity), args.Error(1)
}

// Mock operation executor
type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, dctx *delegation.Context, calls []delegation.Call) (common.Hash, error) {
	args := m.Called(ctx, dctx, calls)
	return args.Get(0).(common.Hash), args.Error(1)
}

// Mock validation result repository
type mockValidationRepo struct {
	mock.Mock
}

func (m *mockValidationRepo) Create(ctx context.Context, params model.CreateValidationResultParams) (*model.ValidationResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ValidationResult), args.Error(1)
}

func (m *mockValidationRepo) FindLatestByRequestHash(ctx context.Context, requestHash string) (*model.ValidationResult, error) {
	args := m.Called(ctx, requestHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ValidationResult), args.Error(1)
}

func (m *mockValidationRepo) FindByAgent(ctx context.Context, agentID uint64, chainID int64, limit, offset int) ([]model.ValidationResult, error) {
	args := m.Called(ctx, agentID, chainID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ValidationResult), args.Error(1)
}

func (m *mockValidationRepo) CountByStatus(ctx context.Context, status model.ValidationResultStatus) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

func (m *mockValidationRepo) WithTx(tx *sqlx.Tx) repository.ValidationResultRepository {
	return m
}

// Mock feedback authorization repository
type mockFeedbackRepo struct {
	mock.Mock
}

func (m *mockFeedbackRepo) Create(ctx context.Context, params model.CreateFeedbackAuthorizationParams) (*model.FeedbackAuthorization, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FeedbackAuthorization), args.Error(1)
}

func (m *mockFeedbackRepo) FindByID(ctx context.Context, id string) (*model.FeedbackAuthorization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FeedbackAuthorization), args.Error(1)
}

func (m *mockFeedbackRepo) FindByAgent(ctx context.Context, agentID uint64, chainID int64, limit, offset int) ([]model.FeedbackAuthorization, error) {
	args := m.Called(ctx, agentID, chainID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FeedbackAuthorization), args.Error(1)
}

func (m *mockFeedbackRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFeedbackRepo) WithTx(tx *sqlx.Tx) repository.FeedbackAuthorizationRepository {
	return m
}

// Mock association storer
type mockAssociationStorer struct {
	mock.Mock
}

func (m *mockAssociationStorer) StoreInitiatorOnly(ctx context.Context, dctx *delegation.Context, record model.AssociationRecord, keyType model.KeyType, initiatorSig []byte) (*StoreResult, error) {
	args := m.Called(ctx, dctx, record, keyType, initiatorSig)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StoreResult), args.Error(1)
}

func trustProviderFor(reader TrustReader) TrustProvider {
	return func(chainID int64) (TrustReader, error) { return reader, nil }
}

func identityProviderFor(reader IdentityReader) IdentityProvider {
	return func(chainID int64) (IdentityReader, error) { return reader, nil }
}

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func testContext(t *testing.T, caller chain.Caller, r relay.Client) *delegation.Context {
	t.Helper()
	key := testKey(t)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &delegation.Context{
		Credential: &model.SessionCredential{
			AgentID:           7,
			ChainID:           84532,
			DelegatingAccount: "0x1111111111111111111111111111111111111111",
		},
		Signer:           key,
		SessionAddress:   addr,
		DelegatedAddress: addr,
		Chain:            caller,
		Relay:            r,
		Redemption: delegation.RedemptionMaterial{
			Proof:    []byte{0xde, 0xad, 0xbe, 0xef},
			Selector: [4]byte{0x01, 0x02, 0x03, 0x04},
		},
	}
}
