package delegation

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/chain"
	apperrors "github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/errors"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/relay"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/util"
)

// Context is the ephemeral signing/execution context derived from one
// SessionCredential. Built per use, held for the duration of one or more
// operations, never persisted.
type Context struct {
	Credential       *model.SessionCredential
	Signer           *ecdsa.PrivateKey
	SessionAddress   common.Address
	DelegatedAddress common.Address
	Chain            chain.Caller
	Relay            relay.Client
	Redemption       RedemptionMaterial
}

// RedemptionMaterial wraps calls under the session's delegation proof so the
// relay can execute them as the delegating account.
type RedemptionMaterial struct {
	Proof    []byte
	Selector [4]byte
}

// ContextBuilder turns a persisted SessionCredential into a usable Context.
// Pure assembly; no network calls happen here.
type ContextBuilder struct {
	chains *chain.Registry
	relays func(endpoint string) relay.Client
	now    func() time.Time
}

func NewContextBuilder(chains *chain.Registry) *ContextBuilder {
	return &ContextBuilder{
		chains: chains,
		relays: func(endpoint string) relay.Client { return relay.NewHTTPClient(endpoint) },
		now:    time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (b *ContextBuilder) WithClock(now func() time.Time) *ContextBuilder {
	b.now = now
	return b
}

// WithRelayFactory overrides relay client construction, for tests.
func (b *ContextBuilder) WithRelayFactory(f func(endpoint string) relay.Client) *ContextBuilder {
	b.relays = f
	return b
}

// Build validates the credential against the requested chain and assembles a
// Context. Configuration failures are fatal and never retried.
func (b *ContextBuilder) Build(cred *model.SessionCredential, chainID int64) (*Context, error) {
	if cred == nil {
		return nil, apperrors.MalformedCredential("credential is nil")
	}
	if b.now().After(cred.ValidUntil) {
		return nil, apperrors.ExpiredCredential(cred.ValidUntil.Format(time.RFC3339))
	}
	if b.now().Before(cred.ValidAfter) {
		return nil, apperrors.NotYetValidCredential(cred.ValidAfter.Format(time.RFC3339))
	}
	if cred.ChainID != chainID || cred.RelayEndpoint == "" {
		return nil, apperrors.MissingRelayConfig(chainID)
	}
	if len(cred.DelegationProof) == 0 {
		return nil, apperrors.MalformedCredential("empty delegation proof")
	}

	if !util.IsHexString(cred.SessionPrivateKey) {
		return nil, apperrors.MalformedCredential("session key material is not hex")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cred.SessionPrivateKey, "0x"))
	if err != nil {
		return nil, apperrors.MalformedCredential("invalid session key material").WithCause(err)
	}
	sessionAddr := crypto.PubkeyToAddress(key.PublicKey)
	if cred.SessionAddress != "" && !strings.EqualFold(cred.SessionAddress, sessionAddr.Hex()) {
		return nil, apperrors.MalformedCredential("session key does not match recorded session address")
	}

	selector, err := parseSelector(cred.RedemptionSelector)
	if err != nil {
		return nil, apperrors.MalformedCredential("invalid redemption selector").WithCause(err)
	}

	if !util.IsAddress(cred.DelegatingAccount) {
		return nil, apperrors.MalformedCredential("invalid delegating account address")
	}
	delegated := common.HexToAddress(cred.DelegatingAccount)
	if cred.DelegatedAccount != nil {
		if !util.IsAddress(*cred.DelegatedAccount) {
			return nil, apperrors.MalformedCredential("invalid delegated account address")
		}
		delegated = common.HexToAddress(*cred.DelegatedAccount)
	}

	chainClient, err := b.chains.Client(chainID)
	if err != nil {
		return nil, err
	}

	return &Context{
		Credential:       cred,
		Signer:           key,
		SessionAddress:   sessionAddr,
		DelegatedAddress: delegated,
		Chain:            chainClient,
		Relay:            b.relays(cred.RelayEndpoint),
		Redemption: RedemptionMaterial{
			Proof:    cred.DelegationProof,
			Selector: selector,
		},
	}, nil
}

func parseSelector(s string) ([4]byte, error) {
	var sel [4]byte
	if !util.IsSelector(s) {
		return sel, fmt.Errorf("selector must be 4 bytes of hex, got %q", s)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return sel, err
	}
	copy(sel[:], raw)
	return sel, nil
}
