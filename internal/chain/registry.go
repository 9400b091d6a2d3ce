package chain

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/errors"
)

// RegistryConfig maps chain ids to RPC endpoints and registry contract
// addresses.
type RegistryConfig struct {
	RPCEndpoints          map[int64]string
	AssociationRegistries map[int64]string
	ValidationRegistries  map[int64]string
	IdentityRegistries    map[int64]string
}

// Registry owns one ledger client per configured chain. It replaces the
// ambient per-chain singletons of earlier designs with an explicit keyed
// registry injected where needed.
type Registry struct {
	mu      sync.Mutex
	cfg     RegistryConfig
	clients map[int64]*Client
}

func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:     cfg,
		clients: make(map[int64]*Client),
	}
}

// Client returns the ledger client for a chain, dialing lazily.
func (r *Registry) Client(chainID int64) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[chainID]; ok {
		return c, nil
	}
	endpoint, ok := r.cfg.RPCEndpoints[chainID]
	if !ok {
		return nil, apperrors.MissingChainConfig(chainID)
	}
	c := Dial(endpoint, chainID)
	r.clients[chainID] = c
	return c, nil
}

// Trust returns the trust registry reader for a chain.
func (r *Registry) Trust(chainID int64) (*TrustRegistry, error) {
	associationAddr, ok := r.cfg.AssociationRegistries[chainID]
	if !ok {
		return nil, apperrors.MissingChainConfig(chainID)
	}
	validationAddr, ok := r.cfg.ValidationRegistries[chainID]
	if !ok {
		return nil, apperrors.MissingChainConfig(chainID)
	}
	client, err := r.Client(chainID)
	if err != nil {
		return nil, err
	}
	return NewTrustRegistry(client, common.HexToAddress(associationAddr), common.HexToAddress(validationAddr)), nil
}

// Identity returns the identity registry reader for a chain.
func (r *Registry) Identity(chainID int64) (*IdentityRegistry, error) {
	addr, ok := r.cfg.IdentityRegistries[chainID]
	if !ok {
		return nil, apperrors.MissingChainConfig(chainID)
	}
	client, err := r.Client(chainID)
	if err != nil {
		return nil, err
	}
	return NewIdentityRegistry(client, common.HexToAddress(addr)), nil
}
