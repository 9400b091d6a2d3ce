package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/audit"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/config"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/delegation"
	apperrors "github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/errors"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/relay"
)

// Submitter encodes calls as a delegation-redemption payload, submits it to
// the relay, and polls until a terminal receipt. Submission errors are not
// retried here; retrying is only safe at a layer that knows the operation is
// idempotent.
type Submitter struct {
	maxPolls    int
	backoffBase time.Duration
	backoffMax  time.Duration
}

var _ OperationExecutor = (*Submitter)(nil)

func NewSubmitter() *Submitter {
	return &Submitter{
		maxPolls:    config.ReceiptMaxPolls,
		backoffBase: config.ReceiptBackoffBase,
		backoffMax:  config.ReceiptBackoffMax,
	}
}

// WithPolling overrides the polling bounds, for tests.
func (s *Submitter) WithPolling(maxPolls int, base, max time.Duration) *Submitter {
	s.maxPolls = maxPolls
	s.backoffBase = base
	s.backoffMax = max
	return s
}

// Execute runs one sponsored operation to a terminal outcome.
func (s *Submitter) Execute(ctx context.Context, dctx *delegation.Context, calls []delegation.Call) (common.Hash, error) {
	payload := delegation.EncodeRedemption(dctx.Redemption, calls)

	handle, err := dctx.Relay.Submit(ctx, relay.SubmitRequest{
		ChainID: dctx.Chain.ChainID(),
		Account: dctx.Credential.DelegatingAccount,
		Payload: payload,
	})
	if err != nil {
		return common.Hash{}, apperrors.External("relay", err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventRelaySubmission,
		AgentID:   dctx.Credential.AgentID,
		ChainID:   dctx.Chain.ChainID(),
		Handle:    handle,
		CallCount: len(calls),
	})

	log.Debug().
		Str("handle", handle).
		Int64("chainId", dctx.Chain.ChainID()).
		Int("calls", len(calls)).
		Msg("relay operation submitted")

	return s.awaitReceipt(ctx, dctx, handle)
}

func (s *Submitter) awaitReceipt(ctx context.Context, dctx *delegation.Context, handle string) (common.Hash, error) {
	backoff := s.backoffBase

	for poll := 0; poll < s.maxPolls; poll++ {
		receipt, err := dctx.Relay.Receipt(ctx, handle)
		if err != nil {
			log.Warn().Err(err).Str("handle", handle).Int("poll", poll).Msg("receipt poll failed")
		} else if receipt.Terminal() {
			return s.resolveReceipt(ctx, dctx, receipt)
		}

		select {
		case <-ctx.Done():
			return common.Hash{}, apperrors.External("relay", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.backoffMax {
			backoff = s.backoffMax
		}
	}

	return common.Hash{}, apperrors.ReceiptTimeout(handle, s.maxPolls)
}

func (s *Submitter) resolveReceipt(ctx context.Context, dctx *delegation.Context, receipt *relay.OperationReceipt) (common.Hash, error) {
	if receipt.TxHash == nil {
		return common.Hash{}, apperrors.ReceiptMissingTxHash(receipt.Handle)
	}
	txHash := *receipt.TxHash

	if !receipt.Success {
		return common.Hash{}, apperrors.ExecutionReverted(txHash.Hex())
	}

	// cross-check the ledger's own receipt; the relay's view can lag
	chainReceipt, err := dctx.Chain.TransactionReceipt(ctx, txHash)
	if err != nil {
		log.Warn().Err(err).Str("txHash", txHash.Hex()).Msg("could not confirm chain receipt, trusting relay status")
		return txHash, nil
	}
	if chainReceipt != nil && !chainReceipt.Success() {
		return common.Hash{}, apperrors.ExecutionReverted(txHash.Hex())
	}
	return txHash, nil
}
