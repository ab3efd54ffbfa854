package blockchain

import (
	"context"

	"arena-indexer/internal/apperrors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
)

// signatureLen is the byte length of an ed25519 transaction signature
const signatureLen = 64

// SolanaClient is a read-only view of the ledger used for health checks and
// operator lookups. Indexing itself never calls the RPC node.
type SolanaClient struct {
	rpcClient *rpc.Client
	endpoint  string
}

// NewSolanaClient creates a new Solana client
func NewSolanaClient(rpcURL string) *SolanaClient {
	if rpcURL == "" {
		rpcURL = rpc.DevNet_RPC
	}
	return &SolanaClient{
		rpcClient: rpc.New(rpcURL),
		endpoint:  rpcURL,
	}
}

// Endpoint returns the RPC URL in use
func (s *SolanaClient) Endpoint() string {
	return s.endpoint
}

// GetSlot returns the latest confirmed slot
func (s *SolanaClient) GetSlot(ctx context.Context) (uint64, error) {
	slot, err := s.rpcClient.GetSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, apperrors.TransientNetwork(err, "failed to get slot")
	}
	return slot, nil
}

// TransactionStatus is the ledger's view of one transaction signature
type TransactionStatus struct {
	Signature          string `json:"signature"`
	Found              bool   `json:"found"`
	Slot               uint64 `json:"slot,omitempty"`
	ConfirmationStatus string `json:"confirmationStatus,omitempty"`
	Failed             bool   `json:"failed"`
}

// GetTransactionStatus looks up a signature, searching transaction history
// beyond the node's recent status cache.
func (s *SolanaClient) GetTransactionStatus(ctx context.Context, signature string) (*TransactionStatus, error) {
	sig, err := parseSignature(signature)
	if err != nil {
		return nil, err
	}

	resp, err := s.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, apperrors.TransientNetwork(err, "failed to get signature status")
	}

	status := &TransactionStatus{Signature: signature}
	if resp == nil || len(resp.Value) == 0 || resp.Value[0] == nil {
		return status, nil
	}
	v := resp.Value[0]
	status.Found = true
	status.Slot = v.Slot
	status.ConfirmationStatus = string(v.ConfirmationStatus)
	status.Failed = v.Err != nil
	return status, nil
}

// parseSignature decodes a ledger signature. Webhook identifiers are opaque,
// so only lookups against the ledger require this format.
func parseSignature(signature string) (solana.Signature, error) {
	raw, err := base58.Decode(signature)
	if err != nil {
		return solana.Signature{}, apperrors.Validation("Transaction signature is not valid base58")
	}
	if len(raw) != signatureLen {
		return solana.Signature{}, apperrors.Validation("Transaction signature must be %d bytes, got %d", signatureLen, len(raw))
	}
	return solana.SignatureFromBytes(raw), nil
}
