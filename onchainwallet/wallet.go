// Package onchainwallet defines the thin contract the two funding state
// machines (chanfunding.Funder and txpublish.Publisher) use to reach the
// shared on-chain wallet. It intentionally does not implement a wallet: coin
// selection, key management and transaction signing all live behind this
// interface, in a real node backed by btcwallet/neutrino or a full Bitcoin
// Core RPC connection.
package onchainwallet

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// SharedInputSequence is the sequence number the shared (previous channel)
// input always carries: RBF-signaling, per BIP-125.
const SharedInputSequence = 0xfffffffd

// TxVersion is the transaction version used for every transaction this
// pipeline constructs.
const TxVersion = 2

// FundResult is the outcome of a successful Adapter.FundTransaction call:
// the coin-selected, wallet-locked transaction, and the index of the
// wallet's own change output within it, if one was added.
type FundResult struct {
	Tx             *wire.MsgTx
	ChangePosition int // -1 if no change output was added.
}

// Adapter is the contract the funding pipeline needs from the on-chain
// wallet. The only implementation in this repository is the in-memory demo
// wallet of cmd/fundingcli; a real backend adapts an RPC or in-process
// wallet to this shape.
type Adapter interface {
	// FundTransaction atomically coin-selects inputs (and, if needed, a
	// change output) to bring tx's total input value up to cover its
	// outputs plus fees at feerate, locking every input it selects for
	// the lifetime of the caller's session. externalInputsWeight gives
	// the witness weight of inputs already present on tx that the
	// wallet did not select itself (the shared input), so the wallet's
	// own fee accounting doesn't double count them. feeBudget, if set,
	// caps the absolute fee the wallet may spend. minConfs, if non-zero,
	// restricts selection to UTXOs with at least that many
	// confirmations.
	FundTransaction(ctx context.Context, tx *wire.MsgTx,
		feeRate SatPerKWeight, externalInputsWeight int64,
		minConfs int32, feeBudget *int64) (*FundResult, error)

	// GetTransaction retrieves a previously broadcast or wallet-known
	// raw transaction by its txid.
	GetTransaction(ctx context.Context,
		txid chainhash.Hash) (*wire.MsgTx, error)

	// Rollback unlocks every input of tx that the wallet had locked on
	// our behalf.
	Rollback(ctx context.Context, tx *wire.MsgTx) error

	// UnlockOutpoints releases the wallet's lock on the given outpoints.
	// It is not an error to unlock an outpoint that isn't locked.
	UnlockOutpoints(ctx context.Context, outpoints []wire.OutPoint) error

	// AbandonTransaction removes tx from the wallet's set of
	// pending/unconfirmed transactions. It is a no-op if the wallet has
	// no record of the transaction (e.g. it never reached the mempool).
	AbandonTransaction(ctx context.Context, txid chainhash.Hash) error
}

// UnusableInput is an outpoint that the wallet selected but that this
// pipeline cannot use, and that therefore must stay locked for the
// remainder of the session to prevent the wallet from proposing it again.
type UnusableInput struct {
	wire.OutPoint

	// Reason documents why the input was rejected, for logging.
	Reason string
}
