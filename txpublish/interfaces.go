package txpublish

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/fundingcore/onchainwallet"
)

// MempoolEvent is the closed set of events a MempoolMonitor reports about
// one published transaction.
type MempoolEvent interface {
	isMempoolEvent()
	Txid() chainhash.Hash
}

// TxInMempool reports that txid was observed in the mempool at height.
type TxInMempool struct {
	ID     chainhash.Hash
	Height uint32
}

func (e TxInMempool) isMempoolEvent()      {}
func (e TxInMempool) Txid() chainhash.Hash { return e.ID }

// TxRecentlyConfirmed reports a first confirmation, not yet deeply buried.
type TxRecentlyConfirmed struct {
	ID     chainhash.Hash
	Height uint32
}

func (e TxRecentlyConfirmed) isMempoolEvent()      {}
func (e TxRecentlyConfirmed) Txid() chainhash.Hash { return e.ID }

// TxDeeplyBuried reports that tx has reached the required confirmation
// depth.
type TxDeeplyBuried struct {
	ID chainhash.Hash
	Tx *wire.MsgTx
}

func (e TxDeeplyBuried) isMempoolEvent()      {}
func (e TxDeeplyBuried) Txid() chainhash.Hash { return e.ID }

// TxRejected reports that txid was rejected from or evicted out of the
// mempool, with a human-readable reason.
type TxRejected struct {
	ID     chainhash.Hash
	Reason string
}

func (e TxRejected) isMempoolEvent()      {}
func (e TxRejected) Txid() chainhash.Hash { return e.ID }

// MempoolMonitor watches one broadcast transaction and reports its
// lifecycle on the returned channel until it is stopped.
type MempoolMonitor interface {
	Watch(ctx context.Context, tx *wire.MsgTx) (<-chan MempoolEvent, error)
}

// TimeLockChecker blocks until a claim's time-lock (relative or absolute)
// has matured.
type TimeLockChecker interface {
	// WaitForMaturity blocks until the input identified by op can be
	// spent, or ctx is canceled.
	WaitForMaturity(ctx context.Context, op wire.OutPoint) error
}

// PrePublisher validates a claim transaction's semantics before any wallet
// interaction happens (e.g. that it spends the outpoint it claims to, that
// its time-lock fields are well formed).
type PrePublisher interface {
	CheckPreconditions(tx *wire.MsgTx) error
}

// ClaimFunder funds a fixed claim-transaction skeleton at a target feerate.
// It is the Publisher's analogue of chanfunding.Funder: simpler, since a
// claim transaction has a single, already-known output shape and no
// interactive-tx peer to negotiate with.
type ClaimFunder interface {
	FundClaim(ctx context.Context, skeleton *wire.MsgTx,
		feeRate onchainwallet.SatPerKWeight,
		previous *FundedTx) (*FundedTx, error)
}
