// Package chainntfs defines the chain-notification contract used by the
// anchor-claim resolver (the replaceable-transaction publisher does not use
// it; it relies on its own MempoolMonitor): a source
// of spend, confirmation, and block-epoch events that is intentionally
// general enough to be backed by a full node's ZMQ feed, an Electrum-style
// server, or a neutrino light client.
package chainntfs

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ChainNotifier is a trusted source of notifications about events on the
// Bitcoin blockchain. Concrete implementations must support multiple
// concurrent registrations.
type ChainNotifier interface {
	// RegisterConfirmationsNtfn registers an intent to be notified once
	// txid reaches numConfs confirmations, scanning no further back than
	// heightHint. The returned ConfirmationEvent delivers exactly one
	// notification unless ctx is canceled first.
	RegisterConfirmationsNtfn(ctx context.Context, txid chainhash.Hash,
		pkScript []byte, numConfs, heightHint uint32) (*ConfirmationEvent, error)

	// RegisterSpendNtfn registers an intent to be notified once op is
	// spent by a transaction observed in the mempool, scanning no
	// further back than heightHint.
	RegisterSpendNtfn(ctx context.Context, op wire.OutPoint,
		pkScript []byte, heightHint uint32) (*SpendEvent, error)

	// RegisterBlockEpochNtfn registers an intent to be notified of every
	// block connected to the tip of the main chain from targetHeight
	// onward.
	RegisterBlockEpochNtfn(ctx context.Context, targetHeight int32) (*BlockEpochEvent, error)
}

// ConfirmationEvent delivers exactly one notification: either the height at
// which txid reached the requested depth, or, if the original transaction
// is reorged out first, a negative-confirmation signal on NegativeConf.
type ConfirmationEvent struct {
	Confirmed    chan int32 // Buffered, sent at most once.
	NegativeConf chan int32 // Buffered, sent at most once.
}

// SpendDetail carries everything about the transaction that spent a
// registered outpoint.
type SpendDetail struct {
	SpentOutPoint     wire.OutPoint
	SpenderTxHash     chainhash.Hash
	SpendingTx        *wire.MsgTx
	SpenderInputIndex uint32
	SpendingHeight    int32
}

// SpendEvent delivers exactly one notification, the first time the
// registered outpoint is seen spent by a transaction in the mempool.
type SpendEvent struct {
	Spend chan *SpendDetail // Buffered, sent at most once.
}

// BlockEpoch carries the height and hash of one newly connected block.
type BlockEpoch struct {
	Height int32
	Hash   chainhash.Hash
}

// BlockEpochEvent delivers one notification per block connected to the
// chain tip, until the registering context is canceled.
type BlockEpochEvent struct {
	Epochs chan *BlockEpoch
}
