// Package txpublish implements the replaceable-transaction publisher: the
// state machine that funds, publishes, monitors, and RBFs a claim
// transaction until it confirms or is abandoned.
package txpublish

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/fundingcore/onchainwallet"
)

// FundedTx is a funded, signed candidate transaction along with the fee
// terms it was built to.
type FundedTx struct {
	Tx      *wire.MsgTx
	Feerate onchainwallet.SatPerKWeight
	Fee     int64
	Inputs  []wire.OutPoint
}

// Txid returns the funded transaction's hash.
func (f *FundedTx) Txid() chainhash.Hash {
	return f.Tx.TxHash()
}

// Result is the Publisher's single terminal reply.
type Result struct {
	// Confirmed is set when the claim transaction reached the
	// deeply-buried confirmation depth.
	Confirmed *wire.MsgTx

	// Rejected is set, with a reason, when the claim could not be
	// published or confirmed.
	Rejected string

	Err error
}
