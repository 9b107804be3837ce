// Package chanfunding implements the interactive-tx funder: the state
// machine that builds the local contribution (inputs and outputs) to a
// jointly-constructed funding transaction. It repeatedly asks
// onchainwallet.Adapter for coin-selected UTXOs, filters out UTXOs
// unusable under the interactive-tx wire constraints, and converges on a
// final contribution consistent with the caller's role and operation.
package chanfunding

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/fundingcore/onchainwallet"
)

// Role distinguishes which side of the interactive-tx session this Funder
// instance is building a contribution for. It also fixes the serial-id
// parity bit: even for the initiator, odd for the non-initiator.
type Role uint8

const (
	Initiator Role = iota
	NonInitiator
)

// Parity returns this role's serial-id parity bit.
func (r Role) Parity() uint64 {
	if r == NonInitiator {
		return 1
	}
	return 0
}

func (r Role) String() string {
	if r == NonInitiator {
		return "non-initiator"
	}
	return "initiator"
}

// SharedInput describes the previous channel outpoint being spent into a
// new funding output, along with the witness weight a signed spend of it
// will carry. Present only for splice operations.
type SharedInput struct {
	wire.OutPoint

	// Script is the pkScript of the shared input being spent.
	Script []byte

	// WitnessWeight is the weight contributed by the input's witness
	// once signed, needed so the wallet doesn't try to estimate it.
	WitnessWeight int64
}

// Purpose is the closed, tagged variant describing what kind of funding
// transaction is being built. It discriminates both control flow (the
// wallet-funding-needed predicate, fee-budget presence) and data (prior
// balances, prior transactions). Implemented as an unexported marker
// method rather than an empty interface so no type outside this package
// can satisfy it, keeping every switch over it exhaustive by construction.
type Purpose interface {
	isPurpose()

	// PreviousTransactions returns the set of still-potentially
	// confirmable transactions from prior attempts at this same
	// funding/splice/RBF, if any.
	PreviousTransactions() []*wire.MsgTx
}

// FundingTx is a brand new channel-opening transaction.
type FundingTx struct {
	// FeeBudget caps the absolute fee the wallet may spend funding this
	// transaction, if set.
	FeeBudget *btcutil.Amount
}

func (FundingTx) isPurpose() {}
func (FundingTx) PreviousTransactions() []*wire.MsgTx { return nil }

// FundingTxRbf replaces a previous, still-unconfirmed funding attempt with
// a higher-feerate version.
type FundingTxRbf struct {
	PreviousTxs []*wire.MsgTx
	FeeBudget   *btcutil.Amount
}

func (FundingTxRbf) isPurpose() {}
func (p FundingTxRbf) PreviousTransactions() []*wire.MsgTx { return p.PreviousTxs }

// SpliceTx modifies an existing channel's funding outpoint, adding or
// removing on-chain value.
type SpliceTx struct {
	// PrevLocal and PrevRemote are each side's balance in the channel
	// being spliced, prior to this splice.
	PrevLocal, PrevRemote btcutil.Amount

	// HtlcBalance is the sum of in-flight HTLCs carried over into the
	// new funding output's implied balance accounting.
	HtlcBalance btcutil.Amount

	// PrevFundingAmount is the total value of the outpoint being
	// spliced.
	PrevFundingAmount btcutil.Amount
}

func (SpliceTx) isPurpose() {}
func (SpliceTx) PreviousTransactions() []*wire.MsgTx { return nil }

// SpliceTxRbf replaces a previous, still-unconfirmed splice attempt with a
// higher-feerate version.
type SpliceTxRbf struct {
	PrevLocal, PrevRemote btcutil.Amount
	HtlcBalance           btcutil.Amount
	PrevFundingAmount     btcutil.Amount
	PreviousTxs           []*wire.MsgTx
	FeeBudget             *btcutil.Amount
}

func (SpliceTxRbf) isPurpose() {}
func (p SpliceTxRbf) PreviousTransactions() []*wire.MsgTx { return p.PreviousTxs }

// FundingParams fully describes one Funder session.
type FundingParams struct {
	// Role is this side's role in the session; fixes serial-id parity.
	Role Role

	// ChannelID identifies the channel being funded or modified, for
	// logging and correlation with the caller.
	ChannelID [32]byte

	// FundingScript is the pkScript of the shared (2-of-2) funding
	// output.
	FundingScript []byte

	// LocalContribution is this side's signed satoshi contribution to
	// the shared output. May be negative for a splice-out.
	LocalContribution btcutil.Amount

	// RemoteContribution is the counterparty's contribution, needed to
	// compute the shared output's total value.
	RemoteContribution btcutil.Amount

	// LocalOutputs are additional, user-requested outputs this side is
	// adding (e.g. splice-out destinations). They are not change and
	// must survive to the final contribution unchanged.
	LocalOutputs []*wire.TxOut

	// SharedInput is set when an existing channel's funding outpoint is
	// being spent into the new transaction (a splice).
	SharedInput *SharedInput

	// Purpose carries the operation-specific context (see above).
	Purpose Purpose

	// TargetFeeRate is the feerate the resulting transaction should
	// meet.
	TargetFeeRate onchainwallet.SatPerKWeight

	// LockTime is the nLockTime of the resulting transaction.
	LockTime uint32

	// RequireConfirmedInputs mirrors each side's requirement (as
	// negotiated over the wire) that its own wallet inputs be
	// confirmed.
	RequireConfirmedInputs RequireConfirmedInputs

	// FundingPubKey is carried through for callers that need it to
	// reconstruct the funding script; unused by the Funder itself.
	FundingPubKey *btcec.PublicKey
}

// RequireConfirmedInputs captures both sides' confirmed-inputs requirement,
// as negotiated during the interactive-tx handshake.
type RequireConfirmedInputs struct {
	ForLocal  bool
	ForRemote bool
}
