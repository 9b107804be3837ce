package chanfunding

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/fundingcore/onchainwallet"
)

// sumLocalOutputs returns the total value of the caller's non-change
// outputs.
func sumLocalOutputs(outputs []*wire.TxOut) btcutil.Amount {
	var total btcutil.Amount
	for _, out := range outputs {
		total += btcutil.Amount(out.Value)
	}
	return total
}

// needsAdditionalFunding decides whether this side must ask the wallet
// for more coins beyond what prior attempts already contributed.
//
// Open question: the splice predicate compares with >=, not >. At exactly
// zero this forces a wallet funding round even though nothing is strictly
// needed; kept as-is, on the theory that it guarantees fees are covered
// by wallet inputs rather than channel balance in edge cases.
func needsAdditionalFunding(p FundingParams) bool {
	localPlusOutputs := p.LocalContribution + sumLocalOutputs(p.LocalOutputs)

	switch p.Purpose.(type) {
	case FundingTx, FundingTxRbf:
		if p.Role == Initiator {
			return p.LocalContribution > 0 || len(p.LocalOutputs) > 0
		}
	case SpliceTx, SpliceTxRbf:
		if p.Role == Initiator {
			return localPlusOutputs >= 0
		}
	}

	// Non-initiator, any purpose.
	if len(p.LocalOutputs) == 0 {
		return p.LocalContribution > 0
	}
	return localPlusOutputs >= 0
}

// previousWalletInputs collects the distinct-by-outpoint union of local
// (non-shared) inputs across every prior attempt at this funding/splice.
func previousWalletInputs(p FundingParams) []wire.OutPoint {
	seen := make(map[wire.OutPoint]struct{})
	var out []wire.OutPoint

	for _, tx := range p.Purpose.PreviousTransactions() {
		for _, in := range tx.TxIn {
			op := in.PreviousOutPoint
			if p.SharedInput != nil && op == p.SharedInput.OutPoint {
				continue
			}
			if _, ok := seen[op]; ok {
				continue
			}
			seen[op] = struct{}{}
			out = append(out, op)
		}
	}

	return out
}

// newDummyTx builds the skeleton transaction base: version 2, no witness
// data, locktime as specified, optionally carrying the shared input.
func newDummyTx(p FundingParams, includeSharedInput bool) *wire.MsgTx {
	tx := wire.NewMsgTx(onchainwallet.TxVersion)
	tx.LockTime = p.LockTime

	if includeSharedInput && p.SharedInput != nil {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: p.SharedInput.OutPoint,
			Sequence:         onchainwallet.SharedInputSequence,
		})
	}

	return tx
}

// addWalletInputs appends placeholder inputs for each previously-selected
// wallet outpoint, so the wallet's next coin-selection round treats them
// as already-fixed parts of the transaction rather than re-selecting them.
func addWalletInputs(tx *wire.MsgTx, outpoints []wire.OutPoint) {
	for _, op := range outpoints {
		tx.AddTxIn(&wire.TxIn{PreviousOutPoint: op})
	}
}

// buildDefaultDummyTx builds the default-path dummy transaction: the
// shared input (if any), all previous wallet inputs, a dummy shared output
// of prevFundingAmount+localContribution, and the caller's local outputs.
//
// Both roles embed the shared input here, even though only the initiator
// ultimately contributes it structurally to the joint transaction: doing
// so lets each side's own wallet estimate the true weight of the finished
// transaction during coin selection. The non-initiator strips it back out
// at final assembly time.
func buildDefaultDummyTx(p FundingParams) *wire.MsgTx {
	tx := newDummyTx(p, p.SharedInput != nil)
	addWalletInputs(tx, previousWalletInputs(p))

	sharedAmt := p.LocalContribution + prevFundingAmount(p.Purpose)
	tx.AddTxOut(&wire.TxOut{
		Value:    int64(sharedAmt),
		PkScript: p.FundingScript,
	})

	for _, out := range p.LocalOutputs {
		tx.AddTxOut(out)
	}

	return tx
}

// buildSpliceInOnlyDummyTx implements the non-initiator splice-in-only
// shortcut: a dummy shared output sized to localContribution plus the
// previous wallet inputs, omitting the shared input because the
// counterparty pays its weight.
func buildSpliceInOnlyDummyTx(p FundingParams) *wire.MsgTx {
	tx := newDummyTx(p, false)
	addWalletInputs(tx, previousWalletInputs(p))

	tx.AddTxOut(&wire.TxOut{
		Value:    int64(p.LocalContribution),
		PkScript: p.FundingScript,
	})

	return tx
}

// isSpliceInOnlyNonInitiator recognizes the shortcut precondition: a
// shared input exists, local contribution is positive, and there are no
// local outputs.
func isSpliceInOnlyNonInitiator(p FundingParams) bool {
	return p.Role == NonInitiator && p.SharedInput != nil &&
		p.LocalContribution > 0 && len(p.LocalOutputs) == 0
}

// prevFundingAmount extracts the prior funding amount carried by splice
// Purpose variants, or zero for brand new funding transactions.
func prevFundingAmount(p Purpose) btcutil.Amount {
	switch v := p.(type) {
	case SpliceTx:
		return v.PrevFundingAmount
	case SpliceTxRbf:
		return v.PrevFundingAmount
	default:
		return 0
	}
}
