package chanfunding

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/go-errors/errors"
)

// ErrWalletReselectedUnusable means the wallet proposed an outpoint this
// session already marked unusable, violating the lock contract that's
// supposed to keep it out of circulation for the life of the session.
var ErrWalletReselectedUnusable = errors.New("wallet re-selected a " +
	"previously unusable outpoint")

// feeBudgetAmount extracts the optional absolute fee budget carried by
// FundingTx, FundingTxRbf, and SpliceTxRbf; new-funding and splice-out
// purposes without an explicit budget return nil.
func feeBudgetAmount(p Purpose) *int64 {
	var budget *btcutil.Amount

	switch v := p.(type) {
	case FundingTx:
		budget = v.FeeBudget
	case FundingTxRbf:
		budget = v.FeeBudget
	case SpliceTxRbf:
		budget = v.FeeBudget
	}

	if budget == nil {
		return nil
	}
	sats := int64(*budget)
	return &sats
}

// includesSharedInput reports whether this session's dummy transactions
// embed the shared input as a placeholder. Both roles include it (so each
// side's own wallet estimates the true joint transaction weight) except
// the non-initiator splice-in-only shortcut, which explicitly omits it
// because the counterparty pays its weight.
func (s *session) includesSharedInput() bool {
	return s.params.SharedInput != nil && !isSpliceInOnlyNonInitiator(s.params)
}

// fund runs the coin-selection loop: ask the wallet to fund dummyTx, check
// for lock-contract violations, filter out unusable inputs, and recurse on
// a sanitized transaction until every input is usable, at which point the
// final contribution is assembled.
func (s *session) fund(ctx context.Context, dummyTx *wire.MsgTx) (*FundingContributions, error) {
	var externalWeight int64
	if s.includesSharedInput() {
		externalWeight = s.params.SharedInput.WitnessWeight
	}

	var minConfs int32
	if s.params.RequireConfirmedInputs.ForLocal {
		minConfs = 1
	}

	result, err := s.wallet.FundTransaction(
		ctx, dummyTx, s.params.TargetFeeRate, externalWeight, minConfs,
		feeBudgetAmount(s.params.Purpose),
	)
	if err != nil {
		s.unlockEverLocked(ctx)
		return nil, errors.WrapPrefix(err, "wallet funding failed", 0)
	}

	for _, in := range result.Tx.TxIn {
		if _, bad := s.unusable[in.PreviousOutPoint]; bad {
			// Deliberately do not unlock anything: the lock
			// contract was violated, so every outpoint stays
			// locked to prevent re-entry.
			return nil, errors.WrapPrefix(ErrWalletReselectedUnusable,
				in.PreviousOutPoint.String(), 0)
		}
		s.everLocked[in.PreviousOutPoint] = struct{}{}
	}

	var newlyUnusable []wire.OutPoint
	allUsable := true
	for _, in := range result.Tx.TxIn {
		if s.includesSharedInput() && in.PreviousOutPoint == s.params.SharedInput.OutPoint {
			continue
		}

		detail, err := s.fetchInputDetail(ctx, in)
		if err != nil {
			s.unlockEverLocked(ctx)
			return nil, errors.WrapPrefix(err,
				"fetching input detail", 0)
		}

		ok, reason := canUseInput(detail)
		if !ok {
			allUsable = false
			s.unusable[in.PreviousOutPoint] = UnusableInput{
				OutPoint: in.PreviousOutPoint,
				Reason:   reason,
			}
			newlyUnusable = append(newlyUnusable, in.PreviousOutPoint)
		}
	}

	if !allUsable {
		log.Debugf("funding session for channel=%x found %d unusable "+
			"input(s), sanitizing and retrying", s.params.ChannelID,
			len(newlyUnusable))

		sanitized := sanitizeTx(result.Tx, result.ChangePosition,
			newlyUnusable, s.params)
		return s.fund(ctx, sanitized)
	}

	return s.assemble(result, dummyTx)
}

// sanitizeTx builds a sanitized retry transaction: the funded tx minus
// unusable inputs minus the wallet's new change output, keeping the
// shared output and any explicit local outputs.
func sanitizeTx(tx *wire.MsgTx, changePosition int, unusable []wire.OutPoint,
	params FundingParams) *wire.MsgTx {

	bad := make(map[wire.OutPoint]struct{}, len(unusable))
	for _, op := range unusable {
		bad[op] = struct{}{}
	}

	out := wire.NewMsgTx(tx.Version)
	out.LockTime = tx.LockTime

	for _, in := range tx.TxIn {
		if _, drop := bad[in.PreviousOutPoint]; drop {
			continue
		}
		out.AddTxIn(&wire.TxIn{
			PreviousOutPoint: in.PreviousOutPoint,
			Sequence:         in.Sequence,
		})
	}

	for i, txOut := range tx.TxOut {
		if i == changePosition {
			continue
		}
		out.AddTxOut(txOut)
	}

	return out
}

// unlockEverLocked releases every outpoint this session ever caused the
// wallet to lock, except those belonging to a previous attempt.
func (s *session) unlockEverLocked(ctx context.Context) {
	var toUnlock []wire.OutPoint
	for op := range s.everLocked {
		if _, keep := s.prevAttemptOutpoints[op]; keep {
			continue
		}
		toUnlock = append(toUnlock, op)
	}
	if len(toUnlock) == 0 {
		return
	}
	if err := s.wallet.UnlockOutpoints(ctx, toUnlock); err != nil {
		log.Errorf("failed to unlock outpoints after wallet error: %v", err)
	}
}
