package chanfunding

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/go-errors/errors"
	"github.com/lightninglabs/fundingcore/onchainwallet"
)

// ErrMissingFundingOutput is returned when a wallet-funded transaction
// does not contain exactly one output paying the negotiated funding
// script. This is a terminal, unrecoverable failure.
var ErrMissingFundingOutput = errors.New("funded transaction is missing " +
	"the funding output")

// ErrMissingLocalOutput is returned when a wallet-funded transaction is
// missing one of the caller's requested local outputs.
var ErrMissingLocalOutput = errors.New("funded transaction is missing a " +
	"requested local output")

// htlcBalance extracts the HTLC balance carried by splice Purpose
// variants; zero for new-funding variants, which never carry in-flight
// HTLCs.
func htlcBalance(p Purpose) btcutil.Amount {
	switch v := p.(type) {
	case SpliceTx:
		return v.HtlcBalance
	case SpliceTxRbf:
		return v.HtlcBalance
	default:
		return 0
	}
}

// priorBalances extracts the balances the shared input carried prior to
// this operation, for splice Purpose variants.
func priorBalances(p Purpose) (local, remote btcutil.Amount) {
	switch v := p.(type) {
	case SpliceTx:
		return v.PrevLocal, v.PrevRemote
	case SpliceTxRbf:
		return v.PrevLocal, v.PrevRemote
	default:
		return 0, 0
	}
}

// buildOutputsFromParams assembles the output side of a contribution: the
// shared output (initiator only — the non-initiator's final contribution
// never contains one), the caller's local outputs unchanged, and an
// optional change output.
func (s *session) buildOutputsFromParams(changeOut *wire.TxOut) []OutgoingOutput {
	var outputs []OutgoingOutput

	if s.params.Role == Initiator {
		outputs = append(outputs, &SharedOutput{
			Script:       s.params.FundingScript,
			LocalAmount:  s.params.LocalContribution,
			RemoteAmount: s.params.RemoteContribution,
			HtlcBalance:  htlcBalance(s.params.Purpose),
		})
	}

	for _, out := range s.params.LocalOutputs {
		outputs = append(outputs, &LocalNonChangeOutput{
			Amount: btcutil.Amount(out.Value),
			Script: out.PkScript,
		})
	}

	if changeOut != nil {
		outputs = append(outputs, &LocalChangeOutput{
			Amount: btcutil.Amount(changeOut.Value),
			Script: changeOut.PkScript,
		})
	}

	return outputs
}

// verifyFundedTx checks the two invariants a funded transaction must
// satisfy: exactly one output equals the funding script, and every
// requested local output is present. Either failure is unrecoverable.
func verifyFundedTx(tx *wire.MsgTx, params FundingParams) error {
	fundingOutputs := 0
	for _, out := range tx.TxOut {
		if bytes.Equal(out.PkScript, params.FundingScript) {
			fundingOutputs++
		}
	}
	if fundingOutputs != 1 {
		return errors.WrapPrefix(ErrMissingFundingOutput,
			fmt.Sprintf("expected exactly one funding output, "+
				"found %d", fundingOutputs), 0)
	}

	for _, want := range params.LocalOutputs {
		found := false
		for _, out := range tx.TxOut {
			if out.Value == want.Value &&
				bytes.Equal(out.PkScript, want.PkScript) {

				found = true
				break
			}
		}
		if !found {
			return ErrMissingLocalOutput
		}
	}

	return nil
}

// commonFeeCredit computes the fee-equivalent of the transaction elements a
// non-initiator's wallet was charged for but doesn't actually owe: the
// overhead and outputs of the dummy tx it funded against, ignoring its own
// inputs, plus the shared input's witness weight when one was included as a
// placeholder. By convention those pieces are the initiator's burden, so the
// non-initiator credits this amount back into its own change.
func commonFeeCredit(s *session, dummyTx *wire.MsgTx) btcutil.Amount {
	var est onchainwallet.TxWeightEstimator
	for _, out := range dummyTx.TxOut {
		est.AddTxOutput(len(out.PkScript))
	}

	weight := est.Weight()
	if s.includesSharedInput() {
		weight += s.params.SharedInput.WitnessWeight
	}

	return s.params.TargetFeeRate.FeeForWeight(weight)
}

// assemble turns a wallet-funded transaction, once every input has proven
// usable, into the final contribution: verify the invariants a funded
// transaction must satisfy, split inputs and outputs by role, and for the
// non-initiator, credit back the portion of fees that belong to the
// initiator by convention.
func (s *session) assemble(result *onchainwallet.FundResult,
	dummyTx *wire.MsgTx) (*FundingContributions, error) {

	if err := verifyFundedTx(result.Tx, s.params); err != nil {
		return nil, err
	}

	var changeOut *wire.TxOut
	if result.ChangePosition >= 0 && result.ChangePosition < len(result.Tx.TxOut) {
		changeOut = result.Tx.TxOut[result.ChangePosition]
	}

	var inputs []OutgoingInput
	for _, in := range result.Tx.TxIn {
		if s.includesSharedInput() &&
			in.PreviousOutPoint == s.params.SharedInput.OutPoint {

			if s.params.Role == Initiator {
				local, remote := priorBalances(s.params.Purpose)
				inputs = append(inputs, &SharedInputContribution{
					Outpoint:      in.PreviousOutPoint,
					Script:        s.params.SharedInput.Script,
					Sequence:      in.Sequence,
					LocalBalance:  local,
					RemoteBalance: remote,
					HtlcBalance:   htlcBalance(s.params.Purpose),
				})
			}
			continue
		}

		detail, ok := s.knownInputs[in.PreviousOutPoint]
		if !ok {
			return nil, fmt.Errorf("no cached detail for funded "+
				"input %v", in.PreviousOutPoint)
		}
		inputs = append(inputs, &LocalInput{
			PrevTx:      detail.backingTx,
			OutputIndex: in.PreviousOutPoint.Index,
			Sequence:    in.Sequence,
		})
	}

	if s.params.Role == Initiator {
		return s.sortAndReply(inputs, s.buildOutputsFromParams(changeOut))
	}

	if changeOut != nil {
		credit := commonFeeCredit(s, dummyTx)
		changeOut = &wire.TxOut{
			Value:    changeOut.Value + int64(credit),
			PkScript: changeOut.PkScript,
		}
	}

	return s.sortAndReply(inputs, s.buildOutputsFromParams(changeOut))
}
