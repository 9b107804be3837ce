package main

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/fundingcore/onchainwallet"
	"github.com/lightninglabs/fundingcore/txpublish"
)

// demoClaimFunder funds a claim skeleton against the demo wallet on every
// call, first rolling back the previous attempt's inputs if there is one,
// the way a real ClaimFunder wraps onchainwallet.Adapter plus signing.
type demoClaimFunder struct {
	wallet *demoWallet
}

func (f *demoClaimFunder) FundClaim(ctx context.Context, skeleton *wire.MsgTx,
	feeRate onchainwallet.SatPerKWeight,
	previous *txpublish.FundedTx) (*txpublish.FundedTx, error) {

	if previous != nil {
		if err := f.wallet.Rollback(ctx, previous.Tx); err != nil {
			return nil, err
		}
	}

	res, err := f.wallet.FundTransaction(ctx, skeleton.Copy(), feeRate, 0, 0, nil)
	if err != nil {
		return nil, err
	}

	return &txpublish.FundedTx{
		Tx:      res.Tx,
		Feerate: feeRate,
		Inputs:  outpointsOf(res.Tx),
	}, nil
}

// demoMonitor reports a fixed TxDeeplyBuried event for any transaction it
// is asked to watch, after a short delay, so the CLI demo's Publisher
// reaches a terminal Confirmed result without a real chain backend.
type demoMonitor struct{}

func (demoMonitor) Watch(ctx context.Context,
	tx *wire.MsgTx) (<-chan txpublish.MempoolEvent, error) {

	ch := make(chan txpublish.MempoolEvent, 1)
	go func() {
		select {
		case <-time.After(50 * time.Millisecond):
			ch <- txpublish.TxDeeplyBuried{ID: tx.TxHash(), Tx: tx}
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// demoTimeLockChecker always reports the claim input as already mature.
type demoTimeLockChecker struct{}

func (demoTimeLockChecker) WaitForMaturity(ctx context.Context, op wire.OutPoint) error {
	return nil
}

// demoPrePublisher accepts any claim transaction built against claimInput.
type demoPrePublisher struct {
	claimInput wire.OutPoint
}

func (p demoPrePublisher) CheckPreconditions(tx *wire.MsgTx) error {
	if len(tx.TxIn) == 0 || tx.TxIn[0].PreviousOutPoint != p.claimInput {
		return fmt.Errorf("claim transaction does not spend %v", p.claimInput)
	}
	return nil
}

// fixedFeeEstimator always quotes the same feerate regardless of
// confirmation target, standing in for a real chain-backend fee API.
type fixedFeeEstimator onchainwallet.SatPerKWeight

func (e fixedFeeEstimator) EstimateFeePerKW(confTarget uint32) (onchainwallet.SatPerKWeight, error) {
	return onchainwallet.SatPerKWeight(e), nil
}
