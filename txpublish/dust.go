package txpublish

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/lightninglabs/fundingcore/onchainwallet"
)

// DefaultPrePublisher checks that a claim transaction skeleton spends the
// expected outpoint and that its sole output would not be dust at the
// given relay feerate.
type DefaultPrePublisher struct {
	ClaimInput wire.OutPoint
	RelayFee   onchainwallet.SatPerKWeight
}

func (p DefaultPrePublisher) CheckPreconditions(tx *wire.MsgTx) error {
	if len(tx.TxIn) == 0 || tx.TxIn[0].PreviousOutPoint != p.ClaimInput {
		return fmt.Errorf("claim transaction does not spend %v", p.ClaimInput)
	}
	if len(tx.TxOut) == 0 {
		return fmt.Errorf("claim transaction has no outputs")
	}

	dustLimit := txrules.GetDustThreshold(
		len(tx.TxOut[0].PkScript), p.RelayFee.FeePerKVByte(),
	)
	if tx.TxOut[0].Value < int64(dustLimit) {
		return fmt.Errorf("claim output value %d is below the dust "+
			"limit %d", tx.TxOut[0].Value, dustLimit)
	}

	return nil
}
