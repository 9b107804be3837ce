package onchainwallet

import "github.com/btcsuite/btcd/btcutil"

// SatPerKWeight represents a fee rate in satoshis per 1000 weight units
// (sat/kw). It is the native unit used throughout this pipeline since
// transaction weight, not vsize, is what coin selection and fee estimation
// ultimately reason about.
type SatPerKWeight int64

// FeeForWeight returns the fee owed for a given weight at this fee rate.
func (s SatPerKWeight) FeeForWeight(weight int64) btcutil.Amount {
	return btcutil.Amount((int64(s) * weight) / 1000)
}

// FeePerKVByte converts this sat/kw rate into an equivalent sat/kvB rate.
// One virtual byte is four weight units, so a thousand virtual bytes is
// four thousand weight units.
func (s SatPerKWeight) FeePerKVByte() btcutil.Amount {
	return btcutil.Amount(s * 4)
}
