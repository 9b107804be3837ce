// Package feepolicy maps a confirmation deadline to a target feerate via a
// tiered block-target schedule. It carries no domain logic beyond that
// mapping — fee *estimation* itself is delegated to an Estimator, exactly
// as chain-state tracking and mempool monitoring are delegated elsewhere
// in this pipeline.
package feepolicy

import "github.com/lightninglabs/fundingcore/onchainwallet"

// Estimator yields a feerate for a given confirmation block-target. A real
// implementation asks a fee-estimation smart-fee source (e.g. Bitcoin
// Core's estimatesmartfee, or an external fee API); this package only
// decides which target to ask for.
type Estimator interface {
	EstimateFeePerKW(confTarget uint32) (onchainwallet.SatPerKWeight, error)
}

// blockTarget relaxes the ask when the deadline is far away, and
// accelerates sharply as it nears. From 18 blocks remaining the target is
// deliberately set below the remaining count (12, and 6 from 12 remaining)
// so that fee estimates start rising well before the deadline is imminent.
func blockTarget(remaining int32) uint32 {
	switch {
	case remaining >= 144:
		return 144
	case remaining >= 72:
		return 72
	case remaining >= 36:
		return 36
	case remaining >= 18:
		return 12
	case remaining >= 12:
		return 6
	case remaining >= 2:
		return 2
	default:
		return 1
	}
}

// TargetFeeRate returns the feerate to use to confirm by confirmBefore,
// given the current chain height.
func TargetFeeRate(estimator Estimator, confirmBefore,
	currentHeight uint32) (onchainwallet.SatPerKWeight, error) {

	remaining := int32(confirmBefore) - int32(currentHeight)
	target := blockTarget(remaining)

	return estimator.EstimateFeePerKW(target)
}
