package txpublish

import "github.com/lightninglabs/fundingcore/onchainwallet"

// minBumpRatio is the smallest multiple a replacement's feerate must clear
// over the transaction it replaces.
const minBumpRatio = 1.2

// bumpedFeerate decides the replacement feerate given the current Fee
// Policy quote and the previously published feerate:
//
//   - within 6 blocks of the deadline, force a bump to at least
//     prev * minBumpRatio, even if the policy quote is lower;
//   - otherwise, only bump if the policy quote alone already clears
//     prev * minBumpRatio;
//   - a zero return means no bump is warranted.
func bumpedFeerate(policyQuote onchainwallet.SatPerKWeight, blocksRemaining int32,
	prev onchainwallet.SatPerKWeight) onchainwallet.SatPerKWeight {

	floor := onchainwallet.SatPerKWeight(float64(prev) * minBumpRatio)

	if blocksRemaining <= 6 {
		if policyQuote > floor {
			return policyQuote
		}
		return floor
	}

	if policyQuote >= floor {
		return policyQuote
	}

	return 0
}
